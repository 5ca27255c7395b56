package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"oedx-chat/internal/models"
)

// CompletionService bridges a message history to the OpenAI streaming
// completion API.
type CompletionService struct {
	client   *openai.Client
	model    string
	rateChan chan struct{} // Token bucket
}

func NewCompletionService(apiKey, baseURL, model string, concurrentReqs int) *CompletionService {
	clientConfig := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		clientConfig.BaseURL = baseURL
	}

	// Token bucket for capping in-flight provider requests
	rateChan := make(chan struct{}, concurrentReqs)
	for i := 0; i < concurrentReqs; i++ {
		rateChan <- struct{}{}
	}

	return &CompletionService{
		client:   openai.NewClientWithConfig(clientConfig),
		model:    model,
		rateChan: rateChan,
	}
}

// acquireRate blocks until a rate slot is available
func (s *CompletionService) acquireRate(ctx context.Context) error {
	select {
	case <-s.rateChan:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(5 * time.Minute):
		return fmt.Errorf("timeout waiting for OpenAI rate slot")
	}
}

func (s *CompletionService) releaseRate() {
	s.rateChan <- struct{}{}
}

// StreamCompletion sends the full history to the provider and consumes the
// delta stream in arrival order. Each non-empty text fragment is passed to
// onDelta (when non-nil) before the next one is read. The accumulated reply
// is returned once the provider signals end of stream; on error the partial
// accumulation is returned alongside it.
func (s *CompletionService) StreamCompletion(ctx context.Context, history []models.ChatMessage, onDelta func(string) error) (string, error) {
	if err := s.acquireRate(ctx); err != nil {
		return "", err
	}
	defer s.releaseRate()

	messages := make([]openai.ChatCompletionMessage, 0, len(history))
	for _, m := range history {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}

	req := openai.ChatCompletionRequest{
		Model:    s.model,
		Messages: messages,
		Stream:   true,
	}

	stream, err := s.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return "", fmt.Errorf("failed to open completion stream: %w", err)
	}
	defer stream.Close()

	var reply strings.Builder
	for {
		response, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return reply.String(), nil
		}
		if err != nil {
			return reply.String(), fmt.Errorf("completion stream error: %w", err)
		}

		if len(response.Choices) == 0 {
			continue
		}
		delta := response.Choices[0].Delta.Content
		if delta == "" {
			continue
		}

		reply.WriteString(delta)
		if onDelta != nil {
			if err := onDelta(delta); err != nil {
				return reply.String(), err
			}
		}
	}
}
