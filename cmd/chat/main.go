package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"oedx-chat/internal/client"
	"oedx-chat/internal/client/mirror"
	"oedx-chat/internal/database"
)

func main() {
	godotenv.Load()

	serverURL := os.Getenv("SERVER_URL")
	if serverURL == "" {
		serverURL = "http://localhost:8080"
	}

	ctx := context.Background()

	var m client.Mirror
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		rdb, err := database.NewRedisClient(redisURL)
		if err != nil {
			log.Fatalf("✗ Redis connection failed: %v", err)
		}
		defer rdb.Close()
		m = mirror.NewRedis(rdb)
	} else {
		fmt.Println("REDIS_URL not set; chats will not survive this session")
		m = mirror.NewMemory()
	}

	ui, err := client.New(ctx, serverURL, m)
	if err != nil {
		log.Fatalf("✗ Failed to load chats: %v", err)
	}
	ui.OnDelta = func(chunk string) {
		fmt.Print(chunk)
	}

	fmt.Println("OEDX Chat. Commands: /new /list /open <n> /delete <n> /rename <title> /quit")
	printChats(ui)

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			if !runCommand(ctx, ui, line) {
				return
			}
			continue
		}

		if ui.ActiveChatID() == "" {
			ui.CreateChat(ctx)
		}
		if err := ui.SendMessage(ctx, line); err != nil {
			fmt.Printf("\n✗ %v\n", err)
			continue
		}
		fmt.Println()
	}
}

// runCommand returns false when the session should end.
func runCommand(ctx context.Context, ui *client.UI, line string) bool {
	fields := strings.Fields(line)
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "/quit", "/exit":
		return false

	case "/new":
		ui.CreateChat(ctx)
		fmt.Println("Started a new chat")

	case "/list":
		printChats(ui)

	case "/open":
		if chat, ok := chatArg(ui, args); ok {
			ui.SelectChat(chat.ID)
			printChat(chat)
		}

	case "/delete":
		if chat, ok := chatArg(ui, args); ok {
			ui.DeleteChat(ctx, chat.ID)
			fmt.Println("Deleted", displayTitle(chat))
		}

	case "/rename":
		if len(args) == 0 {
			fmt.Println("Usage: /rename <title>")
		} else if id := ui.ActiveChatID(); id == "" {
			fmt.Println("No active chat")
		} else {
			ui.RenameChat(ctx, id, strings.Join(args, " "))
		}

	default:
		fmt.Println("Unknown command:", cmd)
	}
	return true
}

func chatArg(ui *client.UI, args []string) (client.Chat, bool) {
	chats := ui.Chats()
	if len(args) != 1 {
		fmt.Println("Usage: <command> <n> (see /list)")
		return client.Chat{}, false
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 1 || n > len(chats) {
		fmt.Println("No such chat")
		return client.Chat{}, false
	}
	return chats[n-1], true
}

func printChats(ui *client.UI) {
	chats := ui.Chats()
	if len(chats) == 0 {
		fmt.Println("No chats yet. Type a message to start one.")
		return
	}
	for i, c := range chats {
		marker := " "
		if c.ID == ui.ActiveChatID() {
			marker = "*"
		}
		fmt.Printf("%s %d. %s (%d messages)\n", marker, i+1, displayTitle(c), len(c.Messages))
	}
}

func printChat(c client.Chat) {
	fmt.Println("──", displayTitle(c), "──")
	for _, m := range c.Messages {
		fmt.Printf("%s: %s\n", m.Role, m.Content)
	}
}

func displayTitle(c client.Chat) string {
	if c.Title == "" {
		return "(untitled)"
	}
	return c.Title
}
