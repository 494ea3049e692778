// chatprobe submits one question to a live backend and prints the streamed
// answer as it grows, then the consolidated citations. Manual smoke tool.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"

	"github.com/zhouzirui/careerchat/client/internal/analysis/citation"
	"github.com/zhouzirui/careerchat/client/internal/config"
	"github.com/zhouzirui/careerchat/client/internal/model/chat"
	"github.com/zhouzirui/careerchat/client/internal/service/backend"
	"github.com/zhouzirui/careerchat/client/internal/service/conversation"
	"github.com/zhouzirui/careerchat/client/internal/service/lookup"
	"github.com/zhouzirui/careerchat/client/internal/service/notify"
	"github.com/zhouzirui/careerchat/client/internal/service/session"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env, using system environment: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	question := flag.String("q", "", "question to send")
	timeout := flag.Duration("timeout", 90*time.Second, "overall turn timeout")
	flag.Parse()

	if *question == "" {
		flag.Usage()
		log.Fatal("provide a question with -q")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	backendClient := backend.NewClient(cfg.Backend.BaseURL, cfg.Backend.RequestTimeout)
	store := conversation.NewService()
	sessionSvc := session.NewService(
		store,
		lookup.NewService(backendClient, cfg.Backend.SearchTopK),
		backendClient,
		notify.NewHub(),
	)

	updates, err := sessionSvc.Submit(ctx, *question)
	if err != nil {
		log.Fatalf("submit failed: %v", err)
	}

	var last chat.Snapshot
	printed := 0
	for snapshot := range updates {
		last = snapshot
		if msg, ok := lastAssistant(snapshot); ok && len(msg.Content) > printed {
			fmt.Print(msg.Content[printed:])
			printed = len(msg.Content)
		}
	}
	fmt.Println()

	if msg, ok := lastAssistant(last); ok {
		for _, c := range citation.Consolidate(msg.Content, msg.Citations) {
			fmt.Printf("[%d:%d] %q cites %s\n", c.Start, c.End, c.Text, citation.SourceLabel(msg.Matches, c.DocumentID))
		}
		for i, match := range msg.Matches {
			fmt.Printf("match %d: %s, %s (%s)\n", i+1, match.Metadata.Company, match.Metadata.Title, match.Metadata.Location)
		}
	}
}

func lastAssistant(snapshot chat.Snapshot) (chat.Message, bool) {
	for i := len(snapshot.Messages) - 1; i >= 0; i-- {
		if snapshot.Messages[i].Role == chat.RoleAssistant {
			return snapshot.Messages[i], true
		}
	}
	return chat.Message{}, false
}
