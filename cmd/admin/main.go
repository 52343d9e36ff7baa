package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"pawchat/backend/internal/auth"
	"pawchat/backend/internal/chat"
	"pawchat/backend/internal/config"
	"pawchat/backend/internal/models"
	"pawchat/backend/internal/storage"
)

const usage = `Usage: admin <command> [args]

Commands:
  issue-token <user_id>                 print a bearer token for user_id
  set-nickname <user_id> <nickname>     create or rename a user profile
  rooms <user_id>                       list the user's rooms with unread counts
  messages <room_id> [limit]            print the newest messages of a room`

func main() {
	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	command := os.Args[1]
	if command == "issue-token" {
		requireArgs(3, "admin issue-token <user_id>")
		token, expiresAt, err := auth.NewIssuer(cfg.JWTSecret, cfg.TokenTTL).Issue(os.Args[2])
		if err != nil {
			log.Fatalf("Error issuing token: %v", err)
		}
		fmt.Printf("%s\nexpires at %s\n", token, expiresAt.Format(time.RFC3339))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, closeStore, err := storage.Open(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to open storage: %v", err)
	}
	defer closeStore()
	svc := chat.NewService(store, cfg)

	switch command {
	case "set-nickname":
		requireArgs(4, "admin set-nickname <user_id> <nickname>")
		if err := setNickname(ctx, store, os.Args[2], os.Args[3]); err != nil {
			log.Fatalf("Error saving user: %v", err)
		}
		fmt.Printf("User %s is now %q.\n", os.Args[2], os.Args[3])
	case "rooms":
		requireArgs(3, "admin rooms <user_id>")
		if err := printRooms(ctx, svc, os.Args[2]); err != nil {
			log.Fatalf("Error listing rooms: %v", err)
		}
	case "messages":
		requireArgs(3, "admin messages <room_id> [limit]")
		limit := 0
		if len(os.Args) > 3 {
			if _, err := fmt.Sscanf(os.Args[3], "%d", &limit); err != nil {
				fmt.Println("Invalid limit. Please provide an integer.")
				os.Exit(1)
			}
		}
		if err := printMessages(ctx, svc, os.Args[2], limit); err != nil {
			log.Fatalf("Error reading messages: %v", err)
		}
	default:
		fmt.Println("Unknown command")
		fmt.Println(usage)
		os.Exit(1)
	}
}

func requireArgs(n int, help string) {
	if len(os.Args) < n {
		fmt.Println("Usage: " + help)
		os.Exit(1)
	}
}

func setNickname(ctx context.Context, s storage.Storage, userID, nickname string) error {
	user, err := s.GetUserByID(ctx, userID)
	if err != nil {
		user = &models.User{ID: userID}
	}
	user.Nickname = nickname
	return s.SaveUser(ctx, user)
}

func printRooms(ctx context.Context, svc *chat.Service, userID string) error {
	rooms, err := svc.NewAggregator().Snapshot(ctx, chat.Session{UserID: userID})
	if err != nil {
		return err
	}
	for _, r := range rooms {
		fmt.Printf("%s  %-20s unread=%-3d updated=%s  %q\n",
			r.Room.ID, r.CounterpartDisplayName, r.UnreadCount, r.UpdatedAt.Format(time.RFC3339), r.LastMessage)
	}
	fmt.Printf("%d rooms\n", len(rooms))
	return nil
}

// printMessages reads without marking anything as read.
func printMessages(ctx context.Context, svc *chat.Service, roomID string, limit int) error {
	messages, err := svc.Log.Window(ctx, roomID, limit)
	if err != nil {
		return err
	}
	for _, m := range messages {
		fmt.Printf("%s  #%d %-20s %s  read_by=%v\n",
			m.SentAt.Format(time.RFC3339), m.Seq, m.SenderDisplayName, m.Text, []string(m.ReadBy))
	}
	return nil
}
