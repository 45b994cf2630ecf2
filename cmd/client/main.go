package main

import (
	"bufio"
	"context"
	"encoding/json"
	"estate-live/infrastructure/crud"
	"estate-live/infrastructure/ws"
	"estate-live/projection"
	"estate-live/repositories"
	"estate-live/services"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	if err := validator.New().Struct(config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Local liked set (BadgerDB)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.WARNING))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		_ = db.Close()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Hub transport
	hubClient, err := ws.Dial(ctx, log, config.HubURL, ws.ClientConfig{})
	if err != nil {
		return fmt.Errorf("hub connection failed: %w", err)
	}
	defer func() {
		_ = hubClient.Close()
	}()

	// 4. Session
	crudConf := crud.DefaultConfig(config.CrudURL)
	crudConf.Timeout = config.CrudTimeout
	session := services.NewCommentSession(
		log,
		crud.NewClient(log, crudConf),
		hubClient,
		projection.NewCommentStore(log, config.PostID, config.Mode()),
		repositories.NewLikedRepository(db, log, config.UserID),
		config.User(),
		func(data json.RawMessage) { printMessage("message", data) },
	)
	if err := session.Open(ctx); err != nil {
		return fmt.Errorf("session failed to open: %w", err)
	}

	go func() {
		if err := session.Run(ctx, hubClient.Events()); err != nil && ctx.Err() == nil {
			printError(err)
			stop()
		}
	}()

	// 5. Prompt
	fmt.Println(help)
	render(os.Stdout, session.Comments(), session.IsLiked)

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if quit := execute(ctx, session, line); quit {
				return nil
			}
		}
	}
}

func execute(ctx context.Context, session *services.CommentSession, line string) bool {
	cmd, rest, _ := strings.Cut(strings.TrimSpace(line), " ")
	arg, text, _ := strings.Cut(strings.TrimSpace(rest), " ")

	switch cmd {
	case "":
	case "quit", "exit":
		return true
	case "list":
		render(os.Stdout, session.Comments(), session.IsLiked)
	case "comment":
		_, err := session.AddComment(ctx, strings.TrimSpace(rest))
		reportErr(err, "comment added")
	case "edit":
		_, err := session.EditComment(ctx, arg, text)
		reportErr(err, "comment edited")
	case "reply":
		_, err := session.AddReply(ctx, arg, text)
		reportErr(err, "reply added")
	case "delete":
		reportErr(session.DeleteComment(ctx, arg), "comment deleted")
	case "unreply":
		reportErr(session.DeleteReply(ctx, arg, strings.TrimSpace(text)), "reply deleted")
	case "like":
		liked, err := session.ToggleLike(ctx, arg)
		reportErr(err, fmt.Sprintf("liked=%t", liked))
	case "dm":
		reportErr(session.SendMessage(ctx, arg, text), "message sent")
	default:
		fmt.Println(help)
	}
	return false
}

func reportErr(err error, ok string) {
	if err != nil {
		printError(err)
		return
	}
	printOK(ok)
}
