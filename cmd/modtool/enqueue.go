package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jwebster45206/modforge/internal/services/queue"
	"github.com/jwebster45206/modforge/internal/storage"
	"github.com/jwebster45206/modforge/pkg/chat"
	queuePkg "github.com/jwebster45206/modforge/pkg/queue"
	"github.com/jwebster45206/modforge/pkg/state"
	"github.com/spf13/cobra"
)

type enqueueOptions struct {
	redisURL  string
	sessionID string
	kind      string
	autoFix   bool
}

func newEnqueueCmd() *cobra.Command {
	opts := &enqueueOptions{}
	cmd := &cobra.Command{
		Use:   "enqueue MESSAGE",
		Short: "Queue a request directly in Redis, bypassing the API",
		Long: `enqueue writes a request to the worker queue. Without --session a new
session is created first. The request ID and session ID are printed so the
result can be read with GET /v1/requests/{id}.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()
			return enqueue(ctx, cmd.OutOrStdout(), opts, args[0])
		},
	}
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		redisURL = "localhost:6379"
	}
	cmd.Flags().StringVar(&opts.redisURL, "redis", redisURL, "Redis URL or address")
	cmd.Flags().StringVar(&opts.sessionID, "session", "", "Existing session ID")
	cmd.Flags().StringVar(&opts.kind, "type", string(chat.RequestTypeGenerate), "Request type: generate, edit or rename")
	cmd.Flags().BoolVar(&opts.autoFix, "auto-fix", true, "Run the corrector on generated files")
	return cmd
}

func enqueue(ctx context.Context, out io.Writer, opts *enqueueOptions, message string) error {
	body := chat.ChatRequest{Type: chat.RequestType(opts.kind), Message: message}
	if err := body.Validate(); err != nil {
		return err
	}

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	store, err := storage.NewRedisStorage(opts.redisURL, log)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	var s *state.Session
	if opts.sessionID == "" {
		s = state.NewSession(opts.autoFix)
		if err := store.SaveSession(ctx, s); err != nil {
			return fmt.Errorf("create session: %w", err)
		}
	} else {
		id, err := uuid.Parse(opts.sessionID)
		if err != nil {
			return fmt.Errorf("invalid session ID: %w", err)
		}
		if s, err = store.LoadSession(ctx, id); err != nil {
			return err
		}
		if s == nil {
			return fmt.Errorf("session %s not found", id)
		}
	}

	client, err := queue.NewClient(ctx, opts.redisURL, log)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()
	rq := queue.NewRequestQueue(client)

	req := &queuePkg.Request{
		RequestID:  uuid.NewString(),
		Type:       body.Type,
		SessionID:  s.ID,
		Message:    message,
		AutoFix:    opts.autoFix,
		EnqueuedAt: time.Now(),
	}
	if err := rq.SetStatus(ctx, queuePkg.NewRequestStatus(req)); err != nil {
		return err
	}
	if err := rq.EnqueueRequest(ctx, req); err != nil {
		return err
	}
	depth, err := rq.RequestQueueDepth(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "session: %s\nrequest: %s\nqueue depth: %d\n", s.ID, req.RequestID, depth)
	return nil
}
