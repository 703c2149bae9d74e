package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/jwebster45206/modforge/pkg/prompts"
)

var (
	// ErrTransport wraps every failure to reach a model or read its answer.
	ErrTransport = errors.New("model transport error")
	// ErrRequestTimeout is returned when the operation deadline passes
	// before the model answered.
	ErrRequestTimeout = errors.New("model request timed out")
	// ErrEmptyResponse is returned when the model answered with no text.
	ErrEmptyResponse = errors.New("model returned an empty response")
)

// LLMService defines the interface for text generation
type LLMService interface {
	// InitModel checks or prepares the model on startup
	InitModel(ctx context.Context, modelName string) error

	// Generate sends one request and returns the raw answer text
	Generate(ctx context.Context, req *prompts.Request) (string, error)
}

// ImageService defines the interface for sprite generation
type ImageService interface {
	// GenerateImage returns the generated image as a data URL
	GenerateImage(ctx context.Context, prompt string, aspectRatio string) (string, error)
}

// StatusError is a non-2xx answer from a provider.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API request failed with status %d: %s", e.StatusCode, e.Body)
}

func (e *StatusError) Unwrap() error {
	return ErrTransport
}

// Transient reports whether retrying the request may succeed.
func Transient(err error) bool {
	if err == nil || errors.Is(err, ErrRequestTimeout) || errors.Is(err, context.Canceled) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode == http.StatusTooManyRequests || se.StatusCode >= 500
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}
	return errors.Is(err, ErrEmptyResponse)
}

// classify maps a call failure to the package's sentinel errors. A context
// that hit its deadline always yields ErrRequestTimeout.
func classify(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrRequestTimeout, err)
	}
	if errors.Is(err, ErrTransport) || errors.Is(err, ErrEmptyResponse) || errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrTransport, err)
}

// Retrier repeats transient failures with exponential backoff.
type Retrier struct {
	MaxRetries int
	BaseDelay  time.Duration
	Logger     *slog.Logger
}

func NewRetrier(maxRetries int, logger *slog.Logger) *Retrier {
	return &Retrier{MaxRetries: maxRetries, BaseDelay: 500 * time.Millisecond, Logger: logger}
}

// Do runs fn until it succeeds, fails permanently, or retries run out.
func (r *Retrier) Do(ctx context.Context, op string, fn func(ctx context.Context) (string, error)) (string, error) {
	if r == nil {
		out, err := fn(ctx)
		return out, classify(ctx, err)
	}
	var lastErr error
	for attempt := 0; attempt <= r.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := r.BaseDelay << (attempt - 1)
			if r.Logger != nil {
				r.Logger.Warn("Retrying model request", "operation", op, "attempt", attempt, "delay", delay, "error", lastErr)
			}
			select {
			case <-ctx.Done():
				return "", classify(ctx, ctx.Err())
			case <-time.After(delay):
			}
		}

		out, err := fn(ctx)
		if err == nil {
			return out, nil
		}
		lastErr = classify(ctx, err)
		if !Transient(lastErr) {
			return "", lastErr
		}
	}
	return "", lastErr
}
