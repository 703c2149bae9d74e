package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jwebster45206/modforge/internal/services/events"
	"github.com/jwebster45206/modforge/internal/services/queue"
	queuePkg "github.com/jwebster45206/modforge/pkg/queue"
	"github.com/redis/go-redis/v9"
)

const (
	// pollTimeout bounds each blocking dequeue so shutdown is noticed.
	pollTimeout = 2 * time.Second
	// lockTTL must outlast the longest operation, including retries.
	lockTTL      = 5 * time.Minute
	requeueDelay = 250 * time.Millisecond
)

var releaseLockScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

// Worker processes requests from the global queue, one session at a time.
type Worker struct {
	id          string
	queue       *queue.RequestQueue
	processor   *Processor
	broadcaster *events.Broadcaster
	redisClient *redis.Client
	log         *slog.Logger
	ctx         context.Context
	cancel      context.CancelFunc
}

func New(requestQueue *queue.RequestQueue, processor *Processor, redisClient *redis.Client, log *slog.Logger, workerID string) *Worker {
	ctx, cancel := context.WithCancel(context.Background())

	if workerID == "" {
		workerID = fmt.Sprintf("worker-%s", uuid.New().String()[:8])
	}

	return &Worker{
		id:          workerID,
		queue:       requestQueue,
		processor:   processor,
		broadcaster: events.NewBroadcaster(redisClient, log),
		redisClient: redisClient,
		log:         log,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start processes requests until Stop is called.
func (w *Worker) Start() error {
	w.log.Info("Worker starting", "worker_id", w.id)

	for {
		select {
		case <-w.ctx.Done():
			w.log.Info("Worker shutting down", "worker_id", w.id)
			return nil
		default:
		}
		if _, err := w.processNextRequest(); err != nil {
			if w.ctx.Err() != nil {
				continue
			}
			w.log.Error("Error processing request", "error", err, "worker_id", w.id)
			w.sleep(time.Second)
		}
	}
}

// Stop cancels the worker's context, which also aborts an in-flight request.
func (w *Worker) Stop() {
	w.log.Info("Worker stop requested", "worker_id", w.id)
	w.cancel()
}

func (w *Worker) sleep(d time.Duration) {
	select {
	case <-w.ctx.Done():
	case <-time.After(d):
	}
}

// processNextRequest handles at most one request. It reports whether one was
// dequeued.
func (w *Worker) processNextRequest() (bool, error) {
	req, err := w.queue.BlockingDequeueRequest(w.ctx, pollTimeout)
	if err != nil {
		return false, fmt.Errorf("failed to dequeue request: %w", err)
	}
	if req == nil {
		return false, nil
	}

	w.log.Info("Received request from queue",
		"worker_id", w.id,
		"request_id", req.RequestID,
		"type", req.Type,
		"session_id", req.SessionID.String(),
	)

	locked, err := w.acquireSessionLock(req.SessionID)
	if err != nil {
		if qErr := w.queue.EnqueueRequest(w.ctx, req); qErr != nil {
			err = errors.Join(err, qErr)
		}
		return true, fmt.Errorf("failed to acquire session lock: %w", err)
	}
	if !locked {
		// Another worker owns this session; put the request back at the end.
		w.log.Info("Session already locked, re-queueing request",
			"worker_id", w.id,
			"request_id", req.RequestID,
			"session_id", req.SessionID.String(),
		)
		if err := w.queue.EnqueueRequest(w.ctx, req); err != nil {
			return true, fmt.Errorf("failed to re-queue request: %w", err)
		}
		w.sleep(requeueDelay)
		return true, nil
	}

	defer w.releaseSessionLock(req.SessionID)
	return true, w.processRequest(req)
}

func lockKey(sessionID uuid.UUID) string {
	return fmt.Sprintf("session-lock:%s", sessionID.String())
}

// acquireSessionLock returns false when another worker holds the lock.
func (w *Worker) acquireSessionLock(sessionID uuid.UUID) (bool, error) {
	return w.redisClient.SetNX(w.ctx, lockKey(sessionID), w.id, lockTTL).Result()
}

// releaseSessionLock deletes the lock only if this worker still owns it.
func (w *Worker) releaseSessionLock(sessionID uuid.UUID) {
	// The worker context may already be cancelled during shutdown.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := releaseLockScript.Run(ctx, w.redisClient, []string{lockKey(sessionID)}, w.id).Err(); err != nil {
		w.log.Error("Failed to release session lock", "error", err, "session_id", sessionID.String())
	}
}

func (w *Worker) processRequest(req *queuePkg.Request) error {
	start := time.Now()
	st := queuePkg.NewRequestStatus(req)
	st.Status = queuePkg.StatusProcessing
	if err := w.queue.SetStatus(w.ctx, st); err != nil {
		w.log.Error("Failed to update request status", "error", err, "request_id", req.RequestID)
	}
	if err := w.broadcaster.PublishRequestProcessing(w.ctx, req.SessionID, req.RequestID, string(req.Type), req.Message); err != nil {
		w.log.Error("Failed to publish processing event", "error", err)
	}

	out, err := w.processor.Process(w.ctx, req)
	if err != nil {
		w.fail(st, err.Error())
		return fmt.Errorf("failed to process request %s: %w", req.RequestID, err)
	}
	if out.Err != nil {
		w.fail(st, out.Message)
		return nil
	}

	st.Status = queuePkg.StatusCompleted
	st.Message = out.Message
	st.UnitName = out.UnitName
	st.ModName = out.ModName
	st.Diff = out.Diff
	if err := w.queue.SetStatus(w.ctx, st); err != nil {
		w.log.Error("Failed to update request status", "error", err, "request_id", req.RequestID)
	}

	result := map[string]any{
		"message":     out.Message,
		"unit_name":   out.UnitName,
		"mod_name":    out.ModName,
		"duration_ms": time.Since(start).Milliseconds(),
	}
	if out.Diff != "" {
		result["diff"] = out.Diff
	}
	if err := w.broadcaster.PublishRequestCompleted(w.ctx, req.SessionID, req.RequestID, result); err != nil {
		w.log.Error("Failed to publish completion event", "error", err)
	}
	if err := w.broadcaster.PublishModUpdated(w.ctx, req.SessionID, out.ModName, out.Units); err != nil {
		w.log.Error("Failed to publish mod update event", "error", err)
	}

	w.log.Info("Request processed successfully",
		"worker_id", w.id,
		"request_id", req.RequestID,
		"type", req.Type,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

func (w *Worker) fail(st *queuePkg.RequestStatus, msg string) {
	// Record the failure even when shutdown cancelled the operation.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	st.Status = queuePkg.StatusFailed
	st.Error = msg
	if err := w.queue.SetStatus(ctx, st); err != nil {
		w.log.Error("Failed to update request status", "error", err, "request_id", st.RequestID)
	}
	if err := w.broadcaster.PublishRequestFailed(ctx, st.SessionID, st.RequestID, msg); err != nil {
		w.log.Error("Failed to publish failure event", "error", err)
	}
}
