package subtitle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

// TaskFetch is the asynq task type consumed by the acquisition worker.
const TaskFetch = "subtitle:fetch"

// Scheduler hands subtitle acquisition to an external worker. Scheduling is
// fire-and-forget: a nil error only means the request was accepted.
type Scheduler interface {
	ScheduleFetch(ctx context.Context, item Item) error
}

// TaskID is the deterministic id of the fetch task for an item, so repeated
// scans never queue the same item twice.
func TaskID(item Item) string {
	return fmt.Sprintf("subtitle:%s:%d", item.Type, item.ID)
}

// NewFetchTask builds the asynq task for an item.
func NewFetchTask(item Item, queue string) (*asynq.Task, error) {
	payload, err := json.Marshal(item)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	opts := []asynq.Option{
		asynq.TaskID(TaskID(item)),
		asynq.MaxRetry(3),
		asynq.Retention(24 * time.Hour),
	}
	if queue != "" {
		opts = append(opts, asynq.Queue(queue))
	}
	return asynq.NewTask(TaskFetch, payload, opts...), nil
}

// QueueScheduler enqueues fetch tasks into Redis through asynq.
type QueueScheduler struct {
	client *asynq.Client
	queue  string
	log    *slog.Logger
}

// NewQueueScheduler connects to Redis at redisAddr.
func NewQueueScheduler(redisAddr, queue string) *QueueScheduler {
	return &QueueScheduler{
		client: asynq.NewClient(asynq.RedisClientOpt{Addr: redisAddr}),
		queue:  queue,
		log:    slog.With("component", "subtitle-scheduler"),
	}
}

// ScheduleFetch enqueues a fetch task. An item that is already queued is
// not an error.
func (s *QueueScheduler) ScheduleFetch(ctx context.Context, item Item) error {
	task, err := NewFetchTask(item, s.queue)
	if err != nil {
		return err
	}

	info, err := s.client.EnqueueContext(ctx, task)
	if err != nil {
		if isTaskConflict(err) {
			s.log.Debug("Subtitle fetch already queued", "task_id", TaskID(item))
			return nil
		}
		return fmt.Errorf("enqueue: %w", err)
	}

	s.log.Debug("Subtitle fetch queued",
		"task_id", info.ID,
		"queue", info.Queue,
		"languages", item.Languages,
	)
	return nil
}

// Close releases the Redis connection.
func (s *QueueScheduler) Close() error {
	return s.client.Close()
}

func isTaskConflict(err error) bool {
	return errors.Is(err, asynq.ErrDuplicateTask) || errors.Is(err, asynq.ErrTaskIDConflict)
}

// LogScheduler only records what would be fetched. Used when no queue is
// configured.
type LogScheduler struct {
	log *slog.Logger
}

// NewLogScheduler creates a scheduler that logs requests.
func NewLogScheduler() *LogScheduler {
	return &LogScheduler{log: slog.With("component", "subtitle-scheduler")}
}

// ScheduleFetch logs the request.
func (s *LogScheduler) ScheduleFetch(ctx context.Context, item Item) error {
	s.log.Info("Subtitle fetch requested",
		"item_type", item.Type,
		"item_id", item.ID,
		"languages", item.Languages,
	)
	return nil
}
