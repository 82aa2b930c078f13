package affect

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// NotificationEvent is what notifiers receive for every reaction event of a
// target.
type NotificationEvent struct {
	TargetID  TargetID `json:"target_id"`
	Timestamp int64    `json:"timestamp"`
	Event     Event    `json:"event"`
	// State is the target's state once the whole Apply call finished.
	State []Affect `json:"state"`
	// TraceID links the event to the request that caused it, when traced.
	TraceID string `json:"trace_id,omitempty"`
}

// JSON returns the notification event as JSON bytes.
func (ne NotificationEvent) JSON() ([]byte, error) {
	return json.Marshal(ne)
}

// Notifier is implemented by every notification channel.
type Notifier interface {
	// ID returns a unique identifier for this notifier.
	ID() string

	// Type returns the channel type, e.g. "webhook" or "websocket".
	Type() string

	// Notify delivers one event. The context bounds the delivery.
	Notify(ctx context.Context, event NotificationEvent) error

	// Close releases the notifier's resources.
	Close() error
}

type notificationJob struct {
	Event       NotificationEvent
	NotifierIDs []string
}

const (
	notificationQueueSize = 1024
	notifyMaxRetries      = 3
	notifyInitialBackoff  = 100 * time.Millisecond
	notifyJobTimeout      = 30 * time.Second
)

// NotificationManager routes reaction events to registered notifiers. Enqueued
// events are delivered by a background worker with retry and backoff.
type NotificationManager struct {
	mu        sync.RWMutex
	notifiers map[string]Notifier
	jobs      chan notificationJob
	closed    bool
	wg        sync.WaitGroup
	logger    Logger
}

// NewNotificationManager creates a manager that logs nowhere.
func NewNotificationManager() *NotificationManager {
	return NewNotificationManagerWithLogger(nil)
}

// NewNotificationManagerWithLogger creates a manager that reports delivery
// failures to logger.
func NewNotificationManagerWithLogger(logger Logger) *NotificationManager {
	if logger == nil {
		logger = NewNoOpLogger()
	}
	mgr := &NotificationManager{
		notifiers: make(map[string]Notifier),
		jobs:      make(chan notificationJob, notificationQueueSize),
		logger:    logger,
	}
	mgr.startWorkers(1)
	return mgr
}

// RegisterNotifier registers a notifier with the manager.
func (nm *NotificationManager) RegisterNotifier(notifier Notifier) error {
	if notifier == nil {
		return errors.New("notifier cannot be nil")
	}

	id := notifier.ID()
	if id == "" {
		return errors.New("notifier ID cannot be empty")
	}

	nm.mu.Lock()
	defer nm.mu.Unlock()

	if nm.closed {
		return errors.New("notification manager is closed")
	}
	if _, exists := nm.notifiers[id]; exists {
		return errors.Errorf("notifier with ID %s already exists", id)
	}

	nm.notifiers[id] = notifier
	return nil
}

// UnregisterNotifier closes and removes a notifier.
func (nm *NotificationManager) UnregisterNotifier(id string) error {
	nm.mu.Lock()
	notifier, exists := nm.notifiers[id]
	if exists {
		delete(nm.notifiers, id)
	}
	nm.mu.Unlock()

	if !exists {
		return errors.Errorf("notifier with ID %s not found", id)
	}

	if err := notifier.Close(); err != nil {
		return errors.Wrapf(err, "error closing notifier %s", id)
	}
	return nil
}

// GetNotifier retrieves a notifier by ID.
func (nm *NotificationManager) GetNotifier(id string) (Notifier, bool) {
	nm.mu.RLock()
	defer nm.mu.RUnlock()
	notifier, exists := nm.notifiers[id]
	return notifier, exists
}

// ListNotifiers returns the IDs of all registered notifiers.
func (nm *NotificationManager) ListNotifiers() []string {
	nm.mu.RLock()
	defer nm.mu.RUnlock()
	ids := make([]string, 0, len(nm.notifiers))
	for id := range nm.notifiers {
		ids = append(ids, id)
	}
	return ids
}

// Enqueue hands an event to the background worker. It never blocks: when the
// queue is full the event is dropped and logged.
func (nm *NotificationManager) Enqueue(event NotificationEvent, notifierIDs []string) {
	if len(notifierIDs) == 0 {
		return
	}

	nm.mu.RLock()
	defer nm.mu.RUnlock()
	if nm.closed {
		return
	}

	select {
	case nm.jobs <- notificationJob{Event: event, NotifierIDs: notifierIDs}:
	default:
		nm.logger.Warnf("notification queue full, dropping event: target_id=%s event_id=%s", event.TargetID, event.Event.ID)
	}
}

func (nm *NotificationManager) startWorkers(n int) {
	for range n {
		nm.wg.Add(1)
		go nm.worker()
	}
}

func (nm *NotificationManager) worker() {
	defer nm.wg.Done()
	for job := range nm.jobs {
		nm.dispatchJob(job)
	}
}

func (nm *NotificationManager) dispatchJob(job notificationJob) {
	ctx, cancel := context.WithTimeout(context.Background(), notifyJobTimeout)
	defer cancel()

	for _, id := range job.NotifierIDs {
		nm.notifyWithRetry(ctx, id, job.Event)
	}
}

func (nm *NotificationManager) notifyWithRetry(ctx context.Context, notifierID string, event NotificationEvent) {
	notifier, ok := nm.GetNotifier(notifierID)
	if !ok {
		nm.logger.Warnf("notification failed: notifier=%s error=notifier not found", notifierID)
		return
	}

	backoff := notifyInitialBackoff
	for attempt := 0; attempt <= notifyMaxRetries; attempt++ {
		err := notifier.Notify(ctx, event)
		if err == nil {
			return
		}

		nm.logger.Warnf("notification failed: notifier=%s attempt=%d error=%v", notifierID, attempt+1, err)
		if attempt == notifyMaxRetries {
			nm.logger.Errorf("notification failed after %d attempts: notifier=%s", notifyMaxRetries+1, notifierID)
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
			backoff *= 2
		}
	}
}

// Close drains the queue, stops the worker and closes every notifier.
func (nm *NotificationManager) Close() error {
	nm.mu.Lock()
	if nm.closed {
		nm.mu.Unlock()
		return nil
	}
	nm.closed = true
	close(nm.jobs)
	nm.mu.Unlock()

	nm.wg.Wait()

	nm.mu.Lock()
	var errs []string
	for id, notifier := range nm.notifiers {
		if err := notifier.Close(); err != nil {
			errs = append(errs, errors.Wrapf(err, "error closing notifier %s", id).Error())
		}
	}
	nm.notifiers = make(map[string]Notifier)
	nm.mu.Unlock()

	if len(errs) > 0 {
		return errors.Errorf("errors closing notifiers: %s", strings.Join(errs, "; "))
	}
	return nil
}
