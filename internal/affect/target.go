package affect

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/trace"
)

// TargetID identifies a target.
type TargetID string

// DefaultTickInterval is the simulation-time step Advance decays in.
const DefaultTickInterval = 0.1

// maxAdvanceTicks bounds the ticks of one Advance call.
const maxAdvanceTicks = 100_000

// Target owns the state of one character or object and its simulation clock.
// Calls on a Target are serialized; different targets are independent.
type Target struct {
	mu          sync.Mutex
	id          TargetID
	engine      *Engine
	state       State
	now         float64
	interval    float64
	notifier    *NotificationManager
	notifierIDs []string
	logger      Logger
	stopCh      chan struct{}
	isRunning   bool
}

// NewTarget creates a target with an empty state at time zero.
func NewTarget(id TargetID, engine *Engine) *Target {
	if engine == nil {
		engine = NewEngine()
	}
	return &Target{
		id:       id,
		engine:   engine,
		interval: DefaultTickInterval,
		logger:   NewNoOpLogger(),
		stopCh:   make(chan struct{}),
	}
}

// ID returns the target's identifier.
func (t *Target) ID() TargetID {
	return t.id
}

// SetLogger sets the logger for this target.
func (t *Target) SetLogger(logger Logger) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if logger == nil {
		logger = NewNoOpLogger()
	}
	t.logger = logger
}

// SetNotificationManager routes this target's events to the given notifiers.
func (t *Target) SetNotificationManager(mgr *NotificationManager, notifierIDs ...string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.notifier = mgr
	t.notifierIDs = append([]string(nil), notifierIDs...)
}

// SetTickInterval sets the decay step used by Advance. Non-positive values
// are ignored.
func (t *Target) SetTickInterval(interval float64) {
	if interval <= 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.interval = interval
}

// State returns the current state.
func (t *Target) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Now returns the target's simulation clock.
func (t *Target) Now() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.now
}

// Apply reacts incoming with the current state at the target's clock.
func (t *Target) Apply(ctx context.Context, incoming Affect) (Result, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.applyLocked(ctx, incoming, t.now)
}

// ApplyAt decays the state up to now, then reacts incoming with it.
func (t *Target) ApplyAt(ctx context.Context, incoming Affect, now float64) (Result, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.advanceLocked(now); err != nil {
		return Result{State: t.state}, err
	}
	return t.applyLocked(ctx, incoming, now)
}

func (t *Target) applyLocked(ctx context.Context, incoming Affect, now float64) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{State: t.state}, err
	}
	res, err := t.engine.Apply(t.state, incoming, now)
	if err != nil {
		t.logger.Warnf("apply failed: target_id=%s kind=%s error=%v", t.id, incoming.Kind, err)
		return res, errors.Wrapf(err, "target %s", t.id)
	}
	t.state = res.State
	t.logger.Debugf("affect applied: target_id=%s kind=%s events=%d state=%s", t.id, incoming.Kind, len(res.Events), res.State)
	t.notifyLocked(ctx, res)
	return res, nil
}

func (t *Target) notifyLocked(ctx context.Context, res Result) {
	if t.notifier == nil || len(t.notifierIDs) == 0 {
		return
	}
	var traceID string
	if sc := trace.SpanFromContext(ctx).SpanContext(); sc.IsValid() {
		traceID = sc.TraceID().String()
	}
	affects := res.State.Affects()
	for _, ev := range res.Events {
		t.notifier.Enqueue(NotificationEvent{
			TargetID:  t.id,
			Timestamp: time.Now().Unix(),
			Event:     ev,
			State:     affects,
			TraceID:   traceID,
		}, t.notifierIDs)
	}
}

// Advance moves the clock forward to `to`, decaying the state one tick
// interval at a time.
func (t *Target) Advance(to float64) (State, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.advanceLocked(to); err != nil {
		return t.state, err
	}
	return t.state, nil
}

func (t *Target) advanceLocked(to float64) error {
	if math.IsNaN(to) || math.IsInf(to, 0) {
		return &InvariantViolation{Op: "advance", Detail: fmt.Sprintf("target %s: time must be finite, got %g", t.id, to)}
	}
	if to < t.now {
		return errors.Wrapf(ErrClockRewind, "target %s: at %g, asked for %g", t.id, t.now, to)
	}
	for ticks := 0; t.now < to; ticks++ {
		if t.state.IsEmpty() {
			t.now = to
			break
		}
		next := t.now + t.interval
		// The last tick is clipped to `to`. Past maxAdvanceTicks, or once the
		// step no longer moves the clock, the rest is decayed in one step.
		if to-t.now <= t.interval || next <= t.now || ticks >= maxAdvanceTicks {
			next = to
		}
		t.state = t.state.Decay(t.now, next-t.now)
		t.now = next
	}
	return nil
}

// Snapshot captures the target's state and clock.
func (t *Target) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Snapshot{
		TargetID: t.id,
		Time:     t.now,
		Affects:  t.state.Affects(),
	}
}

// Restore replaces the state and clock with the snapshot's.
func (t *Target) Restore(snapshot Snapshot) error {
	st, err := snapshot.State()
	if err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = st
	t.now = snapshot.Time
	return nil
}

// Run advances the clock in real time on its own goroutine, one tick per
// interval. Calling it while running does nothing; it may be called again
// after Stop.
func (t *Target) Run(interval time.Duration) {
	t.mu.Lock()
	if t.isRunning {
		t.mu.Unlock()
		return
	}
	t.stopCh = make(chan struct{})
	t.isRunning = true
	stopCh := t.stopCh
	t.mu.Unlock()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				t.tick(interval.Seconds())
			case <-stopCh:
				return
			}
		}
	}()
}

// tick advances the clock by step seconds. Failures are logged since no
// caller is waiting on a background tick.
func (t *Target) tick(step float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.advanceLocked(t.now + step); err != nil {
		t.logger.Errorf("tick failed: target_id=%s error=%v", t.id, err)
	}
}

// Stop halts a running target.
func (t *Target) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.isRunning {
		return
	}
	t.isRunning = false
	close(t.stopCh)
}

// IsRunning reports whether the target advances in real time.
func (t *Target) IsRunning() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.isRunning
}
