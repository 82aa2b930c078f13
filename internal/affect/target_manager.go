package affect

import (
	"context"
	"sort"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// TargetManager holds many isolated targets sharing one engine.
type TargetManager struct {
	mu       sync.RWMutex
	targets  map[TargetID]*Target
	engine   *Engine
	logger   Logger
	notifier *NotificationManager
	// notifierIDs is applied to every target created after it is set.
	notifierIDs []string
}

// NewTargetManager creates a manager whose targets use engine.
func NewTargetManager(engine *Engine) *TargetManager {
	return NewTargetManagerWithLogger(engine, nil)
}

// NewTargetManagerWithLogger creates a manager that passes logger to its targets.
func NewTargetManagerWithLogger(engine *Engine, logger Logger) *TargetManager {
	if engine == nil {
		engine = NewEngine(WithLogger(logger))
	}
	if logger == nil {
		logger = NewNoOpLogger()
	}
	return &TargetManager{
		targets: make(map[TargetID]*Target),
		engine:  engine,
		logger:  logger,
	}
}

// SetNotificationManager routes events of every target, existing and future,
// to the given notifiers.
func (tm *TargetManager) SetNotificationManager(mgr *NotificationManager, notifierIDs ...string) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	tm.notifier = mgr
	tm.notifierIDs = append([]string(nil), notifierIDs...)
	for _, t := range tm.targets {
		t.SetNotificationManager(mgr, notifierIDs...)
	}
}

// CreateTarget creates a target with the given ID, or a random one if id is
// empty. It fails if the ID is taken.
func (tm *TargetManager) CreateTarget(id TargetID) (*Target, error) {
	if id == "" {
		id = TargetID(NewRandomID())
	}

	tm.mu.Lock()
	defer tm.mu.Unlock()

	if _, exists := tm.targets[id]; exists {
		return nil, errors.Wrapf(ErrTargetExists, "target %s", id)
	}

	t := NewTarget(id, tm.engine)
	t.SetLogger(tm.logger)
	if tm.notifier != nil {
		t.SetNotificationManager(tm.notifier, tm.notifierIDs...)
	}
	tm.targets[id] = t
	tm.logger.Debugf("target created: target_id=%s", id)
	return t, nil
}

// GetTarget retrieves a target by ID.
func (tm *TargetManager) GetTarget(id TargetID) (*Target, bool) {
	tm.mu.RLock()
	defer tm.mu.RUnlock()
	t, exists := tm.targets[id]
	return t, exists
}

// DeleteTarget stops and removes a target.
func (tm *TargetManager) DeleteTarget(id TargetID) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	t, exists := tm.targets[id]
	if !exists {
		return errors.Wrapf(ErrTargetNotFound, "target %s", id)
	}
	t.Stop()
	delete(tm.targets, id)
	return nil
}

// ListTargets returns all target IDs in sorted order.
func (tm *TargetManager) ListTargets() []TargetID {
	tm.mu.RLock()
	defer tm.mu.RUnlock()

	ids := make([]TargetID, 0, len(tm.targets))
	for id := range tm.targets {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// BatchItem is one affect to apply to one target. A nil Now applies at the
// target's clock as it stands when the item's turn comes.
type BatchItem struct {
	TargetID TargetID
	Affect   Affect
	Now      *float64
}

// BatchResult pairs a BatchItem with its outcome.
type BatchResult struct {
	TargetID TargetID
	Result   Result
	Err      error
}

// ApplyBatch applies items, running different targets in parallel and the
// items of one target in input order. Results line up with items. Per-item
// failures land in BatchResult.Err; the returned error is only set when ctx
// ends the batch early.
func (tm *TargetManager) ApplyBatch(ctx context.Context, items []BatchItem) ([]BatchResult, error) {
	results := make([]BatchResult, len(items))
	byTarget := make(map[TargetID][]int)
	order := make([]TargetID, 0)
	for i, item := range items {
		if _, seen := byTarget[item.TargetID]; !seen {
			order = append(order, item.TargetID)
		}
		byTarget[item.TargetID] = append(byTarget[item.TargetID], i)
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, id := range order {
		indexes := byTarget[id]
		g.Go(func() error {
			t, ok := tm.GetTarget(id)
			for _, idx := range indexes {
				results[idx].TargetID = id
				if !ok {
					results[idx].Err = errors.Wrapf(ErrTargetNotFound, "target %s", id)
					continue
				}
				if err := gctx.Err(); err != nil {
					return err
				}
				item := items[idx]
				var (
					res Result
					err error
				)
				if item.Now == nil {
					res, err = t.Apply(gctx, item.Affect)
				} else {
					res, err = t.ApplyAt(gctx, item.Affect, *item.Now)
				}
				results[idx].Result = res
				results[idx].Err = err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}
