package main

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/daniacca/affectdb/internal/affect"
	"github.com/daniacca/affectdb/internal/affect/notifiers"
	"github.com/daniacca/affectdb/internal/affect/storage/sqlite"
)

// errStoreDisabled is returned by snapshot endpoints when no database is configured.
var errStoreDisabled = errors.New("snapshot storage not configured")

// statusForError maps engine and storage errors to HTTP status codes.
func statusForError(err error) int {
	var validationErr *affect.ValidationError
	switch {
	case errors.Is(err, affect.ErrTargetNotFound), errors.Is(err, sqlite.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, affect.ErrTargetExists):
		return http.StatusConflict
	case errors.Is(err, affect.ErrUnhandledCombination):
		return http.StatusUnprocessableEntity
	case affect.IsInvariantViolation(err),
		errors.As(err, &validationErr),
		errors.Is(err, affect.ErrClockRewind),
		errors.Is(err, affect.ErrUnknownKind):
		return http.StatusBadRequest
	case errors.Is(err, errStoreDisabled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusForError(err)
	if status >= http.StatusInternalServerError {
		s.logger.Errorf("Request failed: status=%d error=%v", status, err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func recordSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// lookupTarget resolves the {id} path segment.
func (s *Server) lookupTarget(r *http.Request) (*affect.Target, error) {
	id := affect.TargetID(r.PathValue("id"))
	t, ok := s.manager.GetTarget(id)
	if !ok {
		return nil, errors.Wrapf(affect.ErrTargetNotFound, "target %s", id)
	}
	return t, nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// targetResponse is the JSON view of a target.
type targetResponse struct {
	ID      affect.TargetID `json:"id"`
	Time    float64         `json:"time"`
	State   affect.State    `json:"state"`
	Running bool            `json:"running"`
}

// writeTarget writes the JSON view of t.
func (s *Server) writeTarget(w http.ResponseWriter, status int, t *affect.Target) {
	s.writeSnapshotView(w, status, t.Snapshot(), t.IsRunning())
}

// writeSnapshotView writes snap as a target view. A snapshot that does not
// rebuild into a state is a server fault, never the caller's.
func (s *Server) writeSnapshotView(w http.ResponseWriter, status int, snap affect.Snapshot, running bool) {
	st, err := snap.State()
	if err != nil {
		s.writeError(w, errors.Errorf("target %s holds an unreadable state: %v", snap.TargetID, err))
		return
	}
	writeJSON(w, status, targetResponse{ID: snap.TargetID, Time: snap.Time, State: st, Running: running})
}

// GET /targets
func (s *Server) handleListTargets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]affect.TargetID{"targets": s.manager.ListTargets()})
}

// POST /targets
// Body (optional): { "id": "hero" }
type createTargetRequest struct {
	ID affect.TargetID `json:"id"`
}

func (s *Server) handleCreateTarget(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var req createTargetRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json: "+err.Error(), http.StatusBadRequest)
			return
		}
	}

	t, err := s.manager.CreateTarget(req.ID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	t.SetTickInterval(s.tickInterval)
	s.logger.Infof("Target created: target_id=%s", t.ID())
	s.writeTarget(w, http.StatusCreated, t)
}

// GET /targets/{id}
func (s *Server) handleGetTarget(w http.ResponseWriter, r *http.Request) {
	t, err := s.lookupTarget(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeTarget(w, http.StatusOK, t)
}

// DELETE /targets/{id}
func (s *Server) handleDeleteTarget(w http.ResponseWriter, r *http.Request) {
	id := affect.TargetID(r.PathValue("id"))
	if err := s.manager.DeleteTarget(id); err != nil {
		s.writeError(w, err)
		return
	}
	s.logger.Infof("Target deleted: target_id=%s", id)
	w.WriteHeader(http.StatusNoContent)
}

// applyRequest describes one incoming affect. Level defaults to 1 for base
// kinds; Now, when set, decays the target up to that time first.
type applyRequest struct {
	Kind     affect.Kind      `json:"kind"`
	Quantity float64          `json:"quantity"`
	Level    affect.RateLevel `json:"level"`
	Onset    float64          `json:"onset"`
	Now      *float64         `json:"now,omitempty"`
}

func (req applyRequest) toAffect() affect.Affect {
	if req.Kind == affect.Freeze {
		return affect.NewFreeze(req.Quantity, req.Onset)
	}
	level := req.Level
	if level == 0 {
		level = affect.Level1
	}
	return affect.Affect{Kind: req.Kind, Quantity: req.Quantity, Level: level, Onset: req.Onset}
}

type applyResponse struct {
	TargetID affect.TargetID `json:"target_id"`
	Time     float64         `json:"time"`
	State    affect.State    `json:"state"`
	Events   []affect.Event  `json:"events"`
}

// POST /targets/{id}/affects
func (s *Server) handleApplyAffect(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	t, err := s.lookupTarget(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	var req applyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json: "+err.Error(), http.StatusBadRequest)
		return
	}

	ctx, span := s.tracer.Start(r.Context(), "affect.apply", trace.WithAttributes(
		attribute.String("affect.target_id", string(t.ID())),
		attribute.String("affect.kind", req.Kind.String()),
		attribute.Float64("affect.quantity", req.Quantity),
	))
	defer span.End()

	var res affect.Result
	if req.Now != nil {
		res, err = t.ApplyAt(ctx, req.toAffect(), *req.Now)
	} else {
		res, err = t.Apply(ctx, req.toAffect())
	}
	if err != nil {
		recordSpanError(span, err)
		s.writeError(w, err)
		return
	}
	span.SetAttributes(attribute.Int("affect.events", len(res.Events)))

	s.logger.Debugf("Affect applied: target_id=%s kind=%s state=%s", t.ID(), req.Kind, res.State)
	events := res.Events
	if events == nil {
		events = []affect.Event{}
	}
	writeJSON(w, http.StatusOK, applyResponse{TargetID: t.ID(), Time: t.Now(), State: res.State, Events: events})
}

// POST /targets/{id}/advance
// Body: { "to": 12.5 }
type advanceRequest struct {
	To float64 `json:"to"`
}

func (s *Server) handleAdvance(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	t, err := s.lookupTarget(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	var req advanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json: "+err.Error(), http.StatusBadRequest)
		return
	}

	_, span := s.tracer.Start(r.Context(), "affect.advance", trace.WithAttributes(
		attribute.String("affect.target_id", string(t.ID())),
		attribute.Float64("affect.to", req.To),
	))
	defer span.End()

	if _, err := t.Advance(req.To); err != nil {
		recordSpanError(span, err)
		s.writeError(w, err)
		return
	}
	s.writeTarget(w, http.StatusOK, t)
}

// POST /targets/{id}/start
// Decays the target in real time. Query param: interval in milliseconds
// (default: 100ms).
func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	t, err := s.lookupTarget(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	interval := 100 * time.Millisecond
	if intervalStr := r.URL.Query().Get("interval"); intervalStr != "" {
		ms, err := strconv.Atoi(intervalStr)
		if err != nil || ms <= 0 {
			http.Error(w, "invalid interval: must be a positive integer (milliseconds)", http.StatusBadRequest)
			return
		}
		interval = time.Duration(ms) * time.Millisecond
	}

	t.Run(interval)
	s.logger.Infof("Target started: target_id=%s interval=%v", t.ID(), interval)
	s.writeTarget(w, http.StatusOK, t)
}

// POST /targets/{id}/stop
func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	t, err := s.lookupTarget(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	t.Stop()
	s.logger.Infof("Target stopped: target_id=%s", t.ID())
	s.writeTarget(w, http.StatusOK, t)
}

// POST /batch
// Body: { "items": [ { "target_id": "hero", "kind": "Fire", "quantity": 2, "now": 1 }, ... ] }
type batchRequest struct {
	Items []batchRequestItem `json:"items"`
}

type batchRequestItem struct {
	TargetID affect.TargetID `json:"target_id"`
	applyRequest
}

type batchResponseItem struct {
	TargetID affect.TargetID `json:"target_id"`
	State    affect.State    `json:"state"`
	Events   []affect.Event  `json:"events,omitempty"`
	Error    string          `json:"error,omitempty"`
}

func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var req batchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json: "+err.Error(), http.StatusBadRequest)
		return
	}

	items := make([]affect.BatchItem, len(req.Items))
	for i, item := range req.Items {
		items[i] = affect.BatchItem{TargetID: item.TargetID, Affect: item.toAffect(), Now: item.Now}
	}

	ctx, span := s.tracer.Start(r.Context(), "affect.batch", trace.WithAttributes(
		attribute.Int("affect.items", len(items)),
	))
	defer span.End()

	results, err := s.manager.ApplyBatch(ctx, items)
	if err != nil {
		recordSpanError(span, err)
		s.writeError(w, err)
		return
	}

	out := make([]batchResponseItem, len(results))
	for i, res := range results {
		out[i] = batchResponseItem{TargetID: res.TargetID, State: res.Result.State, Events: res.Result.Events}
		if res.Err != nil {
			out[i].Error = res.Err.Error()
		}
	}
	writeJSON(w, http.StatusOK, map[string][]batchResponseItem{"results": out})
}

// POST /targets/{id}/snapshot
func (s *Server) handleSaveSnapshot(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.writeError(w, errStoreDisabled)
		return
	}
	t, err := s.lookupTarget(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	snap := t.Snapshot()
	if err := s.store.Save(r.Context(), snap); err != nil {
		s.writeError(w, errors.Wrapf(err, "save snapshot of %s", t.ID()))
		return
	}
	s.logger.Debugf("Snapshot saved: target_id=%s time=%g", t.ID(), snap.Time)
	writeJSON(w, http.StatusOK, snap)
}

// POST /targets/{id}/restore
// Loads the stored snapshot, creating the target if it does not exist.
func (s *Server) handleRestoreSnapshot(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.writeError(w, errStoreDisabled)
		return
	}
	id := affect.TargetID(r.PathValue("id"))

	snap, err := s.store.Load(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}

	t, ok := s.manager.GetTarget(id)
	if !ok {
		if t, err = s.manager.CreateTarget(id); err != nil {
			s.writeError(w, err)
			return
		}
		t.SetTickInterval(s.tickInterval)
	}
	if err := t.Restore(snap); err != nil {
		s.writeError(w, err)
		return
	}
	s.logger.Infof("Target restored: target_id=%s time=%g", id, snap.Time)
	s.writeTarget(w, http.StatusOK, t)
}

// GET /snapshots
func (s *Server) handleListSnapshots(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.writeError(w, errStoreDisabled)
		return
	}
	ids, err := s.store.List(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]affect.TargetID{"snapshots": ids})
}

// DELETE /targets/{id}/snapshot
// The live target, if any, is left alone.
func (s *Server) handleDeleteSnapshot(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.writeError(w, errStoreDisabled)
		return
	}
	id := affect.TargetID(r.PathValue("id"))
	if err := s.store.Delete(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}
	s.logger.Infof("Snapshot deleted: target_id=%s", id)
	w.WriteHeader(http.StatusNoContent)
}

// GET /notifiers
func (s *Server) handleListNotifiers(w http.ResponseWriter, _ *http.Request) {
	ids := s.notifierMgr.ListNotifiers()
	list := make([]map[string]string, 0, len(ids))
	for _, id := range ids {
		if n, ok := s.notifierMgr.GetNotifier(id); ok {
			list = append(list, map[string]string{"id": id, "type": n.Type()})
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"notifiers": list})
}

// POST /notifiers
// Body: { "type": "webhook", "id": "my-webhook", "config": { "url": "http://...", "headers": {...}, "events": ["freeze"] } }
type registerNotifierRequest struct {
	Type   string `json:"type"`
	ID     string `json:"id"`
	Config struct {
		URL     string             `json:"url"`
		Headers map[string]string  `json:"headers"`
		Events  []affect.EventType `json:"events"`
	} `json:"config"`
}

func (s *Server) handleRegisterNotifier(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var req registerNotifierRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.ID == "" {
		http.Error(w, "notifier ID is required", http.StatusBadRequest)
		return
	}

	var notifier affect.Notifier
	switch req.Type {
	case "webhook":
		if req.Config.URL == "" {
			http.Error(w, "webhook URL is required", http.StatusBadRequest)
			return
		}
		opts := []notifiers.WebhookOption{notifiers.WithEventTypes(req.Config.Events...)}
		for k, v := range req.Config.Headers {
			opts = append(opts, notifiers.WithHeader(k, v))
		}
		notifier = notifiers.NewWebhook(req.ID, req.Config.URL, opts...)
	default:
		http.Error(w, "unknown notifier type: "+req.Type, http.StatusBadRequest)
		return
	}

	if err := s.notifierMgr.RegisterNotifier(notifier); err != nil {
		http.Error(w, "cannot register notifier: "+err.Error(), http.StatusBadRequest)
		return
	}
	s.refreshNotifierRoutes()
	s.logger.Infof("Notifier registered: id=%s type=%s", req.ID, req.Type)

	w.WriteHeader(http.StatusCreated)
	_, _ = w.Write([]byte("notifier registered"))
}

// DELETE /notifiers/{id}
func (s *Server) handleUnregisterNotifier(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == streamNotifierID {
		http.Error(w, "the stream notifier cannot be removed", http.StatusBadRequest)
		return
	}
	if err := s.notifierMgr.UnregisterNotifier(id); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	s.refreshNotifierRoutes()
	s.logger.Infof("Notifier unregistered: id=%s", id)
	w.WriteHeader(http.StatusNoContent)
}
