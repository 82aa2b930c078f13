package affect

import (
	"github.com/pkg/errors"
)

// selfConsumeRatio is the share of its own quantity an incoming affect loses
// when it has nothing to react with.
const selfConsumeRatio = 0.2

// Result is the outcome of one Apply call.
type Result struct {
	State  State   `json:"state"`
	Events []Event `json:"events"`
}

// Engine applies incoming affects to states. It holds no per-target data and
// is safe for concurrent use across targets.
type Engine struct {
	logger Logger
	strict bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger used for unhandled combinations.
func WithLogger(logger Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithStrict makes Apply fail with ErrUnhandledCombination instead of
// settling the incoming affect alone when the order table has no entry.
func WithStrict(strict bool) Option {
	return func(e *Engine) {
		e.strict = strict
	}
}

// NewEngine creates an engine. By default it logs nothing and is lenient.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{logger: NewNoOpLogger()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Strict reports whether the engine rejects unhandled combinations.
func (e *Engine) Strict() bool {
	return e.strict
}

// Apply reacts incoming against s at simulation time now and returns the new
// state with the events produced, in resolution order. On error the returned
// state is s.
func (e *Engine) Apply(s State, incoming Affect, now float64) (Result, error) {
	if err := ValidateAffect(incoming); err != nil {
		return Result{State: s}, &InvariantViolation{Op: "apply", Detail: err.Error()}
	}
	var events []Event
	next, err := e.apply(s, incoming, now, &events)
	if err != nil {
		return Result{State: s, Events: events}, err
	}
	return Result{State: next, Events: events}, nil
}

func (e *Engine) apply(s State, incoming Affect, now float64, events *[]Event) (State, error) {
	order, ok := ResolveOrder(s, incoming.Kind)
	switch {
	case ok && len(order) == 2:
		first, _ := s.Get(order[0])
		second, _ := s.Get(order[1])
		reacted := e.react(first, incoming, now, events)
		next, err := e.apply(reacted, second, now, events)
		if err != nil {
			return State{}, err
		}
		return Cleanup(next, incoming.Kind), nil

	case ok && len(order) == 1 && s.Len() == 2:
		partner, _ := s.Get(order[0])
		remains := s.Without(order[0])
		reacted := e.react(partner, incoming, now, events)
		return Cleanup(CombineStates(remains, reacted), incoming.Kind), nil

	case ok && len(order) == 1 && s.Len() == 1:
		partner, _ := s.Get(order[0])
		return Cleanup(e.react(partner, incoming, now, events), incoming.Kind), nil
	}

	settled := stateOf(incoming.Consume(selfConsumeRatio * incoming.Quantity))
	if !ok {
		e.logger.Warnf("unhandled combination: state=%v incoming=%s", s.Kinds(), incoming.Kind)
		if e.strict {
			return State{}, errors.Wrapf(ErrUnhandledCombination, "state %v, incoming %s", s.Kinds(), incoming.Kind)
		}
		*events = append(*events, newEvent(EventUnhandledCombination, incoming.Kind, incoming.Kind, now, settled,
			"no order for %s against %v; %s settles alone", incoming.Kind, s.Kinds(), incoming.Kind))
		return settled, nil
	}
	*events = append(*events, newEvent(EventSelfConsume, incoming.Kind, incoming.Kind, now, settled,
		"%s found no partner", incoming.Kind))
	return settled, nil
}

func (e *Engine) react(a, b Affect, now float64, events *[]Event) State {
	result, ev := React(a, b, now)
	e.logger.Debugf("reaction: %s", ev.Message)
	*events = append(*events, ev)
	return result
}
