package affect

import "fmt"

// EventType names the outcome recorded by an Event.
type EventType string

const (
	// EventDischarge: Water and Elect both lost the discharge amount.
	EventDischarge EventType = "discharge"
	// EventFizzle: Water met Elect but one side was below the discharge amount.
	EventFizzle EventType = "fizzle"
	EventFreeze  EventType = "freeze"
	EventMatchup EventType = "matchup"
	// EventSelfConsume: the incoming affect found no partner and settled alone.
	EventSelfConsume EventType = "self_consume"
	// EventUnhandledCombination: the state held a pair the order table does not
	// cover; the incoming affect settled alone.
	EventUnhandledCombination EventType = "unhandled_combination"
)

// Event is a reaction notification, emitted in the order reactions resolve.
type Event struct {
	ID      string    `json:"id"`
	Type    EventType `json:"type"`
	First   Kind      `json:"first"`
	Second  Kind      `json:"second"`
	Time    float64   `json:"time"`
	Message string    `json:"message"`
	// Result is the state the reaction produced.
	Result []Affect `json:"result,omitempty"`
}

func newEvent(typ EventType, first, second Kind, now float64, result State, format string, args ...any) Event {
	return Event{
		ID:      NewRandomID(),
		Type:    typ,
		First:   first,
		Second:  second,
		Time:    now,
		Message: fmt.Sprintf(format, args...),
		Result:  result.Affects(),
	}
}

func (e Event) String() string {
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}
