package loader

// Event is the event type for loaded machines. Transitions match on Name.
type Event struct {
	Name string
	Data any
}

// NewEvent creates an event with an optional payload.
func NewEvent(name string, data any) Event {
	return Event{Name: name, Data: data}
}

// EventName returns the name transitions match against.
func (e Event) EventName() string {
	return e.Name
}

// EventData returns the payload.
func (e Event) EventData() any {
	return e.Data
}
