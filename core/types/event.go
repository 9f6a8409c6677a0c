package types

// Event represents a typed notification emitted by a committed ledger operation.
// Sequence is assigned by the node when the event is published and is zero
// while the operation that produced it is still in flight.
type Event struct {
	Type       string            `json:"type"`
	Sequence   uint64            `json:"sequence,omitempty"`
	Attributes map[string]string `json:"attributes"`
}

// Attr returns the attribute value for key, or the empty string.
func (e *Event) Attr(key string) string {
	if e == nil || e.Attributes == nil {
		return ""
	}
	return e.Attributes[key]
}

// Clone returns a deep copy of the event.
func (e *Event) Clone() *Event {
	if e == nil {
		return nil
	}
	clone := &Event{Type: e.Type, Sequence: e.Sequence}
	if e.Attributes != nil {
		clone.Attributes = make(map[string]string, len(e.Attributes))
		for k, v := range e.Attributes {
			clone.Attributes[k] = v
		}
	}
	return clone
}
