package x402

import (
	"sync"
	"time"
)

// PaymentEventType classifies payment lifecycle events.
type PaymentEventType string

const (
	// EventPaymentRequired fires when a tool call comes back 402.
	EventPaymentRequired PaymentEventType = "payment_required"
	// EventPaymentCreated fires after a payment payload has been signed.
	EventPaymentCreated PaymentEventType = "payment_created"
	// EventPaymentSettled fires when a retried call succeeds with a
	// settlement receipt attached.
	EventPaymentSettled PaymentEventType = "payment_settled"
	// EventPaymentFailed fires when a payment attempt was rejected.
	EventPaymentFailed PaymentEventType = "payment_failed"
	// EventPaymentDeclined fires when policy or the approval callback
	// refused to pay.
	EventPaymentDeclined PaymentEventType = "payment_declined"
)

// PaymentEvent is a single payment lifecycle event.
type PaymentEvent struct {
	Type      PaymentEventType
	Timestamp time.Time
	ToolName  string
	Resource  string
	Network   string
	Amount    string
	Payer     string
	TxHash    string
	Error     string
}

// PaymentEventHandler receives payment events. Handlers run synchronously on
// the calling goroutine and should return quickly.
type PaymentEventHandler func(event PaymentEvent)

// PaymentRecorder keeps an in-memory log of payment events and fans them out
// to registered handlers. Safe for concurrent use.
type PaymentRecorder struct {
	mu       sync.RWMutex
	events   []PaymentEvent
	handlers []PaymentEventHandler
}

// NewPaymentRecorder creates an empty payment recorder.
func NewPaymentRecorder() *PaymentRecorder {
	return &PaymentRecorder{}
}

// OnEvent registers a handler for future events.
func (r *PaymentRecorder) OnEvent(handler PaymentEventHandler) {
	if handler == nil {
		return
	}
	r.mu.Lock()
	r.handlers = append(r.handlers, handler)
	r.mu.Unlock()
}

// Record stores an event and notifies handlers. A zero timestamp is filled
// with the current time.
func (r *PaymentRecorder) Record(event PaymentEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	r.mu.Lock()
	r.events = append(r.events, event)
	handlers := make([]PaymentEventHandler, len(r.handlers))
	copy(handlers, r.handlers)
	r.mu.Unlock()

	for _, handler := range handlers {
		handler(event)
	}
}

// Events returns a copy of all recorded events in order.
func (r *PaymentRecorder) Events() []PaymentEvent {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]PaymentEvent, len(r.events))
	copy(out, r.events)
	return out
}

// EventsByType returns recorded events of one type, in order.
func (r *PaymentRecorder) EventsByType(eventType PaymentEventType) []PaymentEvent {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []PaymentEvent
	for _, e := range r.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}
