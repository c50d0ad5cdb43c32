package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/w3bsuki/driplo-final/pkg/config"
	"github.com/w3bsuki/driplo-final/pkg/db/models"
	"github.com/w3bsuki/driplo-final/pkg/enums"
	"github.com/w3bsuki/driplo-final/pkg/outbox"
	"github.com/w3bsuki/driplo-final/pkg/outbox/payloads"
)

// Route says where an event type is published and which aggregate it must belong to.
type Route struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	Topic         string
}

// Resolved is an outbox row after its envelope and typed payload were decoded.
type Resolved struct {
	Route    Route
	Envelope outbox.PayloadEnvelope
	Payload  any
}

type entry struct {
	route  Route
	decode func(json.RawMessage) (any, error)
}

// Registry knows every event type the publisher may send.
type Registry struct {
	entries map[enums.OutboxEventType]entry
}

type permanentError struct{ err error }

func (e permanentError) Error() string { return e.err.Error() }
func (e permanentError) Unwrap() error { return e.err }

// Permanent marks err so the publisher dead-letters the row instead of retrying it.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{err: err}
}

func IsPermanent(err error) bool {
	var p permanentError
	return errors.As(err, &p)
}

func decodeAs[T any](raw json.RawMessage) (any, error) {
	v := new(T)
	if err := json.Unmarshal(raw, v); err != nil {
		return nil, err
	}
	return v, nil
}

// New routes every marketplace event to the domain topic.
func New(cfg config.PubSubConfig) (*Registry, error) {
	topic := strings.TrimSpace(cfg.DomainTopic)
	if topic == "" {
		return nil, errors.New("domain topic is required")
	}

	r := &Registry{entries: make(map[enums.OutboxEventType]entry)}
	r.add(enums.EventPaymentIntentCreated, enums.AggregateTransaction, topic, decodeAs[payloads.PaymentIntentCreatedEvent])
	r.add(enums.EventManualPaymentCreated, enums.AggregateTransaction, topic, decodeAs[payloads.ManualPaymentCreatedEvent])
	r.add(enums.EventPaymentCompleted, enums.AggregateTransaction, topic, decodeAs[payloads.PaymentCompletedEvent])
	r.add(enums.EventPaymentFailed, enums.AggregateTransaction, topic, decodeAs[payloads.PaymentFailedEvent])
	r.add(enums.EventListingSold, enums.AggregateListing, topic, decodeAs[payloads.ListingSoldEvent])
	r.add(enums.EventPayoutProcessed, enums.AggregateSellerPayout, topic, decodeAs[payloads.PayoutProcessedEvent])
	r.add(enums.EventMessageSent, enums.AggregateConversation, topic, decodeAs[payloads.MessageSentEvent])
	return r, nil
}

func (r *Registry) add(et enums.OutboxEventType, at enums.OutboxAggregateType, topic string, decode func(json.RawMessage) (any, error)) {
	r.entries[et] = entry{
		route:  Route{EventType: et, AggregateType: at, Topic: topic},
		decode: decode,
	}
}

// Routes lists the registered event types.
func (r *Registry) Routes() []Route {
	out := make([]Route, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.route)
	}
	return out
}

// Resolve checks the row against its route and decodes the payload. Every error it returns is permanent.
func (r *Registry) Resolve(event models.OutboxEvent) (Resolved, error) {
	e, ok := r.entries[event.EventType]
	if !ok {
		return Resolved{}, Permanent(fmt.Errorf("unsupported event type %q", event.EventType))
	}
	if e.route.AggregateType != event.AggregateType {
		return Resolved{}, Permanent(fmt.Errorf("%s belongs to %s, row says %s", event.EventType, e.route.AggregateType, event.AggregateType))
	}
	if strings.TrimSpace(event.AggregateID) == "" {
		return Resolved{}, Permanent(errors.New("aggregate id missing"))
	}

	env, err := outbox.DecodeEnvelope(event.Payload)
	if err != nil {
		return Resolved{}, Permanent(err)
	}
	payload, err := e.decode(env.Data)
	if err != nil {
		return Resolved{}, Permanent(fmt.Errorf("decode %s payload: %w", event.EventType, err))
	}
	return Resolved{Route: e.route, Envelope: env, Payload: payload}, nil
}
