package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateTransaction  OutboxAggregateType = "transaction"
	AggregateListing      OutboxAggregateType = "listing"
	AggregateSellerPayout OutboxAggregateType = "seller_payout"
	AggregateConversation OutboxAggregateType = "conversation"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateTransaction,
	AggregateListing,
	AggregateSellerPayout,
	AggregateConversation,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventPaymentIntentCreated OutboxEventType = "payment_intent_created"
	EventManualPaymentCreated OutboxEventType = "manual_payment_created"
	EventPaymentCompleted     OutboxEventType = "payment_completed"
	EventPaymentFailed        OutboxEventType = "payment_failed"
	EventListingSold          OutboxEventType = "listing_sold"
	EventPayoutProcessed      OutboxEventType = "payout_processed"
	EventMessageSent          OutboxEventType = "message_sent"
)

var validOutboxEventTypes = []OutboxEventType{
	EventPaymentIntentCreated,
	EventManualPaymentCreated,
	EventPaymentCompleted,
	EventPaymentFailed,
	EventListingSold,
	EventPayoutProcessed,
	EventMessageSent,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}

// OutboxDLQErrorReason maps to outbox_dlq_error_reason_enum: why the publisher stopped retrying a row.
type OutboxDLQErrorReason string

const (
	OutboxDLQReasonMaxAttempts  OutboxDLQErrorReason = "max_attempts"
	OutboxDLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
)

func (r OutboxDLQErrorReason) IsValid() bool {
	switch r {
	case OutboxDLQReasonMaxAttempts, OutboxDLQReasonNonRetryable:
		return true
	}
	return false
}
