package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateSchedule        OutboxAggregateType = "schedule"
	AggregateReservationItem OutboxAggregateType = "reservation_item"
	AggregateAssign          OutboxAggregateType = "assign"
	AggregateAssigned        OutboxAggregateType = "assigned"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateSchedule,
	AggregateReservationItem,
	AggregateAssign,
	AggregateAssigned,
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
	EventReservationItemCreated OutboxEventType = "reservation_item_created"
	EventReservationItemPulled  OutboxEventType = "reservation_item_pulled"
	EventAssignAccepted         OutboxEventType = "assign_accepted"
	EventAssignRejected         OutboxEventType = "assign_rejected"
	EventAssignCancelled        OutboxEventType = "assign_cancelled"
	EventAssignExpired          OutboxEventType = "assign_expired"
	EventAssignedCreated        OutboxEventType = "assigned_created"
	EventAssignedClosed         OutboxEventType = "assigned_closed"
)

var validOutboxEventTypes = []OutboxEventType{
	EventReservationItemCreated,
	EventReservationItemPulled,
	EventAssignAccepted,
	EventAssignRejected,
	EventAssignCancelled,
	EventAssignExpired,
	EventAssignedCreated,
	EventAssignedClosed,
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
