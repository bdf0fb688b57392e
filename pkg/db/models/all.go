package models

// All lists every persisted model in dependency order. Used by AutoMigrate in
// sqlite mode and by tests.
func All() []any {
	return []any{
		&Schedule{},
		&ScheduleTerm{},
		&Rule{},
		&RuleValue{},
		&Segment{},
		&SLA{},
		&Priority{},
		&Issue{},
		&Reservation{},
		&ReservationItem{},
		&Ticket{},
		&Assign{},
		&Assigned{},
		&Attribute{},
		&AttributeValue{},
		&OutboxEvent{},
		&OutboxDLQ{},
		&Notification{},
	}
}
