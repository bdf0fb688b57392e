package enums

import "fmt"

// ReservationItemStatus tracks whether a cart entry is active or withdrawn.
type ReservationItemStatus string

const (
	ReservationItemPush ReservationItemStatus = "PUSH"
	ReservationItemPull ReservationItemStatus = "PULL"
)

// IsValid reports whether the value is a known item status.
func (s ReservationItemStatus) IsValid() bool {
	return s == ReservationItemPush || s == ReservationItemPull
}

// AssignStatus is the consultant decision on a reservation item.
type AssignStatus string

const (
	AssignWaiting AssignStatus = "WAITING"
	AssignAccept  AssignStatus = "ACCEPT"
	AssignReject  AssignStatus = "REJECT"
	AssignCancel  AssignStatus = "CANCEL"
)

var validAssignStatuses = []AssignStatus{
	AssignWaiting,
	AssignAccept,
	AssignReject,
	AssignCancel,
}

// IsValid reports whether the value is a known assign status.
func (s AssignStatus) IsValid() bool {
	for _, candidate := range validAssignStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is allowed out of s.
func (s AssignStatus) IsTerminal() bool {
	return s == AssignAccept || s == AssignReject || s == AssignCancel
}

// ParseAssignStatus converts raw input into AssignStatus.
func ParseAssignStatus(value string) (AssignStatus, error) {
	for _, candidate := range validAssignStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid assign status %q", value)
}

// TicketStatus tracks whether a ticket still counts against segment quota.
type TicketStatus string

const (
	TicketOpen   TicketStatus = "OPEN"
	TicketClosed TicketStatus = "CLOSED"
)

// IsValid reports whether the value is a known ticket status.
func (s TicketStatus) IsValid() bool {
	return s == TicketOpen || s == TicketClosed
}
