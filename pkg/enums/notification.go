package enums

import "fmt"

// NotificationType groups inbox entries for display.
type NotificationType string

const (
	NotificationTypeBookingRequest  NotificationType = "booking_request"
	NotificationTypeBookingAccepted NotificationType = "booking_accepted"
	NotificationTypeBookingCanceled NotificationType = "booking_canceled"
	NotificationTypeSystem          NotificationType = "system"
)

var validNotificationTypes = []NotificationType{
	NotificationTypeBookingRequest,
	NotificationTypeBookingAccepted,
	NotificationTypeBookingCanceled,
	NotificationTypeSystem,
}

// IsValid checks whether the given type matches a known value.
func (n NotificationType) IsValid() bool {
	for _, candidate := range validNotificationTypes {
		if candidate == n {
			return true
		}
	}
	return false
}

// ParseNotificationType converts raw strings into NotificationType.
func ParseNotificationType(value string) (NotificationType, error) {
	for _, candidate := range validNotificationTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid notification type %q", value)
}
