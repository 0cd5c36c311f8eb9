package enums

import "fmt"

// NotificationType maps to the notification_type column on notifications.
type NotificationType string

const (
	NotificationTypeQuoteSent       NotificationType = "quote_sent"
	NotificationTypeQuoteAccepted   NotificationType = "quote_accepted"
	NotificationTypeQuoteRejected   NotificationType = "quote_rejected"
	NotificationTypeQuoteExpired    NotificationType = "quote_expired"
	NotificationTypeCustomerUpdate  NotificationType = "customer_update"
	NotificationTypePriceListUpdate NotificationType = "price_list_update"
)

var validNotificationTypes = []NotificationType{
	NotificationTypeQuoteSent,
	NotificationTypeQuoteAccepted,
	NotificationTypeQuoteRejected,
	NotificationTypeQuoteExpired,
	NotificationTypeCustomerUpdate,
	NotificationTypePriceListUpdate,
}

// String implements fmt.Stringer.
func (n NotificationType) String() string {
	return string(n)
}

// IsValid reports whether the value is a known NotificationType.
func (n NotificationType) IsValid() bool {
	for _, candidate := range validNotificationTypes {
		if candidate == n {
			return true
		}
	}
	return false
}

// ParseNotificationType converts raw input into a NotificationType.
func ParseNotificationType(value string) (NotificationType, error) {
	for _, candidate := range validNotificationTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid notification type %q", value)
}
