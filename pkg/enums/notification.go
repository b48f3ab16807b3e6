package enums

import "fmt"

// NotificationType categorizes user-facing notifications.
type NotificationType string

const (
	NotificationTypeOrder   NotificationType = "order"
	NotificationTypeReceipt NotificationType = "receipt"
	NotificationTypeSystem  NotificationType = "system"
)

func (n NotificationType) IsValid() bool {
	switch n {
	case NotificationTypeOrder, NotificationTypeReceipt, NotificationTypeSystem:
		return true
	}
	return false
}

// ParseNotificationType validates raw input against the notification type enum.
func ParseNotificationType(value string) (NotificationType, error) {
	parsed := NotificationType(value)
	if !parsed.IsValid() {
		return "", fmt.Errorf("unknown notification type %q", value)
	}
	return parsed, nil
}
