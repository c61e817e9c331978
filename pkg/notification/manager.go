package notification

import (
	"fmt"
	"sync"
)

// NotificationManager routes a notice to every system that has both a
// notifier and a template registered for it.
type NotificationManager struct {
	mu                   sync.RWMutex
	BaseUrl              string
	notifiers            map[NotificationSystem]Notifier
	notificationRegistry map[NoticeType]map[NotificationSystem]NoticeTemplate
}

// NewNotificationManager creates and returns a new NotificationManager.
func NewNotificationManager(baseUrl string) *NotificationManager {
	return &NotificationManager{
		BaseUrl:              baseUrl,
		notifiers:            make(map[NotificationSystem]Notifier),
		notificationRegistry: make(map[NoticeType]map[NotificationSystem]NoticeTemplate),
	}
}

// RegisterNotifier registers a notifier for a specific system.
func (nm *NotificationManager) RegisterNotifier(system NotificationSystem, notifier Notifier) {
	nm.mu.Lock()
	defer nm.mu.Unlock()
	nm.notifiers[system] = notifier
}

// RegisterNotification adds or replaces the template of a notice type for a system.
func (nm *NotificationManager) RegisterNotification(noticeType NoticeType, system NotificationSystem, template NoticeTemplate) error {
	if noticeType == "" || system == "" {
		return fmt.Errorf("invalid input: notice type and system cannot be empty")
	}
	if template.Subject == "" {
		return fmt.Errorf("invalid template: subject cannot be empty")
	}
	if template.Text == "" && template.Html == "" {
		return fmt.Errorf("invalid template: text or html body is required")
	}

	nm.mu.Lock()
	defer nm.mu.Unlock()
	if _, exists := nm.notificationRegistry[noticeType]; !exists {
		nm.notificationRegistry[noticeType] = make(map[NotificationSystem]NoticeTemplate)
	}
	nm.notificationRegistry[noticeType][system] = template
	return nil
}

// Send delivers the notice through every registered system.
// The first delivery error is returned after all systems were tried.
func (nm *NotificationManager) Send(noticeType NoticeType, notification NotificationData) error {
	nm.mu.RLock()
	systemTemplates, exists := nm.notificationRegistry[noticeType]
	if !exists {
		nm.mu.RUnlock()
		return fmt.Errorf("no templates registered for notice type: %s", noticeType)
	}
	type delivery struct {
		system   NotificationSystem
		notifier Notifier
		template NoticeTemplate
	}
	var deliveries []delivery
	for system, template := range systemTemplates {
		notifier, ok := nm.notifiers[system]
		if !ok {
			nm.mu.RUnlock()
			return fmt.Errorf("no notifier registered for system: %s", system)
		}
		deliveries = append(deliveries, delivery{system, notifier, template})
	}
	nm.mu.RUnlock()

	var firstErr error
	for _, d := range deliveries {
		if err := d.notifier.Send(noticeType, notification, d.template); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("send %s via %s: %w", noticeType, d.system, err)
		}
	}
	return firstErr
}
