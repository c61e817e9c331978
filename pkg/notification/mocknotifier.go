package notification

import "sync"

// MockNotifier records every notification instead of delivering it
type MockNotifier struct {
	mu                sync.Mutex
	SentNotifications []NotificationData
	SentTypes         []NoticeType
	// Err, when set, is returned from Send after recording
	Err error
}

func (m *MockNotifier) Send(noticeType NoticeType, notification NotificationData, template NoticeTemplate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SentNotifications = append(m.SentNotifications, notification)
	m.SentTypes = append(m.SentTypes, noticeType)
	return m.Err
}

// Sent returns a copy of the recorded notifications
func (m *MockNotifier) Sent() []NotificationData {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]NotificationData, len(m.SentNotifications))
	copy(out, m.SentNotifications)
	return out
}
