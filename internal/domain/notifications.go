package domain

// VisibleTo сообщает, адресовано ли уведомление данному пользователю:
// прямая адресация по идентификатору, адресация по роли или рассылка
// на всех (оба поля пустые).
func (n AppNotification) VisibleTo(p UserProgress) bool {
	if n.TargetUserID != 0 {
		return n.TargetUserID == p.TelegramID
	}
	if n.TargetRole != "" {
		return n.TargetRole == p.Role
	}
	return true
}

// FilterNotifications оставляет только уведомления, адресованные
// пользователю.
func FilterNotifications(feed []AppNotification, p UserProgress) []AppNotification {
	var out []AppNotification
	for _, n := range feed {
		if n.VisibleTo(p) {
			out = append(out, n)
		}
	}
	return out
}
