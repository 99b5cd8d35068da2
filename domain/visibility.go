package domain

// IsVisible decides whether viewer may see message.
// Public messages and announcements sent as Broadcast are visible to everyone,
// anything else only to its two endpoints.
func IsVisible(message Message, viewer string) bool {
	return message.Type == PublicMessage ||
		message.From == Broadcast ||
		message.To == viewer ||
		message.From == viewer
}
