package domain

// UserSettings stores per-user notification and display preferences.
type UserSettings struct {
	UserID             int64
	EmailNotifications bool
	PushNotifications  bool
	WeeklyDigest       bool
	TicketUpdates      bool
	NewMessages        bool
	Theme              string
	Language           string
	Timezone           string
}

// DefaultUserSettings returns the settings applied when a user never saved any.
func DefaultUserSettings(userID int64) UserSettings {
	return UserSettings{
		UserID:             userID,
		EmailNotifications: true,
		PushNotifications:  true,
		WeeklyDigest:       false,
		TicketUpdates:      true,
		NewMessages:        true,
		Theme:              "system",
		Language:           "en",
		Timezone:           "UTC",
	}
}
