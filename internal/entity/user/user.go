package user

import (
	"time"
)

type Record struct {
	ID               int64
	Username         string
	FirstName        string
	EmailAddress     string
	EmailAppPassword string
	EmailAutoCheck   bool
	EmailLastChecked time.Time
	CreatedAt        time.Time
}

func (r *Record) EmailConnected() bool {
	return r.EmailAddress != "" && r.EmailAppPassword != ""
}

// DisplayName falls back to the username when no first name is known.
func (r *Record) DisplayName() string {
	if r.FirstName != "" {
		return r.FirstName
	}
	if r.Username != "" {
		return r.Username
	}
	return "👋"
}

// Profile is what Telegram tells us about the sender of an update.
type Profile struct {
	ID        int64
	Username  string
	FirstName string
}
