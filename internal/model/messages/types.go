package messages

import "max.ks1230/expenses-bot/internal/entity/user"

// Message is an incoming chat message, either text or voice.
type Message struct {
	ChatID        int64
	UserID        int64
	MessageID     int
	Username      string
	FirstName     string
	Text          string
	VoiceFileID   string
	VoiceDuration int
}

func (m Message) profile() user.Profile {
	return user.Profile{ID: m.UserID, Username: m.Username, FirstName: m.FirstName}
}

// Callback is a press on one of our inline buttons.
type Callback struct {
	ID        string
	ChatID    int64
	UserID    int64
	MessageID int
	Username  string
	FirstName string
	Data      string
}

func (c Callback) profile() user.Profile {
	return user.Profile{ID: c.UserID, Username: c.Username, FirstName: c.FirstName}
}

type Button struct {
	Text string
	Data string
}

// Keyboard is attached to an outgoing message. Reply keyboards replace the
// user's keyboard and send the button text back, inline ones send Data.
type Keyboard struct {
	Rows  [][]Button
	Reply bool
}
