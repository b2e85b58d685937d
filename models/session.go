package models

import "time"

// Match modes. Mode is fixed when the session is created and controls the
// ball speed factor for the whole match.
const (
	ModeNormal = "NORMAL"
	ModeHard   = "HARD"
)

// Session tracks one connection through matchmaking and an active match.
// There is at most one Session per bound user at any time, and a room holds
// exactly two live Sessions once a pair is formed.
type Session struct {
	ID           string `gorm:"primaryKey;type:uuid" json:"id"`
	ConnectionID string `gorm:"index" json:"connection_id"`
	// UserID stays empty until the first `matched` or `connected` event binds
	// the authenticated user to this session.
	UserID string `gorm:"index" json:"user_id,omitempty"`
	Mode   string `gorm:"type:varchar(8);not null" json:"mode"`
	Ready  bool   `gorm:"default:false" json:"ready"`
	RoomID string `gorm:"index" json:"room_id"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	// UpdatedAt is the heartbeat timestamp. It is refreshed explicitly on
	// every `connected` event and compared against the opponent's to detect
	// silent disconnects, so gorm must not touch it on unrelated updates.
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime:false"`
}
