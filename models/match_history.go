package models

import "time"

// MatchHistory resolution states. Rows stay PENDING until the match ends.
const (
	ResultPending = "PENDING"
	ResultWin     = "WIN"
	ResultLose    = "LOSE"
)

// MatchHistory records one match from one player's perspective: Player1ID is
// always the owning player. A finished match has exactly two rows, one per
// side, finalized atomically with the deletion of both sessions.
type MatchHistory struct {
	ID           string `gorm:"primaryKey;type:uuid" json:"id"`
	SessionID    string `gorm:"index;not null" json:"session_id"`
	Player1ID    string `gorm:"index;not null" json:"player1_id"`
	Player2ID    string `json:"player2_id"`
	Mode         string `gorm:"type:varchar(8)" json:"mode"`
	Player1Score int    `gorm:"default:0" json:"player1_score"`
	Player2Score int    `gorm:"default:0" json:"player2_score"`
	Result       string `gorm:"type:varchar(8);check:result IN ('PENDING','WIN','LOSE')" json:"result"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}
