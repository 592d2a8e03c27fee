package database

import "time"

// ForwardEvent is one audit record of a session lifecycle transition. The
// in-memory registry keeps no history; this table is the append-only trail
// the dashboard can consult after a session is gone.
type ForwardEvent struct {
	ID         uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	SessionID  string    `gorm:"index" json:"session_id"`
	Namespace  string    `gorm:"not null" json:"namespace"`
	Pod        string    `gorm:"not null" json:"pod"`
	RemotePort int       `gorm:"not null" json:"pod_port"`
	LocalPort  int       `gorm:"not null" json:"local_port"`
	Action     string    `gorm:"not null;index" json:"action"` // started, stopped, expired, failed
	Detail     string    `json:"detail,omitempty"`
	CreatedAt  time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}
