// README: Mobile workers (buggy drivers and department staff).
package worker

import (
	"time"

	"resortdispatch/internal/types"
)

type Role string

const (
	RoleDriver Role = "DRIVER"
	RoleStaff  Role = "STAFF"
)

type Worker struct {
	ID         types.ID     `json:"id"`
	Role       Role         `json:"role"`
	Name       string       `json:"name"`
	Department string       `json:"department,omitempty"`
	Position   *types.Point `json:"position,omitempty"`
	// LastHeartbeat is nil when the worker never reported in.
	LastHeartbeat *time.Time `json:"lastHeartbeat,omitempty"`
}

func (w *Worker) HasGPS() bool { return w.Position != nil }

// HeartbeatFresh reports whether the last heartbeat is younger than ttl.
func (w *Worker) HeartbeatFresh(now time.Time, ttl time.Duration) bool {
	if w.LastHeartbeat == nil {
		return false
	}
	return now.Sub(*w.LastHeartbeat) < ttl
}

// Online is true with a fresh heartbeat or while the worker is serving a
// request; a driver mid-trip keeps counting even if their device goes quiet.
func (w *Worker) Online(now time.Time, ttl time.Duration, hasActive bool) bool {
	return hasActive || w.HeartbeatFresh(now, ttl)
}

// Heartbeat is the live signal kept outside the roster.
type Heartbeat struct {
	At       time.Time
	Position *types.Point
}
