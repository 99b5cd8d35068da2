// Package domain contains core concepts of the chat system.
// This file defines Participant entities and related invariants.
// No runtime, network, or UI logic should be added here.
package domain

import "time"

// Participant is a named client currently present in the room.
// Name is unique among live participants.
type Participant struct {
	Name     string
	LastSeen time.Time
}

// IsStale reports whether the participant was last seen strictly before cutoff.
func (p Participant) IsStale(cutoff time.Time) bool {
	return p.LastSeen.Before(cutoff)
}
