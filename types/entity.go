// Package types provides common types shared by mockprep entities.
package types

import "time"

// Entity carries creation and modification timestamps.
// Embed it in domain types.
type Entity struct {
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewEntity creates an Entity stamped with the current UTC time.
func NewEntity() Entity {
	now := time.Now().UTC()
	return Entity{
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Touch updates UpdatedAt to now.
func (e *Entity) Touch() {
	e.UpdatedAt = time.Now().UTC()
}

// Within reports whether the entity was created within d of now.
func (e Entity) Within(d time.Duration) bool {
	return time.Since(e.CreatedAt) <= d
}
