package entity

import (
	"encoding/json"
	"time"
)

// Event represents a calendar entry (training session, interview slot,
// defense, …) visible to a role tier and above.
type Event struct {
	ID        string          `db:"id" json:"id"`
	Title     string          `db:"title" json:"title"`
	StartsAt  time.Time       `db:"starts_at" json:"startsAt"`
	EndsAt    time.Time       `db:"ends_at" json:"endsAt"`
	Audience  string          `db:"audience" json:"audience"`
	Detail    json.RawMessage `db:"detail" json:"detail,omitempty"`
	Version   int64           `db:"version" json:"version"`
	CreatedBy string          `db:"created_by" json:"createdBy"`
	CreatedAt time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time       `db:"updated_at" json:"updatedAt"`
}
