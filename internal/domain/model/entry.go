package model

import "time"

// Entry is a single vetted origin stored by the allow-list authority.
type Entry struct {
	ID        int64
	Origin    string
	AddedBy   string
	UpdatedBy string
	CreatedAt time.Time
	UpdatedAt time.Time
}
