package models

import "time"

// Event is owned by a single organization. Events are managed by another
// service; this backend only reads them to answer attendance questions.
type Event struct {
	ID          string     `json:"id" db:"id"`
	Org         string     `json:"org" db:"org"`
	EventName   string     `json:"eventName" db:"event_name"`
	Description string     `json:"description,omitempty" db:"description"`
	Date        *time.Time `json:"date,omitempty" db:"event_date"`
	Attendees   []string   `json:"attendees" db:"attendees"`
	CreatedAt   time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time  `json:"updatedAt" db:"updated_at"`
}
