package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"events_crm_backend/internal/models"

	"github.com/lib/pq"
)

// EventRepository reads events to answer attendance questions.
// Events are written by another service.
type EventRepository interface {
	GetEventsByAttendee(ctx context.Context, scope models.Scope, clientID string) ([]models.Event, error)
	GetEventsWithoutAttendee(ctx context.Context, scope models.Scope, clientID string) ([]models.Event, error)
	CountEventsByAttendee(ctx context.Context, executor SQLExecutor, scope models.Scope, clientID string) (int, error)
}

type eventRepository struct {
	db *sql.DB
}

// NewEventRepository creates a new instance of EventRepository.
func NewEventRepository(db *sql.DB) EventRepository {
	return &eventRepository{db: db}
}

const eventColumns = `id, org, event_name, description, event_date, attendees, created_at, updated_at`

func scanEvent(row scanner) (*models.Event, error) {
	var event models.Event
	var date sql.NullTime
	if err := row.Scan(
		&event.ID, &event.Org, &event.EventName, &event.Description, &date,
		pq.Array(&event.Attendees), &event.CreatedAt, &event.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if date.Valid {
		event.Date = &date.Time
	}
	if event.Attendees == nil {
		event.Attendees = []string{}
	}
	return &event, nil
}

func (r *eventRepository) queryEvents(ctx context.Context, query string, args ...interface{}) ([]models.Event, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: querying events: %v", ErrDatabaseError, err)
	}
	defer rows.Close()

	events := []models.Event{}
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scanning event: %v", ErrDatabaseError, err)
		}
		events = append(events, *event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating event rows: %v", ErrDatabaseError, err)
	}
	return events, nil
}

// GetEventsByAttendee returns the organization's events that list clientID as an attendee.
func (r *eventRepository) GetEventsByAttendee(ctx context.Context, scope models.Scope, clientID string) ([]models.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events
	          WHERE org = $1 AND $2 = ANY(attendees)
	          ORDER BY event_date ASC NULLS LAST, id ASC`
	return r.queryEvents(ctx, query, scope.OrgID, clientID)
}

// GetEventsWithoutAttendee returns the organization's events clientID is not registered for.
func (r *eventRepository) GetEventsWithoutAttendee(ctx context.Context, scope models.Scope, clientID string) ([]models.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events
	          WHERE org = $1 AND NOT ($2 = ANY(attendees))
	          ORDER BY event_date ASC NULLS LAST, id ASC`
	return r.queryEvents(ctx, query, scope.OrgID, clientID)
}

// CountEventsByAttendee counts the organization's events that list clientID.
func (r *eventRepository) CountEventsByAttendee(ctx context.Context, executor SQLExecutor, scope models.Scope, clientID string) (int, error) {
	query := `SELECT COUNT(*) FROM events WHERE org = $1 AND $2 = ANY(attendees)`
	var count int
	if err := executor.QueryRowContext(ctx, query, scope.OrgID, clientID).Scan(&count); err != nil {
		return 0, fmt.Errorf("%w: counting events for attendee %s: %v", ErrDatabaseError, clientID, err)
	}
	return count, nil
}
