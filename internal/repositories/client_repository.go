package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"events_crm_backend/internal/models"

	"github.com/lib/pq" // For pq.Array and pq.Error
)

// ClientRepository defines the interface for client-related database operations.
// Every lookup is restricted to clients whose orgs contain scope.OrgID.
type ClientRepository interface {
	CreateClient(ctx context.Context, executor SQLExecutor, client *models.Client) (string, error)
	GetClientByID(ctx context.Context, scope models.Scope, id string) (*models.Client, error)
	LockClientByID(ctx context.Context, executor SQLExecutor, scope models.Scope, id string) (*models.Client, error)
	GetClients(ctx context.Context, scope models.Scope) ([]models.Client, error)
	SearchClients(ctx context.Context, scope models.Scope, filter models.ClientSearchFilter) ([]models.Client, error)
	UpdateClient(ctx context.Context, executor SQLExecutor, scope models.Scope, client *models.Client) error
	SetProfileImage(ctx context.Context, executor SQLExecutor, scope models.Scope, id string, filename *string) (*models.Client, error)
	DeleteClient(ctx context.Context, executor SQLExecutor, scope models.Scope, id string) error
	CountClientsByZip(ctx context.Context, scope models.Scope) ([]models.ZipCount, error)
}

type clientRepository struct {
	db *sql.DB
}

// NewClientRepository creates a new instance of ClientRepository.
func NewClientRepository(db *sql.DB) ClientRepository {
	return &clientRepository{db: db}
}

const clientColumns = `id, first_name, middle_name, last_name, email, phone_primary, phone_secondary,
	address_line1, address_line2, address_city, address_county, address_zip,
	orgs, profile_img, created_at, updated_at`

func scanClient(row scanner) (*models.Client, error) {
	var client models.Client
	var profileImg sql.NullString
	err := row.Scan(
		&client.ID, &client.FirstName, &client.MiddleName, &client.LastName, &client.Email,
		&client.PhoneNumber.Primary, &client.PhoneNumber.Secondary,
		&client.Address.Line1, &client.Address.Line2, &client.Address.City, &client.Address.County, &client.Address.Zip,
		pq.Array(&client.Orgs), &profileImg, &client.CreatedAt, &client.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if profileImg.Valid {
		client.ProfileImg = &profileImg.String
	}
	if client.Orgs == nil {
		client.Orgs = []string{}
	}
	return &client, nil
}

func scanClients(rows *sql.Rows) ([]models.Client, error) {
	clients := []models.Client{}
	for rows.Next() {
		client, err := scanClient(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scanning client: %v", ErrDatabaseError, err)
		}
		clients = append(clients, *client)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating client rows: %v", ErrDatabaseError, err)
	}
	return clients, nil
}

// CreateClient inserts a new client. The caller assigns client.ID.
func (r *clientRepository) CreateClient(ctx context.Context, executor SQLExecutor, client *models.Client) (string, error) {
	if client.ID == "" {
		return "", fmt.Errorf("%w: creating client: missing id", ErrDatabaseError)
	}
	query := `INSERT INTO clients (` + clientColumns + `)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`

	now := time.Now().UTC()
	client.CreatedAt = now
	client.UpdatedAt = now

	_, err := executor.ExecContext(ctx, query,
		client.ID, client.FirstName, client.MiddleName, client.LastName, client.Email,
		client.PhoneNumber.Primary, client.PhoneNumber.Secondary,
		client.Address.Line1, client.Address.Line2, client.Address.City, client.Address.County, client.Address.Zip,
		pq.Array(client.Orgs), client.ProfileImg, client.CreatedAt, client.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return "", fmt.Errorf("%w: %s (constraint: %s)", ErrDuplicateKey, pqErr.Message, pqErr.Constraint)
		}
		return "", fmt.Errorf("%w: creating client: %v", ErrDatabaseError, err)
	}
	return client.ID, nil
}

// GetClientByID retrieves a client by id within the scope's organization.
func (r *clientRepository) GetClientByID(ctx context.Context, scope models.Scope, id string) (*models.Client, error) {
	query := `SELECT ` + clientColumns + ` FROM clients WHERE id = $1 AND $2 = ANY(orgs)`
	client, err := scanClient(r.db.QueryRowContext(ctx, query, id, scope.OrgID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: getting client by ID %s: %v", ErrDatabaseError, id, err)
	}
	return client, nil
}

// LockClientByID is GetClientByID with a row lock held until the executor's
// transaction ends.
func (r *clientRepository) LockClientByID(ctx context.Context, executor SQLExecutor, scope models.Scope, id string) (*models.Client, error) {
	query := `SELECT ` + clientColumns + ` FROM clients WHERE id = $1 AND $2 = ANY(orgs) FOR UPDATE`
	client, err := scanClient(executor.QueryRowContext(ctx, query, id, scope.OrgID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: locking client ID %s: %v", ErrDatabaseError, id, err)
	}
	return client, nil
}

// GetClients lists the clients of the scope's organization.
func (r *clientRepository) GetClients(ctx context.Context, scope models.Scope) ([]models.Client, error) {
	query := `SELECT ` + clientColumns + ` FROM clients WHERE $1 = ANY(orgs)
	          ORDER BY last_name ASC, first_name ASC, id ASC`
	rows, err := r.db.QueryContext(ctx, query, scope.OrgID)
	if err != nil {
		return nil, fmt.Errorf("%w: querying clients: %v", ErrDatabaseError, err)
	}
	defer rows.Close()
	return scanClients(rows)
}

// SearchClients applies filter as ILIKE substring matches joined with AND.
func (r *clientRepository) SearchClients(ctx context.Context, scope models.Scope, filter models.ClientSearchFilter) ([]models.Client, error) {
	query, args := buildClientSearchQuery(scope, filter)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: searching clients: %v", ErrDatabaseError, err)
	}
	defer rows.Close()
	return scanClients(rows)
}

func buildClientSearchQuery(scope models.Scope, filter models.ClientSearchFilter) (string, []interface{}) {
	conditions := []string{"$1 = ANY(orgs)"}
	args := []interface{}{scope.OrgID}

	addContains := func(column, value string) {
		if value == "" {
			return
		}
		args = append(args, "%"+escapeLike(value)+"%")
		conditions = append(conditions, fmt.Sprintf("%s ILIKE $%d", column, len(args)))
	}
	addContains("first_name", filter.FirstName)
	addContains("last_name", filter.LastName)
	addContains("phone_primary", filter.PhoneNumber)

	var queryBuilder strings.Builder
	queryBuilder.WriteString(`SELECT ` + clientColumns + ` FROM clients WHERE `)
	queryBuilder.WriteString(strings.Join(conditions, " AND "))
	queryBuilder.WriteString(" ORDER BY last_name ASC, first_name ASC, id ASC")
	return queryBuilder.String(), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike makes s match literally inside a LIKE pattern.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// UpdateClient writes every mutable column of client. orgs and profile_img are left alone.
func (r *clientRepository) UpdateClient(ctx context.Context, executor SQLExecutor, scope models.Scope, client *models.Client) error {
	query := `UPDATE clients SET
	            first_name = $1, middle_name = $2, last_name = $3, email = $4,
	            phone_primary = $5, phone_secondary = $6,
	            address_line1 = $7, address_line2 = $8, address_city = $9, address_county = $10, address_zip = $11,
	            updated_at = $12
	          WHERE id = $13 AND $14 = ANY(orgs)`

	client.UpdatedAt = time.Now().UTC()
	result, err := executor.ExecContext(ctx, query,
		client.FirstName, client.MiddleName, client.LastName, client.Email,
		client.PhoneNumber.Primary, client.PhoneNumber.Secondary,
		client.Address.Line1, client.Address.Line2, client.Address.City, client.Address.County, client.Address.Zip,
		client.UpdatedAt, client.ID, scope.OrgID,
	)
	if err != nil {
		return fmt.Errorf("%w: updating client ID %s: %v", ErrDatabaseError, client.ID, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: getting rows affected for updating client ID %s: %v", ErrDatabaseError, client.ID, err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SetProfileImage stores filename (nil clears it) and returns the updated client.
func (r *clientRepository) SetProfileImage(ctx context.Context, executor SQLExecutor, scope models.Scope, id string, filename *string) (*models.Client, error) {
	query := `UPDATE clients SET profile_img = $1, updated_at = $2
	          WHERE id = $3 AND $4 = ANY(orgs)
	          RETURNING ` + clientColumns

	client, err := scanClient(executor.QueryRowContext(ctx, query, filename, time.Now().UTC(), id, scope.OrgID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: setting profile image for client ID %s: %v", ErrDatabaseError, id, err)
	}
	return client, nil
}

// DeleteClient removes a client from the database.
func (r *clientRepository) DeleteClient(ctx context.Context, executor SQLExecutor, scope models.Scope, id string) error {
	query := `DELETE FROM clients WHERE id = $1 AND $2 = ANY(orgs)`
	result, err := executor.ExecContext(ctx, query, id, scope.OrgID)
	if err != nil {
		return fmt.Errorf("%w: deleting client ID %s: %v", ErrDatabaseError, id, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: getting rows affected for deleting client ID %s: %v", ErrDatabaseError, id, err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// CountClientsByZip groups the organization's clients by non-empty zip code.
func (r *clientRepository) CountClientsByZip(ctx context.Context, scope models.Scope) ([]models.ZipCount, error) {
	query := `SELECT address_zip, COUNT(*) FROM clients
	          WHERE $1 = ANY(orgs) AND address_zip <> ''
	          GROUP BY address_zip
	          ORDER BY address_zip ASC`
	rows, err := r.db.QueryContext(ctx, query, scope.OrgID)
	if err != nil {
		return nil, fmt.Errorf("%w: aggregating clients by zip: %v", ErrDatabaseError, err)
	}
	defer rows.Close()

	counts := []models.ZipCount{}
	for rows.Next() {
		var zc models.ZipCount
		if err := rows.Scan(&zc.Zip, &zc.Count); err != nil {
			return nil, fmt.Errorf("%w: scanning zip count: %v", ErrDatabaseError, err)
		}
		counts = append(counts, zc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating zip counts: %v", ErrDatabaseError, err)
	}
	return counts, nil
}
