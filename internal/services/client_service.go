package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"events_crm_backend/internal/models"
	"events_crm_backend/internal/repositories"
	"events_crm_backend/pkg/utils"
)

// --- Custom Service Errors for Client ---
var (
	ErrClientNotFound   = errors.New("client not found")
	ErrClientValidation = errors.New("client data validation error")
	ErrInvalidSearchBy  = errors.New("invalid searchBy")
	ErrClientHasEvents  = errors.New("client is signed up for events and can't be deleted")
	ErrInvalidScope     = errors.New("request is not scoped to an organization")
)

// Search discriminators accepted by SearchClients.
const (
	SearchByName   = "name"
	SearchByNumber = "number"
)

// --- Client DTOs ---
type PhoneNumberRequest struct {
	Primary   string `json:"primary"`
	Secondary string `json:"secondary"`
}

type AddressRequest struct {
	Line1  string `json:"line1"`
	Line2  string `json:"line2"`
	City   string `json:"city"`
	County string `json:"county"`
	Zip    string `json:"zip"`
}

// CreateClientRequest is the create payload. Any orgs sent by the caller are ignored.
type CreateClientRequest struct {
	FirstName   string             `json:"firstName"`
	MiddleName  string             `json:"middleName"`
	LastName    string             `json:"lastName"`
	Email       string             `json:"email"`
	PhoneNumber PhoneNumberRequest `json:"phoneNumber"`
	Address     AddressRequest     `json:"address"`
	Orgs        []string           `json:"orgs"`
}

type UpdatePhoneNumberRequest struct {
	Primary   *string `json:"primary"`
	Secondary *string `json:"secondary"`
}

type UpdateAddressRequest struct {
	Line1  *string `json:"line1"`
	Line2  *string `json:"line2"`
	City   *string `json:"city"`
	County *string `json:"county"`
	Zip    *string `json:"zip"`
}

// UpdateClientRequest is a partial update: nil fields are left unchanged.
type UpdateClientRequest struct {
	FirstName   *string                   `json:"firstName"`
	MiddleName  *string                   `json:"middleName"`
	LastName    *string                   `json:"lastName"`
	Email       *string                   `json:"email"`
	PhoneNumber *UpdatePhoneNumberRequest `json:"phoneNumber"`
	Address     *UpdateAddressRequest     `json:"address"`
}

// SearchClientsRequest mirrors the search query string.
type SearchClientsRequest struct {
	SearchBy    string `form:"searchBy"`
	FirstName   string `form:"firstName"`
	LastName    string `form:"lastName"`
	PhoneNumber string `form:"phoneNumber"`
}

// --- ClientService Interface ---
type ClientService interface {
	GetClients(ctx context.Context, scope models.Scope) ([]models.Client, error)
	GetClientByID(ctx context.Context, scope models.Scope, clientID string) (*models.Client, error)
	GetClientDetails(ctx context.Context, scope models.Scope, clientID string) (*models.ClientDetails, error)
	SearchClients(ctx context.Context, scope models.Scope, req SearchClientsRequest) ([]models.Client, error)
	CreateClient(ctx context.Context, scope models.Scope, req CreateClientRequest) (string, error)
	UpdateClient(ctx context.Context, scope models.Scope, clientID string, req UpdateClientRequest) (*models.Client, error)
	DeleteClient(ctx context.Context, scope models.Scope, clientID string) error
	GetClientCountsByZip(ctx context.Context, scope models.Scope) ([]models.ZipCount, error)
}

// --- clientService Implementation ---
type clientService struct {
	clientRepo repositories.ClientRepository
	eventRepo  repositories.EventRepository
	tx         repositories.Transactor
	db         repositories.SQLExecutor
	newID      func() string
}

// NewClientService creates a new instance of ClientService.
// db is the executor used for single-statement writes outside a transaction.
func NewClientService(
	clientRepo repositories.ClientRepository,
	eventRepo repositories.EventRepository,
	tx repositories.Transactor,
	db repositories.SQLExecutor,
) ClientService {
	return &clientService{
		clientRepo: clientRepo,
		eventRepo:  eventRepo,
		tx:         tx,
		db:         db,
		newID:      utils.NewID,
	}
}

func checkScope(scope models.Scope) error {
	if !scope.Valid() {
		return ErrInvalidScope
	}
	return nil
}

func mapClientRepoError(err error, action string) error {
	if errors.Is(err, repositories.ErrNotFound) {
		return ErrClientNotFound
	}
	return fmt.Errorf("failed to %s: %w", action, err)
}

func validateClientFields(client *models.Client) error {
	var problems []string
	if utils.IsEmpty(client.FirstName) {
		problems = append(problems, "first name is required")
	}
	if utils.IsEmpty(client.LastName) {
		problems = append(problems, "last name is required")
	}
	if utils.IsEmpty(client.PhoneNumber.Primary) {
		problems = append(problems, "primary phone number is required")
	}
	if client.Email != "" && !utils.IsValidEmail(client.Email) {
		problems = append(problems, "email format is invalid")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrClientValidation, strings.Join(problems, "; "))
	}
	return nil
}

func (s *clientService) GetClients(ctx context.Context, scope models.Scope) ([]models.Client, error) {
	if err := checkScope(scope); err != nil {
		return nil, err
	}
	clients, err := s.clientRepo.GetClients(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("failed to get clients: %w", err)
	}
	return clients, nil
}

func (s *clientService) GetClientByID(ctx context.Context, scope models.Scope, clientID string) (*models.Client, error) {
	if err := checkScope(scope); err != nil {
		return nil, err
	}
	client, err := s.clientRepo.GetClientByID(ctx, scope, clientID)
	if err != nil {
		return nil, mapClientRepoError(err, "get client by ID")
	}
	return client, nil
}

func (s *clientService) GetClientDetails(ctx context.Context, scope models.Scope, clientID string) (*models.ClientDetails, error) {
	client, err := s.GetClientByID(ctx, scope, clientID)
	if err != nil {
		return nil, err
	}

	registered, err := s.eventRepo.GetEventsByAttendee(ctx, scope, clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to get registered events: %w", err)
	}
	notRegistered, err := s.eventRepo.GetEventsWithoutAttendee(ctx, scope, clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to get unregistered events: %w", err)
	}

	return &models.ClientDetails{
		Client:         client,
		ClientEvents:   registered,
		EventsFiltered: notRegistered,
	}, nil
}

func (s *clientService) SearchClients(ctx context.Context, scope models.Scope, req SearchClientsRequest) ([]models.Client, error) {
	if err := checkScope(scope); err != nil {
		return nil, err
	}

	var filter models.ClientSearchFilter
	switch req.SearchBy {
	case SearchByName:
		filter.FirstName = strings.TrimSpace(req.FirstName)
		filter.LastName = strings.TrimSpace(req.LastName)
	case SearchByNumber:
		filter.PhoneNumber = strings.TrimSpace(req.PhoneNumber)
	default:
		return nil, fmt.Errorf("%w: %q (expected %q or %q)", ErrInvalidSearchBy, req.SearchBy, SearchByName, SearchByNumber)
	}

	clients, err := s.clientRepo.SearchClients(ctx, scope, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to search clients: %w", err)
	}
	return clients, nil
}

func (s *clientService) CreateClient(ctx context.Context, scope models.Scope, req CreateClientRequest) (string, error) {
	if err := checkScope(scope); err != nil {
		return "", err
	}

	client := &models.Client{
		ID:         s.newID(),
		FirstName:  strings.TrimSpace(req.FirstName),
		MiddleName: strings.TrimSpace(req.MiddleName),
		LastName:   strings.TrimSpace(req.LastName),
		Email:      strings.ToLower(strings.TrimSpace(req.Email)),
		PhoneNumber: models.PhoneNumber{
			Primary:   strings.TrimSpace(req.PhoneNumber.Primary),
			Secondary: strings.TrimSpace(req.PhoneNumber.Secondary),
		},
		Address: models.Address{
			Line1:  strings.TrimSpace(req.Address.Line1),
			Line2:  strings.TrimSpace(req.Address.Line2),
			City:   strings.TrimSpace(req.Address.City),
			County: strings.TrimSpace(req.Address.County),
			Zip:    strings.TrimSpace(req.Address.Zip),
		},
		// Membership is always exactly the caller's organization.
		Orgs: []string{scope.OrgID},
	}
	if err := validateClientFields(client); err != nil {
		return "", err
	}

	id, err := s.clientRepo.CreateClient(ctx, s.db, client)
	if err != nil {
		return "", fmt.Errorf("failed to create client in repository: %w", err)
	}
	utils.LogInfo("Client created", map[string]interface{}{"client_id": id, "org": scope.OrgID})
	return id, nil
}

func applyClientUpdate(client *models.Client, req UpdateClientRequest) {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = strings.TrimSpace(*src)
		}
	}
	set(&client.FirstName, req.FirstName)
	set(&client.MiddleName, req.MiddleName)
	set(&client.LastName, req.LastName)
	if req.Email != nil {
		client.Email = strings.ToLower(strings.TrimSpace(*req.Email))
	}
	if req.PhoneNumber != nil {
		set(&client.PhoneNumber.Primary, req.PhoneNumber.Primary)
		set(&client.PhoneNumber.Secondary, req.PhoneNumber.Secondary)
	}
	if req.Address != nil {
		set(&client.Address.Line1, req.Address.Line1)
		set(&client.Address.Line2, req.Address.Line2)
		set(&client.Address.City, req.Address.City)
		set(&client.Address.County, req.Address.County)
		set(&client.Address.Zip, req.Address.Zip)
	}
}

func (s *clientService) UpdateClient(ctx context.Context, scope models.Scope, clientID string, req UpdateClientRequest) (*models.Client, error) {
	client, err := s.GetClientByID(ctx, scope, clientID)
	if err != nil {
		return nil, err
	}

	applyClientUpdate(client, req)
	if err := validateClientFields(client); err != nil {
		return nil, err
	}

	if err := s.clientRepo.UpdateClient(ctx, s.db, scope, client); err != nil {
		return nil, mapClientRepoError(err, "update client in repository")
	}
	return client, nil
}

// DeleteClient removes a client only when no event of the organization lists
// it as an attendee. Existence, attendance and deletion run in that order
// inside one serializable transaction.
func (s *clientService) DeleteClient(ctx context.Context, scope models.Scope, clientID string) error {
	if err := checkScope(scope); err != nil {
		return err
	}

	err := s.tx.WithinTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable}, func(tx repositories.SQLExecutor) error {
		if _, err := s.clientRepo.LockClientByID(ctx, tx, scope, clientID); err != nil {
			return mapClientRepoError(err, "find client for deletion")
		}

		count, err := s.eventRepo.CountEventsByAttendee(ctx, tx, scope, clientID)
		if err != nil {
			return fmt.Errorf("failed to check event attendance: %w", err)
		}
		if count > 0 {
			return fmt.Errorf("%w (%d events)", ErrClientHasEvents, count)
		}

		if err := s.clientRepo.DeleteClient(ctx, tx, scope, clientID); err != nil {
			return mapClientRepoError(err, "delete client")
		}
		return nil
	})
	if err != nil {
		return err
	}

	utils.LogInfo("Client deleted", map[string]interface{}{"client_id": clientID, "org": scope.OrgID})
	return nil
}

func (s *clientService) GetClientCountsByZip(ctx context.Context, scope models.Scope) ([]models.ZipCount, error) {
	if err := checkScope(scope); err != nil {
		return nil, err
	}
	counts, err := s.clientRepo.CountClientsByZip(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate clients by zip: %w", err)
	}
	return counts, nil
}
