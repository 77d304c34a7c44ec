package services

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"events_crm_backend/internal/models"
	"events_crm_backend/internal/repositories"
	"events_crm_backend/internal/storage"
)

// callLog records repository calls in order.
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, name)
}

func (l *callLog) list() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

type fakeClientRepo struct {
	mu      sync.Mutex
	clients map[string]models.Client
	log     *callLog
	failSet error // returned by SetProfileImage when non-nil
}

func newFakeClientRepo(log *callLog) *fakeClientRepo {
	return &fakeClientRepo{clients: map[string]models.Client{}, log: log}
}

func (r *fakeClientRepo) put(c models.Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[c.ID] = c
}

func (r *fakeClientRepo) scoped(scope models.Scope, id string) (models.Client, bool) {
	c, ok := r.clients[id]
	if !ok || !c.BelongsTo(scope.OrgID) {
		return models.Client{}, false
	}
	return c, true
}

func (r *fakeClientRepo) CreateClient(ctx context.Context, executor repositories.SQLExecutor, client *models.Client) (string, error) {
	r.log.add("CreateClient")
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.clients[client.ID]; exists {
		return "", repositories.ErrDuplicateKey
	}
	r.clients[client.ID] = *client
	return client.ID, nil
}

func (r *fakeClientRepo) GetClientByID(ctx context.Context, scope models.Scope, id string) (*models.Client, error) {
	r.log.add("GetClientByID")
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.scoped(scope, id)
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &c, nil
}

func (r *fakeClientRepo) LockClientByID(ctx context.Context, executor repositories.SQLExecutor, scope models.Scope, id string) (*models.Client, error) {
	r.log.add("LockClientByID")
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.scoped(scope, id)
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &c, nil
}

func (r *fakeClientRepo) GetClients(ctx context.Context, scope models.Scope) ([]models.Client, error) {
	return r.SearchClients(ctx, scope, models.ClientSearchFilter{})
}

func (r *fakeClientRepo) SearchClients(ctx context.Context, scope models.Scope, filter models.ClientSearchFilter) ([]models.Client, error) {
	r.log.add("SearchClients")
	r.mu.Lock()
	defer r.mu.Unlock()
	contains := func(field, sub string) bool {
		return sub == "" || strings.Contains(strings.ToLower(field), strings.ToLower(sub))
	}
	var out []models.Client
	for _, c := range r.clients {
		if !c.BelongsTo(scope.OrgID) {
			continue
		}
		if contains(c.FirstName, filter.FirstName) && contains(c.LastName, filter.LastName) && contains(c.PhoneNumber.Primary, filter.PhoneNumber) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeClientRepo) UpdateClient(ctx context.Context, executor repositories.SQLExecutor, scope models.Scope, client *models.Client) error {
	r.log.add("UpdateClient")
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.scoped(scope, client.ID)
	if !ok {
		return repositories.ErrNotFound
	}
	updated := *client
	updated.Orgs = existing.Orgs
	updated.ProfileImg = existing.ProfileImg
	r.clients[client.ID] = updated
	return nil
}

func (r *fakeClientRepo) SetProfileImage(ctx context.Context, executor repositories.SQLExecutor, scope models.Scope, id string, filename *string) (*models.Client, error) {
	r.log.add("SetProfileImage")
	if r.failSet != nil {
		return nil, r.failSet
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.scoped(scope, id)
	if !ok {
		return nil, repositories.ErrNotFound
	}
	c.ProfileImg = filename
	r.clients[id] = c
	return &c, nil
}

func (r *fakeClientRepo) DeleteClient(ctx context.Context, executor repositories.SQLExecutor, scope models.Scope, id string) error {
	r.log.add("DeleteClient")
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.scoped(scope, id); !ok {
		return repositories.ErrNotFound
	}
	delete(r.clients, id)
	return nil
}

func (r *fakeClientRepo) CountClientsByZip(ctx context.Context, scope models.Scope) ([]models.ZipCount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	byZip := map[string]int{}
	for _, c := range r.clients {
		if c.BelongsTo(scope.OrgID) && c.Address.Zip != "" {
			byZip[c.Address.Zip]++
		}
	}
	out := []models.ZipCount{}
	for zip, n := range byZip {
		out = append(out, models.ZipCount{Zip: zip, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Zip < out[j].Zip })
	return out, nil
}

type fakeEventRepo struct {
	mu     sync.Mutex
	events []models.Event
	log    *callLog
}

func (r *fakeEventRepo) setAttendees(eventID string, attendees ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.events {
		if r.events[i].ID == eventID {
			r.events[i].Attendees = attendees
		}
	}
}

func (r *fakeEventRepo) filter(scope models.Scope, clientID string, registered bool) []models.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Event
	for _, e := range r.events {
		if e.Org != scope.OrgID {
			continue
		}
		attends := false
		for _, a := range e.Attendees {
			if a == clientID {
				attends = true
				break
			}
		}
		if attends == registered {
			out = append(out, e)
		}
	}
	return out
}

func (r *fakeEventRepo) GetEventsByAttendee(ctx context.Context, scope models.Scope, clientID string) ([]models.Event, error) {
	return r.filter(scope, clientID, true), nil
}

func (r *fakeEventRepo) GetEventsWithoutAttendee(ctx context.Context, scope models.Scope, clientID string) ([]models.Event, error) {
	return r.filter(scope, clientID, false), nil
}

func (r *fakeEventRepo) CountEventsByAttendee(ctx context.Context, executor repositories.SQLExecutor, scope models.Scope, clientID string) (int, error) {
	r.log.add("CountEventsByAttendee")
	return len(r.filter(scope, clientID, true)), nil
}

// fakeTransactor runs fn without a real transaction and records the options.
type fakeTransactor struct {
	log  *callLog
	opts []*sql.TxOptions
}

func (t *fakeTransactor) WithinTx(ctx context.Context, opts *sql.TxOptions, fn func(tx repositories.SQLExecutor) error) error {
	t.log.add("BeginTx")
	t.opts = append(t.opts, opts)
	if err := fn(nil); err != nil {
		t.log.add("Rollback")
		return err
	}
	t.log.add("Commit")
	return nil
}

// memFileStore is an in-memory storage.FileStore.
type memFileStore struct {
	mu      sync.Mutex
	files   map[string][]byte
	seq     int
	removed []string
}

func newMemFileStore() *memFileStore {
	return &memFileStore{files: map[string][]byte{}}
}

func (s *memFileStore) Save(originalName string, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	name := fmt.Sprintf("%d-%s", s.seq, originalName)
	s.files[name] = data
	return name, nil
}

func (s *memFileStore) Remove(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removed = append(s.removed, name)
	delete(s.files, name)
	return nil
}

func (s *memFileStore) Path(name string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if strings.ContainsAny(name, "/\\") {
		return "", storage.ErrInvalidName
	}
	if _, ok := s.files[name]; !ok {
		return "", storage.ErrFileNotFound
	}
	return "/mem/" + name, nil
}

func (s *memFileStore) has(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.files[name]
	return ok
}
