package services

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"events_crm_backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clientServiceFixture struct {
	svc     *clientService
	clients *fakeClientRepo
	events  *fakeEventRepo
	tx      *fakeTransactor
	log     *callLog
}

func newClientServiceFixture(t *testing.T) *clientServiceFixture {
	t.Helper()
	log := &callLog{}
	clients := newFakeClientRepo(log)
	events := &fakeEventRepo{log: log}
	tx := &fakeTransactor{log: log}

	svc, ok := NewClientService(clients, events, tx, nil).(*clientService)
	require.True(t, ok)
	seq := 0
	svc.newID = func() string {
		seq++
		return fmt.Sprintf("c%d", seq)
	}
	return &clientServiceFixture{svc: svc, clients: clients, events: events, tx: tx, log: log}
}

var (
	org1 = models.NewScope("org1")
	org2 = models.NewScope("org2")
)

func newTestClient(id, first, last, phone string, orgs ...string) models.Client {
	return models.Client{
		ID:          id,
		FirstName:   first,
		LastName:    last,
		PhoneNumber: models.PhoneNumber{Primary: phone},
		Orgs:        orgs,
	}
}

func validCreateRequest() CreateClientRequest {
	return CreateClientRequest{
		FirstName:   " Ada ",
		LastName:    "Lovelace",
		Email:       "Ada@Example.com",
		PhoneNumber: PhoneNumberRequest{Primary: "555-0100"},
		Address:     AddressRequest{City: "London", Zip: "N1"},
	}
}

func TestCreateClient_StampsCallerOrganization(t *testing.T) {
	f := newClientServiceFixture(t)
	req := validCreateRequest()
	req.Orgs = []string{"org2", "org3"}

	id, err := f.svc.CreateClient(context.Background(), org1, req)
	require.NoError(t, err)
	assert.Equal(t, "c1", id)

	created, err := f.svc.GetClientByID(context.Background(), org1, id)
	require.NoError(t, err)
	assert.Equal(t, []string{"org1"}, created.Orgs)
	assert.Equal(t, "Ada", created.FirstName)
	assert.Equal(t, "ada@example.com", created.Email)
	assert.Nil(t, created.ProfileImg)

	_, err = f.svc.GetClientByID(context.Background(), org2, id)
	assert.ErrorIs(t, err, ErrClientNotFound)
}

func TestCreateClient_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*CreateClientRequest)
	}{
		{"missing first name", func(r *CreateClientRequest) { r.FirstName = "  " }},
		{"missing last name", func(r *CreateClientRequest) { r.LastName = "" }},
		{"missing primary phone", func(r *CreateClientRequest) { r.PhoneNumber.Primary = "" }},
		{"bad email", func(r *CreateClientRequest) { r.Email = "not-an-email" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newClientServiceFixture(t)
			req := validCreateRequest()
			tt.mutate(&req)

			_, err := f.svc.CreateClient(context.Background(), org1, req)
			require.ErrorIs(t, err, ErrClientValidation)
			assert.NotContains(t, f.log.list(), "CreateClient")
		})
	}
}

func TestClientService_RequiresScope(t *testing.T) {
	f := newClientServiceFixture(t)
	ctx := context.Background()
	empty := models.Scope{}

	_, err := f.svc.GetClients(ctx, empty)
	assert.ErrorIs(t, err, ErrInvalidScope)
	_, err = f.svc.CreateClient(ctx, empty, validCreateRequest())
	assert.ErrorIs(t, err, ErrInvalidScope)
	err = f.svc.DeleteClient(ctx, empty, "c1")
	assert.ErrorIs(t, err, ErrInvalidScope)
	_, err = f.svc.SearchClients(ctx, empty, SearchClientsRequest{SearchBy: SearchByName})
	assert.ErrorIs(t, err, ErrInvalidScope)
}

func TestGetClients_OnlyCallerOrganization(t *testing.T) {
	f := newClientServiceFixture(t)
	f.clients.put(newTestClient("1", "Bob", "Smith", "111", "org1"))
	f.clients.put(newTestClient("2", "Ann", "Jones", "222", "org1", "org2"))
	f.clients.put(newTestClient("3", "Cid", "Brown", "333", "org2"))

	got, err := f.svc.GetClients(context.Background(), org1)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "1", got[0].ID)
	assert.Equal(t, "2", got[1].ID)
}

func TestSearchClients_ByName(t *testing.T) {
	f := newClientServiceFixture(t)
	f.clients.put(newTestClient("1", "Bob", "Smith", "111", "org1"))
	f.clients.put(newTestClient("2", "bobby", "Jones", "222", "org1"))
	f.clients.put(newTestClient("3", "Robert", "Bobson", "333", "org1"))
	f.clients.put(newTestClient("4", "Bob", "Other", "444", "org2"))

	got, err := f.svc.SearchClients(context.Background(), org1, SearchClientsRequest{
		SearchBy:  SearchByName,
		FirstName: "Bob",
	})
	require.NoError(t, err)

	var ids []string
	for _, c := range got {
		ids = append(ids, c.ID)
	}
	assert.Equal(t, []string{"1", "2"}, ids)
}

func TestSearchClients_ByNameUsesBothNames(t *testing.T) {
	f := newClientServiceFixture(t)
	f.clients.put(newTestClient("1", "Bob", "Smith", "111", "org1"))
	f.clients.put(newTestClient("2", "Bob", "Jones", "222", "org1"))

	got, err := f.svc.SearchClients(context.Background(), org1, SearchClientsRequest{
		SearchBy:  SearchByName,
		FirstName: "bob",
		LastName:  "SMI",
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "1", got[0].ID)
}

func TestSearchClients_ByNumberIgnoresNames(t *testing.T) {
	f := newClientServiceFixture(t)
	f.clients.put(newTestClient("1", "Bob", "Smith", "555-0100", "org1"))
	f.clients.put(newTestClient("2", "Ann", "Jones", "555-0199", "org1"))

	got, err := f.svc.SearchClients(context.Background(), org1, SearchClientsRequest{
		SearchBy:    SearchByNumber,
		FirstName:   "Ann",
		PhoneNumber: "0100",
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "1", got[0].ID)
}

func TestSearchClients_InvalidSearchBy(t *testing.T) {
	for _, searchBy := range []string{"", "email", "NAME", "numbers"} {
		t.Run(searchBy, func(t *testing.T) {
			f := newClientServiceFixture(t)
			f.clients.put(newTestClient("1", "Bob", "Smith", "111", "org1"))

			_, err := f.svc.SearchClients(context.Background(), org1, SearchClientsRequest{
				SearchBy:  searchBy,
				FirstName: "Bob",
			})
			require.ErrorIs(t, err, ErrInvalidSearchBy)
			assert.NotContains(t, f.log.list(), "SearchClients")
		})
	}
}

func TestUpdateClient(t *testing.T) {
	f := newClientServiceFixture(t)
	img := "1-old.png"
	c := newTestClient("1", "Bob", "Smith", "111", "org1")
	c.ProfileImg = &img
	f.clients.put(c)

	newLast := "Smithers"
	newCity := "Leeds"
	updated, err := f.svc.UpdateClient(context.Background(), org1, "1", UpdateClientRequest{
		LastName: &newLast,
		Address:  &UpdateAddressRequest{City: &newCity},
	})
	require.NoError(t, err)
	assert.Equal(t, "Bob", updated.FirstName)
	assert.Equal(t, "Smithers", updated.LastName)
	assert.Equal(t, "Leeds", updated.Address.City)

	stored, err := f.svc.GetClientByID(context.Background(), org1, "1")
	require.NoError(t, err)
	assert.Equal(t, "Smithers", stored.LastName)
	assert.Equal(t, []string{"org1"}, stored.Orgs)
	require.NotNil(t, stored.ProfileImg)
	assert.Equal(t, img, *stored.ProfileImg)
}

func TestUpdateClient_Errors(t *testing.T) {
	f := newClientServiceFixture(t)
	f.clients.put(newTestClient("1", "Bob", "Smith", "111", "org1"))

	blank := ""
	_, err := f.svc.UpdateClient(context.Background(), org1, "1", UpdateClientRequest{FirstName: &blank})
	assert.ErrorIs(t, err, ErrClientValidation)

	name := "Robert"
	_, err = f.svc.UpdateClient(context.Background(), org2, "1", UpdateClientRequest{FirstName: &name})
	assert.ErrorIs(t, err, ErrClientNotFound)

	_, err = f.svc.UpdateClient(context.Background(), org1, "missing", UpdateClientRequest{FirstName: &name})
	assert.ErrorIs(t, err, ErrClientNotFound)
}

func TestDeleteClient_GuardedByAttendance(t *testing.T) {
	f := newClientServiceFixture(t)
	ctx := context.Background()
	f.clients.put(newTestClient("1", "Bob", "Smith", "111", "org1"))
	f.events.events = []models.Event{{ID: "10", Org: "org1", EventName: "Gala", Attendees: []string{"1"}}}

	err := f.svc.DeleteClient(ctx, org1, "1")
	require.ErrorIs(t, err, ErrClientHasEvents)
	assert.Equal(t, []string{"BeginTx", "LockClientByID", "CountEventsByAttendee", "Rollback"}, f.log.list())

	_, err = f.svc.GetClientByID(ctx, org1, "1")
	require.NoError(t, err, "client must survive a refused delete")

	f.events.setAttendees("10")
	require.NoError(t, f.svc.DeleteClient(ctx, org1, "1"))

	_, err = f.svc.GetClientByID(ctx, org1, "1")
	assert.ErrorIs(t, err, ErrClientNotFound)

	for _, opts := range f.tx.opts {
		require.NotNil(t, opts)
		assert.Equal(t, sql.LevelSerializable, opts.Isolation)
	}
}

func TestDeleteClient_SucceedsWithoutAttendance(t *testing.T) {
	f := newClientServiceFixture(t)
	f.clients.put(newTestClient("1", "Bob", "Smith", "111", "org1"))
	f.events.events = []models.Event{{ID: "10", Org: "org1", Attendees: []string{"2"}}}

	require.NoError(t, f.svc.DeleteClient(context.Background(), org1, "1"))
	assert.Equal(t, []string{"BeginTx", "LockClientByID", "CountEventsByAttendee", "DeleteClient", "Commit"}, f.log.list())
}

func TestDeleteClient_EventsOfOtherOrganizationsDoNotBlock(t *testing.T) {
	f := newClientServiceFixture(t)
	f.clients.put(newTestClient("1", "Bob", "Smith", "111", "org1", "org2"))
	f.events.events = []models.Event{{ID: "20", Org: "org2", Attendees: []string{"1"}}}

	require.NoError(t, f.svc.DeleteClient(context.Background(), org1, "1"))
}

func TestDeleteClient_NotFound(t *testing.T) {
	f := newClientServiceFixture(t)
	f.clients.put(newTestClient("1", "Bob", "Smith", "111", "org2"))

	err := f.svc.DeleteClient(context.Background(), org1, "1")
	require.ErrorIs(t, err, ErrClientNotFound)
	assert.NotContains(t, f.log.list(), "CountEventsByAttendee")
}

func TestGetClientDetails_SplitsEventsByRegistration(t *testing.T) {
	f := newClientServiceFixture(t)
	f.clients.put(newTestClient("1", "Bob", "Smith", "111", "org1"))
	f.events.events = []models.Event{
		{ID: "10", Org: "org1", Attendees: []string{"1", "2"}},
		{ID: "11", Org: "org1", Attendees: []string{"2"}},
		{ID: "12", Org: "org2", Attendees: []string{"1"}},
		{ID: "13", Org: "org1"},
	}

	details, err := f.svc.GetClientDetails(context.Background(), org1, "1")
	require.NoError(t, err)
	assert.Equal(t, "1", details.Client.ID)

	ids := func(events []models.Event) []string {
		var out []string
		for _, e := range events {
			out = append(out, e.ID)
		}
		return out
	}
	assert.Equal(t, []string{"10"}, ids(details.ClientEvents))
	assert.Equal(t, []string{"11", "13"}, ids(details.EventsFiltered))

	_, err = f.svc.GetClientDetails(context.Background(), org2, "1")
	assert.ErrorIs(t, err, ErrClientNotFound)
}

func TestGetClientCountsByZip(t *testing.T) {
	f := newClientServiceFixture(t)
	a := newTestClient("1", "A", "A", "1", "org1")
	a.Address.Zip = "10001"
	b := newTestClient("2", "B", "B", "2", "org1")
	b.Address.Zip = "10001"
	c := newTestClient("3", "C", "C", "3", "org1")
	c.Address.Zip = "20002"
	d := newTestClient("4", "D", "D", "4", "org2")
	d.Address.Zip = "10001"
	for _, x := range []models.Client{a, b, c, d} {
		f.clients.put(x)
	}

	counts, err := f.svc.GetClientCountsByZip(context.Background(), org1)
	require.NoError(t, err)
	assert.Equal(t, []models.ZipCount{{Zip: "10001", Count: 2}, {Zip: "20002", Count: 1}}, counts)
}
