package graphql

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/orgsync/pkg/errors"
	"github.com/agentstation/orgsync/pkg/payload"
	"github.com/agentstation/orgsync/pkg/retry"
)

func TestQueriesMatchSchema(t *testing.T) {
	require.NoError(t, validateQueries())
}

type fakeServer struct {
	t        *testing.T
	mu       sync.Mutex
	requests []request
}

func (f *fakeServer) seen() []request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]request(nil), f.requests...)
}

func (f *fakeServer) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /token", func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(f.t, r.ParseForm())
		assert.Equal(f.t, "client_credentials", r.Form.Get("grant_type"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"tok","token_type":"bearer","expires_in":3600}`))
	})
	mux.HandleFunc("POST /graphql", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(f.t, "Bearer tok", r.Header.Get("Authorization"))
		var req request
		assert.NoError(f.t, json.NewDecoder(r.Body).Decode(&req))
		f.mu.Lock()
		f.requests = append(f.requests, req)
		f.mu.Unlock()

		switch {
		case strings.Contains(req.Query, "org_units("):
			if req.Variables["cursor"] == nil {
				_, _ = w.Write([]byte(`{"data":{"org_units":{"objects":[
					{"uuid":"u1","current":{"uuid":"u1","user_key":"ROOT","name":"Root","managers":[{"employee_uuid":"m1"}],
					 "addresses":[{"value":"111","address_type":{"uuid":"A","user_key":"Phone","name":"Tlf","scope":"PHONE"}}],
					 "kles":[{"kle_number":[{"uuid":"k1","user_key":"00.01","name":"x"}],"kle_aspects":[{"uuid":"a","user_key":"U","name":"Udførende"}]}],
					 "itusers":[],"itsystem_uuids":["s1"]}}],
					"page_info":{"next_cursor":"c2"}}}}`))
				return
			}
			_, _ = w.Write([]byte(`{"data":{"org_units":{"objects":[
				{"uuid":"u2","current":{"uuid":"u2","user_key":"CHILD","name":"Child","parent_uuid":"u1","managers":[],"addresses":[],"kles":[],"itusers":[],"itsystem_uuids":[]}},
				{"uuid":"u3","current":null}],
				"page_info":{"next_cursor":null}}}}`))
		case strings.Contains(req.Query, "employees("):
			if uuids, ok := req.Variables["uuids"].([]any); ok && len(uuids) == 1 && uuids[0] == "missing" {
				_, _ = w.Write([]byte(`{"data":{"employees":{"objects":[],"page_info":{"next_cursor":null}}}}`))
				return
			}
			_, _ = w.Write([]byte(`{"data":{"employees":{"objects":[
				{"uuid":"p1","current":{"uuid":"p1","name":"Alice","cpr_number":"0101011234","addresses":[],
				 "engagements":[{"org_unit_uuid":"u2","job_function":{"uuid":"j","user_key":"T","name":"Lærer"},"is_primary":true}],
				 "itusers":[{"user_key":"alic","itsystem":{"uuid":"s","user_key":"AD","name":"Active Directory"}}]}}],
				"page_info":{"next_cursor":null}}}}`))
		case strings.Contains(req.Query, "itusers("):
			_, _ = w.Write([]byte(`{"data":{"itusers":{"objects":[
				{"uuid":"i1","current":{"user_key":"x","itsystem":{"uuid":"s","user_key":"FK","name":"FK"},"employee_uuid":"p1"}}],
				"page_info":{"next_cursor":null}}}}`))
		default:
			_, _ = w.Write([]byte(`{"errors":[{"message":"unknown query"}]}`))
		}
	})
	return mux
}

func newBackend(t *testing.T) (*Backend, *fakeServer) {
	t.Helper()
	fake := &fakeServer{t: t}
	srv := httptest.NewServer(fake.handler())
	t.Cleanup(srv.Close)

	b, err := New(context.Background(), Config{
		URL:          srv.URL + "/graphql",
		TokenURL:     srv.URL + "/token",
		ClientID:     "orgsync",
		ClientSecret: "secret",
		PageSize:     1,
		ReadPolicy:   retry.Once(),
	})
	require.NoError(t, err)
	return b, fake
}

func TestOrgUnitsPaginates(t *testing.T) {
	b, fake := newBackend(t)

	var names []string
	for u, err := range b.OrgUnits(context.Background()) {
		require.NoError(t, err)
		names = append(names, u.Name)
		if u.UUID == "u1" {
			assert.Equal(t, "m1", u.ManagerUUID)
			require.Len(t, u.KLEs, 1)
			assert.Equal(t, []string{"Udførende"}, u.KLEs[0].Aspects)
			assert.Equal(t, "PHONE", u.Addresses[0].Scope)
		}
	}
	assert.Equal(t, []string{"Root", "Child"}, names)
	requests := fake.seen()
	require.Len(t, requests, 2)
	assert.Equal(t, "c2", requests[1].Variables["cursor"])
	assert.EqualValues(t, 1, requests[0].Variables["limit"])
}

func TestPerson(t *testing.T) {
	b, _ := newBackend(t)
	ctx := context.Background()

	p, err := b.Person(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "Alice", p.Name)
	assert.Equal(t, "Lærer", p.Engagements[0].JobFunction)
	assert.Equal(t, "Active Directory", p.ITAccounts[0].System)

	_, err = b.Person(ctx, "missing")
	assert.True(t, errors.IsNotFound(err))
}

func TestFindByITAccount(t *testing.T) {
	b, fake := newBackend(t)
	owners, err := b.FindByITAccount(context.Background(), payload.KindUser, []string{"FK"}, "x")
	require.NoError(t, err)
	assert.Equal(t, []string{"p1"}, owners)
	assert.Equal(t, []any{"x"}, fake.seen()[0].Variables["user_keys"])

	owners, err = b.FindByITAccount(context.Background(), payload.KindOrgUnit, []string{"FK"}, "x")
	require.NoError(t, err)
	assert.Empty(t, owners)
}

func TestGraphQLErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"errors":[{"message":"boom"}]}`))
	}))
	defer srv.Close()

	b, err := New(context.Background(), Config{URL: srv.URL, ReadPolicy: retry.Once()})
	require.NoError(t, err)
	_, err = b.OrgUnit(context.Background(), "u1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestConfigValidate(t *testing.T) {
	_, err := New(context.Background(), Config{})
	assert.True(t, errors.IsConfigError(err))
	_, err = New(context.Background(), Config{URL: "http://x", TokenURL: "http://x/token"})
	assert.True(t, errors.IsConfigError(err))
}

func TestPersonsSkipsMalformedRecord(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"employees":{"objects":[
			{"uuid":"p2","current":{"uuid":"p2","name":"Bob","engagements":[{"org_unit_uuid":"u2","is_primary":"yes"}]}},
			{"uuid":"p1","current":{"uuid":"p1","name":"Alice","engagements":[{"org_unit_uuid":"u2","is_primary":true}]}},
			"garbage"],
			"page_info":{"next_cursor":null}}}}`))
	}))
	defer srv.Close()

	b, err := New(context.Background(), Config{URL: srv.URL, ReadPolicy: retry.Once()})
	require.NoError(t, err)

	var names []string
	var errs []error
	for p, err := range b.Persons(context.Background()) {
		if err != nil {
			errs = append(errs, err)
			continue
		}
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"Alice"}, names)
	require.Len(t, errs, 2)
	for _, err := range errs {
		assert.True(t, errors.IsValidationError(err))
	}
	var invalid *errors.EntityValidationError
	require.ErrorAs(t, errs[0], &invalid)
	assert.Equal(t, "p2", invalid.ID)
	assert.Equal(t, "user", invalid.Kind)
}
