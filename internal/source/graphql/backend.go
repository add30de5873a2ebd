// Package graphql is the source backend for the HR system's live GraphQL
// API, authenticated with OAuth2 client credentials.
package graphql

import (
	"context"
	"encoding/json"
	"iter"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/agentstation/orgsync/internal/source"
	"github.com/agentstation/orgsync/internal/transport"
	"github.com/agentstation/orgsync/pkg/constants"
	"github.com/agentstation/orgsync/pkg/errors"
	"github.com/agentstation/orgsync/pkg/payload"
	"github.com/agentstation/orgsync/pkg/retry"
)

const system = "source"

var (
	kindOrgUnit = payload.KindOrgUnit.String()
	kindUser    = payload.KindUser.String()
	kindITUser  = "ituser"
)

// Config configures the GraphQL backend.
type Config struct {
	URL          string
	TokenURL     string
	ClientID     string
	ClientSecret string
	PageSize     int
	ReadPolicy   retry.Policy
	HTTPClient   *http.Client
}

// Validate reports missing settings.
func (c Config) Validate() error {
	if strings.TrimSpace(c.URL) == "" {
		return errors.NewConfigError("source", "url is required for the graphql backend", nil)
	}
	if c.TokenURL != "" && (c.ClientID == "" || c.ClientSecret == "") {
		return errors.NewConfigError("source", "client_id and client_secret are required with token_url", nil)
	}
	return nil
}

// Backend reads the source system through GraphQL.
type Backend struct {
	http     *transport.Client
	endpoint string
	pageSize int
	reads    retry.Policy
}

var _ source.Backend = (*Backend)(nil)

// New creates a GraphQL backend. The embedded queries are checked against
// the bundled schema before any request is made.
func New(ctx context.Context, cfg Config) (*Backend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := validateQueries(); err != nil {
		return nil, err
	}

	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: constants.DefaultHTTPTimeout}
	}
	if cfg.TokenURL != "" {
		cc := clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
		}
		// The token source outlives ctx, so only its HTTP client is taken from it.
		tokenCtx := context.WithValue(context.WithoutCancel(ctx), oauth2.HTTPClient, hc)
		hc = cc.Client(tokenCtx)
	}

	if cfg.PageSize <= 0 {
		cfg.PageSize = constants.DefaultPageSize
	}
	if cfg.ReadPolicy.MaxAttempts == 0 {
		cfg.ReadPolicy = retry.Reads()
	}

	return &Backend{
		http:     transport.New(system, cfg.URL, transport.WithHTTPClient(hc)),
		endpoint: strings.TrimRight(cfg.URL, "/"),
		pageSize: cfg.PageSize,
		reads:    cfg.ReadPolicy,
	}, nil
}

type request struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type gqlError struct {
	Message string `json:"message"`
}

type response[T any] struct {
	Data   T          `json:"data"`
	Errors []gqlError `json:"errors"`
}

type pageInfo struct {
	NextCursor *string `json:"next_cursor"`
}

type paged struct {
	Objects  []json.RawMessage `json:"objects"`
	PageInfo pageInfo          `json:"page_info"`
}

type object struct {
	UUID    string          `json:"uuid"`
	Current json.RawMessage `json:"current"`
}

// decodeObject decodes one paged object. ok is false for objects with no
// current registration.
func decodeObject[T any](kind string, raw json.RawMessage) (item T, ok bool, err error) {
	var obj object
	if err := json.Unmarshal(raw, &obj); err != nil {
		return item, false, errors.NewEntityValidationError(kind, "", "", "malformed object: "+err.Error())
	}
	if len(obj.Current) == 0 || string(obj.Current) == "null" {
		return item, false, nil
	}
	if err := json.Unmarshal(obj.Current, &item); err != nil {
		return item, false, errors.NewEntityValidationError(kind, obj.UUID, "", "malformed record: "+err.Error())
	}
	return item, true, nil
}

func query[T any](ctx context.Context, b *Backend, q string, vars map[string]any) (T, error) {
	var resp response[T]
	err := retry.Do(ctx, b.reads, "graphql query", func(ctx context.Context) error {
		resp = response[T]{}
		return b.http.Post(ctx, b.endpoint, request{Query: q, Variables: vars}, &resp)
	})
	if err != nil {
		return resp.Data, err
	}
	if len(resp.Errors) > 0 {
		msgs := make([]string, len(resp.Errors))
		for i, e := range resp.Errors {
			msgs[i] = e.Message
		}
		return resp.Data, &errors.APIError{System: system, StatusCode: http.StatusBadRequest, Endpoint: b.endpoint, Message: strings.Join(msgs, "; ")}
	}
	return resp.Data, nil
}

// pages iterates over every object of a cursor-paginated field. An object
// that cannot be decoded is yielded as an EntityValidationError and the
// iteration continues; transport and query errors end it.
func pages[T any](ctx context.Context, b *Backend, kind, q, field string, vars map[string]any) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		var zero T
		var cursor *string
		for {
			v := map[string]any{"limit": b.pageSize, "cursor": cursor}
			for k, val := range vars {
				v[k] = val
			}
			data, err := query[map[string]json.RawMessage](ctx, b, q, v)
			if err != nil {
				yield(zero, err)
				return
			}
			var page paged
			if err := json.Unmarshal(data[field], &page); err != nil {
				yield(zero, errors.WrapParse("json", field, err))
				return
			}
			for _, raw := range page.Objects {
				item, ok, err := decodeObject[T](kind, raw)
				if err != nil {
					if !yield(zero, err) {
						return
					}
					continue
				}
				if !ok {
					continue
				}
				if !yield(item, nil) {
					return
				}
			}
			if page.PageInfo.NextCursor == nil || len(page.Objects) == 0 {
				return
			}
			cursor = page.PageInfo.NextCursor
		}
	}
}

// OrgUnits implements source.Backend.
func (b *Backend) OrgUnits(ctx context.Context) iter.Seq2[source.OrgUnit, error] {
	return convertSeq(pages[orgUnit](ctx, b, kindOrgUnit, orgUnitsQuery, "org_units", nil), orgUnit.convert)
}

// Persons implements source.Backend.
func (b *Backend) Persons(ctx context.Context) iter.Seq2[source.Person, error] {
	return convertSeq(pages[employee](ctx, b, kindUser, employeesQuery, "employees", nil), employee.convert)
}

// OrgUnit implements source.Backend.
func (b *Backend) OrgUnit(ctx context.Context, id string) (*source.OrgUnit, error) {
	for u, err := range b.OrgUnitsByUUID(ctx, id) {
		if err != nil {
			return nil, err
		}
		return &u, nil
	}
	return nil, errors.NewNotFoundError("orgunit", id)
}

// OrgUnitsByUUID reads the named units.
func (b *Backend) OrgUnitsByUUID(ctx context.Context, ids ...string) iter.Seq2[source.OrgUnit, error] {
	return convertSeq(pages[orgUnit](ctx, b, kindOrgUnit, orgUnitsQuery, "org_units", map[string]any{"uuids": ids}), orgUnit.convert)
}

// Person implements source.Backend.
func (b *Backend) Person(ctx context.Context, id string) (*source.Person, error) {
	seq := pages[employee](ctx, b, kindUser, employeesQuery, "employees", map[string]any{"uuids": []string{id}})
	for e, err := range seq {
		if err != nil {
			return nil, err
		}
		p := e.convert()
		return &p, nil
	}
	return nil, errors.NewNotFoundError("user", id)
}

// FindByITAccount implements source.Backend.
func (b *Backend) FindByITAccount(ctx context.Context, kind payload.Kind, systems []string, userKey string) ([]string, error) {
	vars := map[string]any{"user_keys": []string{userKey}, "itsystem_names": systems}
	var owners []string
	for u, err := range pages[itUser](ctx, b, kindITUser, itUsersQuery, "itusers", vars) {
		if errors.IsValidationError(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		switch {
		case kind == payload.KindUser && u.EmployeeUUID != "":
			owners = append(owners, u.EmployeeUUID)
		case kind == payload.KindOrgUnit && u.OrgUnitUUID != "":
			owners = append(owners, u.OrgUnitUUID)
		}
	}
	return owners, nil
}

// Close implements source.Backend.
func (b *Backend) Close() error { return nil }

func convertSeq[A, B any](seq iter.Seq2[A, error], fn func(A) B) iter.Seq2[B, error] {
	return func(yield func(B, error) bool) {
		var zero B
		for a, err := range seq {
			if errors.IsValidationError(err) {
				if !yield(zero, err) {
					return
				}
				continue
			}
			if err != nil {
				yield(zero, err)
				return
			}
			if !yield(fn(a), nil) {
				return
			}
		}
	}
}
