// Package replica is the source backend for a local PostgreSQL read replica
// that stores each org unit and person as a JSON document.
//
// Expected tables:
//
//	CREATE TABLE org_unit (uuid uuid PRIMARY KEY, data jsonb NOT NULL);
//	CREATE TABLE person   (uuid uuid PRIMARY KEY, data jsonb NOT NULL);
package replica

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"iter"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/agentstation/orgsync/internal/source"
	"github.com/agentstation/orgsync/pkg/constants"
	"github.com/agentstation/orgsync/pkg/errors"
	"github.com/agentstation/orgsync/pkg/payload"
)

// DB is the subset of pgxpool.Pool used by the backend.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// Backend reads the replica.
type Backend struct {
	db       DB
	pageSize int
}

var _ source.Backend = (*Backend)(nil)

// Connect opens a pool for dsn and verifies the connection.
func Connect(ctx context.Context, dsn string, pageSize int) (*Backend, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.NewConfigError("source", "replica_dsn is required for the replica backend", nil)
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, errors.NewConfigError("source", "invalid replica_dsn", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.WrapResource("connect", "replica", "", err)
	}
	return New(pool, pageSize), nil
}

// New wraps an existing database handle.
func New(db DB, pageSize int) *Backend {
	if pageSize <= 0 {
		pageSize = constants.DefaultPageSize
	}
	return &Backend{db: db, pageSize: pageSize}
}

func table(kind payload.Kind) string {
	if kind == payload.KindOrgUnit {
		return "org_unit"
	}
	return "person"
}

// scan iterates over a table in uuid order using keyset pagination. A row
// whose document cannot be decoded is yielded as an EntityValidationError and
// the scan continues.
func scan[T any](ctx context.Context, b *Backend, kind payload.Kind) iter.Seq2[T, error] {
	query := `SELECT uuid::text, data FROM ` + table(kind) + ` WHERE uuid::text > $1 ORDER BY uuid::text LIMIT $2`
	return func(yield func(T, error) bool) {
		var zero T
		cursor := ""
		for {
			rows, err := b.db.Query(ctx, query, cursor, b.pageSize)
			if err != nil {
				yield(zero, errors.WrapResource("query", table(kind), "", err))
				return
			}

			type result struct {
				item T
				err  error
			}
			var page []result
			for rows.Next() {
				var id string
				var data []byte
				if err := rows.Scan(&id, &data); err != nil {
					rows.Close()
					yield(zero, errors.WrapResource("scan", table(kind), id, err))
					return
				}
				item, err := decode[T](kind, id, data)
				page = append(page, result{item: item, err: err})
				cursor = id
			}
			rows.Close()
			if err := rows.Err(); err != nil {
				yield(zero, errors.WrapResource("query", table(kind), "", err))
				return
			}

			for _, r := range page {
				if !yield(r.item, r.err) {
					return
				}
			}
			if len(page) < b.pageSize {
				return
			}
		}
	}
}

func decode[T any](kind payload.Kind, id string, data []byte) (T, error) {
	var item T
	if err := json.Unmarshal(data, &item); err != nil {
		return item, errors.NewEntityValidationError(kind.String(), id, "", "malformed record: "+err.Error())
	}
	return item, nil
}

// OrgUnits implements source.Backend.
func (b *Backend) OrgUnits(ctx context.Context) iter.Seq2[source.OrgUnit, error] {
	return scan[source.OrgUnit](ctx, b, payload.KindOrgUnit)
}

// Persons implements source.Backend.
func (b *Backend) Persons(ctx context.Context) iter.Seq2[source.Person, error] {
	return scan[source.Person](ctx, b, payload.KindUser)
}

func get[T any](ctx context.Context, b *Backend, kind payload.Kind, id string) (*T, error) {
	var data []byte
	err := b.db.QueryRow(ctx, `SELECT data FROM `+table(kind)+` WHERE uuid::text = $1`, id).Scan(&data)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, errors.NewNotFoundError(kind.String(), id)
	}
	if err != nil {
		return nil, errors.WrapResource("query", table(kind), id, err)
	}
	item, err := decode[T](kind, id, data)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// OrgUnit implements source.Backend.
func (b *Backend) OrgUnit(ctx context.Context, id string) (*source.OrgUnit, error) {
	return get[source.OrgUnit](ctx, b, payload.KindOrgUnit, id)
}

// Person implements source.Backend.
func (b *Backend) Person(ctx context.Context, id string) (*source.Person, error) {
	return get[source.Person](ctx, b, payload.KindUser, id)
}

// FindByITAccount implements source.Backend.
func (b *Backend) FindByITAccount(ctx context.Context, kind payload.Kind, systems []string, userKey string) ([]string, error) {
	query := `SELECT uuid::text FROM ` + table(kind) + `
		WHERE EXISTS (
			SELECT 1 FROM jsonb_array_elements(COALESCE(data->'itusers', '[]'::jsonb)) AS acc
			WHERE acc->>'user_key' = $1 AND acc->>'itsystem' = ANY($2)
		)
		ORDER BY uuid::text`
	rows, err := b.db.Query(ctx, query, userKey, systems)
	if err != nil {
		return nil, errors.WrapResource("query", table(kind), userKey, err)
	}
	owners, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, errors.WrapResource("scan", table(kind), userKey, err)
	}
	return owners, nil
}

// Close implements source.Backend.
func (b *Backend) Close() error {
	b.db.Close()
	return nil
}
