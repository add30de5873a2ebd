package errors_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	pkgerrors "github.com/agentstation/orgsync/pkg/errors"
)

func TestNew(t *testing.T) {
	err := pkgerrors.New("test error")
	assert.NotNil(t, err)
	assert.Equal(t, "test error", err.Error())
}

func TestNotFoundError(t *testing.T) {
	t.Run("basic error", func(t *testing.T) {
		err := &pkgerrors.NotFoundError{Resource: "orgunit", ID: "abc"}
		assert.Equal(t, "orgunit with ID abc not found", err.Error())
		assert.True(t, errors.Is(err, pkgerrors.ErrNotFound))
	})

	t.Run("wrapped error", func(t *testing.T) {
		base := pkgerrors.NewNotFoundError("user", "test")
		wrapped := fmt.Errorf("read: %w", base)
		assert.True(t, pkgerrors.IsNotFound(wrapped))
	})
}

func TestEntityValidationError(t *testing.T) {
	t.Run("with field", func(t *testing.T) {
		err := pkgerrors.NewEntityValidationError("user", "u1", "Uuid", "not a uuid")
		assert.Equal(t, "invalid user u1 field Uuid: not a uuid", err.Error())
		assert.True(t, pkgerrors.IsValidationError(err))
		assert.False(t, pkgerrors.IsSystemic(err))
	})

	t.Run("without kind", func(t *testing.T) {
		err := &pkgerrors.EntityValidationError{Message: "cycle"}
		assert.Equal(t, "invalid entity: cycle", err.Error())
	})
}

func TestAPIError(t *testing.T) {
	tests := []struct {
		name         string
		status       int
		transient    bool
		notFound     bool
		unauthorized bool
	}{
		{name: "connection failure", status: 0, transient: true},
		{name: "server error", status: 503, transient: true},
		{name: "rate limited", status: 429, transient: true},
		{name: "not found", status: 404, notFound: true},
		{name: "forbidden", status: 403, unauthorized: true},
		{name: "bad request", status: 400},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := pkgerrors.NewAPIError("target", tt.status, "boom")
			assert.Equal(t, tt.transient, pkgerrors.IsTransient(err))
			assert.Equal(t, tt.notFound, pkgerrors.IsNotFound(err))
			assert.Equal(t, tt.unauthorized, errors.Is(err, pkgerrors.ErrUnauthorized))
		})
	}

	t.Run("message includes status", func(t *testing.T) {
		err := pkgerrors.NewAPIError("source", 500, "down")
		assert.Contains(t, err.Error(), "source")
		assert.Contains(t, err.Error(), "500")
	})
}

func TestSnapshotTimeoutError(t *testing.T) {
	err := &pkgerrors.SnapshotTimeoutError{RequestUUID: "r1", Budget: 10 * time.Second, Polls: 11}
	assert.Contains(t, err.Error(), "r1")
	assert.True(t, pkgerrors.IsTimeout(err))
	assert.True(t, pkgerrors.IsSystemic(err))
}

func TestMutationError(t *testing.T) {
	t.Run("transient kind", func(t *testing.T) {
		err := pkgerrors.NewMutationError("user", "u1", "upsert", pkgerrors.NewAPIError("target", 502, "bad gateway"))
		assert.True(t, errors.Is(err, pkgerrors.ErrMutation))
		assert.True(t, pkgerrors.IsTransient(err))
		assert.Equal(t, "transient", err.ErrorKind())
	})

	t.Run("rejected kind", func(t *testing.T) {
		err := pkgerrors.NewMutationError("orgunit", "o1", "delete", pkgerrors.NewAPIError("target", 400, "nope"))
		assert.Equal(t, "rejected", err.ErrorKind())
		assert.Contains(t, err.Error(), "delete of orgunit o1 failed")
	})

	t.Run("canceled kind", func(t *testing.T) {
		err := pkgerrors.NewMutationError("user", "u1", "upsert", context.Canceled)
		assert.Equal(t, "canceled", err.ErrorKind())
	})
}

func TestIdentityConflictError(t *testing.T) {
	err := &pkgerrors.IdentityConflictError{Identity: "x", Details: []string{"U1/N1"}}
	assert.Equal(t, "identity x is duplicated: U1/N1", err.Error())
	assert.True(t, pkgerrors.IsIdentityConflict(err))
}

func TestConfigError(t *testing.T) {
	err := pkgerrors.NewConfigError("target", "url is required", nil)
	assert.Equal(t, "configuration error in target: url is required", err.Error())
	assert.True(t, pkgerrors.IsConfigError(err))
	assert.True(t, pkgerrors.IsSystemic(err))
}

func TestIsSystemic(t *testing.T) {
	assert.True(t, pkgerrors.IsSystemic(pkgerrors.ErrCanceled))
	assert.False(t, pkgerrors.IsSystemic(context.Canceled))

	timeout := &pkgerrors.APIError{System: "target", Message: "Client.Timeout exceeded", Err: context.DeadlineExceeded}
	assert.False(t, pkgerrors.IsSystemic(timeout), "a request timeout stays with its entity")
	assert.True(t, pkgerrors.IsSystemic(pkgerrors.NewAPIError("target", 401, "no")))
	assert.False(t, pkgerrors.IsSystemic(pkgerrors.NewAPIError("target", 500, "flaky")))
}

func TestWrapHelpers(t *testing.T) {
	assert.Nil(t, pkgerrors.WrapIO("read", "x", nil))
	assert.Nil(t, pkgerrors.WrapResource("fetch", "snapshot", "", nil))
	assert.Nil(t, pkgerrors.WrapParse("json", "", nil))
	assert.Nil(t, pkgerrors.WrapAPI("target", "/x", nil))

	base := errors.New("eof")
	err := pkgerrors.WrapIO("read", "/tmp/cache.json", base)
	assert.ErrorIs(t, err, base)
	assert.Contains(t, err.Error(), "/tmp/cache.json")

	apiErr := pkgerrors.WrapAPI("target", "/hierarchy", base)
	assert.True(t, pkgerrors.IsTransient(apiErr))
}
