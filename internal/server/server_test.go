package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/orgsync/pkg/differ"
	"github.com/agentstation/orgsync/pkg/errors"
	"github.com/agentstation/orgsync/pkg/logging"
	"github.com/agentstation/orgsync/pkg/payload"
	"github.com/agentstation/orgsync/pkg/reconciler"
)

const unit = "10000000-0000-4000-8000-000000000001"

type call struct {
	kind   payload.Kind
	id     string
	dryRun bool
}

type fakeSyncer struct {
	calls []call
	err   error
}

func (f *fakeSyncer) RunSingle(_ context.Context, kind payload.Kind, id string, dryRun bool) (*reconciler.SingleResult, error) {
	f.calls = append(f.calls, call{kind, id, dryRun})
	if f.err != nil {
		return nil, f.err
	}
	return &reconciler.SingleResult{
		Kind:    kind,
		ID:      id,
		Action:  differ.ActionUpdate,
		DryRun:  dryRun,
		Payload: payload.OrgUnit{UUID: id, Name: "Skole"},
		Changes: []differ.FieldChange{{Path: "/Name", Type: differ.ChangeTypeUpdate}},
	}, nil
}

func newTestServer(syncer Syncer, apiKey string) http.Handler {
	cfg := DefaultConfig()
	cfg.APIKey = apiKey
	logger := logging.NewNopLogger()
	return New(syncer, cfg, logger, WithMetrics(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("orgsync_up 1\n"))
	}))).Handler()
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestTrigger(t *testing.T) {
	syncer := &fakeSyncer{}
	h := newTestServer(syncer, "")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/trigger/orgunit/"+unit+"?dry_run=true", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, syncer.calls, 1)
	assert.Equal(t, call{payload.KindOrgUnit, unit, true}, syncer.calls[0])

	data := decode(t, rec)["data"].(map[string]any)
	assert.Equal(t, "update", data["action"])
	assert.Equal(t, true, data["dry_run"])
	assert.Equal(t, []any{"update /Name"}, data["changes"])
	assert.Equal(t, "Skole", data["payload"].(map[string]any)["Name"])
}

func TestTriggerErrors(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		err    error
		status int
	}{
		{name: "unknown kind", path: "/trigger/team/" + unit, status: http.StatusBadRequest},
		{name: "bad dry_run", path: "/trigger/user/" + unit + "?dry_run=maybe", status: http.StatusBadRequest},
		{name: "mutation failed", path: "/trigger/user/" + unit,
			err: errors.NewMutationError("user", unit, "upsert", errors.NewAPIError("target", 400, "no")), status: http.StatusBadGateway},
		{name: "target down", path: "/trigger/user/" + unit,
			err: errors.NewAPIError("target", 503, "down"), status: http.StatusServiceUnavailable},
		{name: "invalid entity", path: "/trigger/user/" + unit,
			err: errors.NewEntityValidationError("user", unit, "Uuid", "bad"), status: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestServer(&fakeSyncer{err: tt.err}, "")
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, tt.path, nil))
			assert.Equal(t, tt.status, rec.Code)
			assert.NotNil(t, decode(t, rec)["error"])
		})
	}
}

func TestTriggerRejectsNonUUID(t *testing.T) {
	syncer := &fakeSyncer{}
	h := newTestServer(syncer, "")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/trigger/user/alice", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid uuid", decode(t, rec)["error"].(map[string]any)["message"])
	assert.Empty(t, syncer.calls)
}

func TestRoutes(t *testing.T) {
	h := newTestServer(&fakeSyncer{}, "")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/trigger/user/"+unit, nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, "orgsync_up 1\n", rec.Body.String())
}

func TestAuth(t *testing.T) {
	syncer := &fakeSyncer{}
	h := newTestServer(syncer, "secret")

	tests := []struct {
		name    string
		path    string
		headers map[string]string
		status  int
	}{
		{name: "missing key", path: "/trigger/user/" + unit, status: http.StatusUnauthorized},
		{name: "wrong key", path: "/trigger/user/" + unit, headers: map[string]string{"X-API-Key": "nope"}, status: http.StatusUnauthorized},
		{name: "header key", path: "/trigger/user/" + unit, headers: map[string]string{"X-API-Key": "secret"}, status: http.StatusOK},
		{name: "bearer key", path: "/trigger/user/" + unit, headers: map[string]string{"Authorization": "Bearer secret"}, status: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, tt.path, nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.status, rec.Code)
		})
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code, "health check is public")
	assert.Len(t, syncer.calls, 2)
}

func TestRecovery(t *testing.T) {
	h := newTestServer(panicSyncer{}, "")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/trigger/user/"+unit, nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

type panicSyncer struct{}

func (panicSyncer) RunSingle(context.Context, payload.Kind, string, bool) (*reconciler.SingleResult, error) {
	panic("boom")
}

func TestServeShutdown(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	srv := New(&fakeSyncer{}, DefaultConfig(), logging.NewNopLogger())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
