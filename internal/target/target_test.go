package target

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/orgsync/pkg/clock"
	"github.com/agentstation/orgsync/pkg/differ"
	"github.com/agentstation/orgsync/pkg/errors"
	"github.com/agentstation/orgsync/pkg/mutation"
	"github.com/agentstation/orgsync/pkg/payload"
	"github.com/agentstation/orgsync/pkg/retry"
)

const unit = "2c4a1d8e-3f5b-4a6c-9d7e-8f9a0b1c2d3e"

var epoch = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

// hierarchyServer answers ready on the readyOn-th poll (0 = never).
func hierarchyServer(t *testing.T, readyOn int32, polls *atomic.Int32) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /hierarchy", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "11111111", r.Header.Get("CVR"))
		assert.Equal(t, "secret", r.Header.Get("x-api-key"))
		_ = json.NewEncoder(w).Encode("req-1")
	})
	mux.HandleFunc("GET /hierarchy/{id}", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "req-1", r.PathValue("id"))
		n := polls.Add(1)
		if readyOn == 0 || n < readyOn {
			_, _ = w.Write([]byte("null"))
			return
		}
		_, _ = w.Write([]byte(`{"result":{"oUs":[{"Uuid":"` + unit + `","Name":"Root"}],"users":[]}}`))
	})
	return httptest.NewServer(mux)
}

func newClient(t *testing.T, url string, fake *clock.FakeClock) *Client {
	t.Helper()
	c, err := New(Config{
		URL:          url,
		CVR:          "11111111",
		APIKey:       "secret",
		PollInterval: time.Second,
		PollBudget:   10 * time.Second,
		ReadPolicy:   retry.Policy{MaxAttempts: 2, Backoff: time.Millisecond},
		Clock:        fake,
	})
	require.NoError(t, err)
	return c
}

func TestPollingReadyOnThirdPoll(t *testing.T) {
	var polls atomic.Int32
	srv := hierarchyServer(t, 3, &polls)
	defer srv.Close()

	fake := clock.Fake(epoch)
	c := newClient(t, srv.URL, fake)

	job, err := c.RequestSnapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, payload.JobPolling, job.State)

	snap, err := c.WaitAndFetch(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, payload.JobReady, job.State)
	assert.Len(t, snap.OrgUnits, 1)
	assert.Equal(t, int32(3), polls.Load())
	assert.Equal(t, epoch.Add(2*time.Second), fake.Now())
}

func TestPollingNeverReady(t *testing.T) {
	var polls atomic.Int32
	srv := hierarchyServer(t, 0, &polls)
	defer srv.Close()

	fake := clock.Fake(epoch)
	c := newClient(t, srv.URL, fake)

	job := &payload.SyncJob{RequestUUID: "req-1"}
	_, err := c.WaitAndFetch(context.Background(), job)
	require.Error(t, err)
	assert.True(t, errors.IsTimeout(err))
	assert.Equal(t, payload.JobTimedOut, job.State)

	var timeout *errors.SnapshotTimeoutError
	require.ErrorAs(t, err, &timeout)
	assert.Equal(t, 11, timeout.Polls)
	assert.Equal(t, epoch.Add(10*time.Second), fake.Now(), "timeout raised exactly at the budget")
}

func TestPollingBudgetNotMultipleOfInterval(t *testing.T) {
	var polls atomic.Int32
	srv := hierarchyServer(t, 0, &polls)
	defer srv.Close()

	fake := clock.Fake(epoch)
	c, err := New(Config{URL: srv.URL, CVR: "11111111", APIKey: "secret", PollInterval: 3 * time.Second, PollBudget: 10 * time.Second, Clock: fake})
	require.NoError(t, err)

	_, err = c.WaitAndFetch(context.Background(), &payload.SyncJob{RequestUUID: "req-1"})
	assert.True(t, errors.IsTimeout(err))
	assert.Equal(t, epoch.Add(10*time.Second), fake.Now())
	assert.Equal(t, []time.Duration{3 * time.Second, 3 * time.Second, 3 * time.Second, time.Second}, fake.Sleeps())
}

func TestPollingTransientErrorsAreNotReady(t *testing.T) {
	var polls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if polls.Add(1) == 1 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"result":{"oUs":[],"users":[]}}`))
	}))
	defer srv.Close()

	c := newClient(t, srv.URL, clock.Fake(epoch))
	_, err := c.WaitAndFetch(context.Background(), &payload.SyncJob{RequestUUID: "req-1"})
	assert.NoError(t, err)
}

func TestPollingAuthErrorIsFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "denied", http.StatusForbidden)
	}))
	defer srv.Close()

	fake := clock.Fake(epoch)
	c := newClient(t, srv.URL, fake)
	_, err := c.WaitAndFetch(context.Background(), &payload.SyncJob{RequestUUID: "req-1"})
	assert.ErrorIs(t, err, errors.ErrUnauthorized)
	assert.Equal(t, epoch, fake.Now())
}

func TestRequestSnapshotObjectForm(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"request_uuid":"abc"}`))
	}))
	defer srv.Close()

	job, err := newClient(t, srv.URL, clock.Fake(epoch)).RequestSnapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "abc", job.RequestUUID)
}

func TestFetchAndMutations(t *testing.T) {
	var deleted []string
	var posted []string
	mux := http.NewServeMux()
	mux.HandleFunc("GET /orgUnit/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") != unit {
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode(payload.OrgUnit{UUID: unit, Name: "Root"})
	})
	mux.HandleFunc("GET /user/{id}", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	mux.HandleFunc("POST /orgUnit/", func(w http.ResponseWriter, r *http.Request) {
		var ou payload.OrgUnit
		require.NoError(t, json.NewDecoder(r.Body).Decode(&ou))
		posted = append(posted, ou.UUID)
	})
	mux.HandleFunc("DELETE /user/{id}", func(w http.ResponseWriter, r *http.Request) {
		deleted = append(deleted, r.PathValue("id"))
		if r.PathValue("id") == "gone" {
			http.NotFound(w, r)
		}
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := newClient(t, srv.URL, clock.Fake(epoch))
	ctx := context.Background()

	ou, err := c.FetchOrgUnit(ctx, unit)
	require.NoError(t, err)
	assert.Equal(t, "Root", ou.Name)

	_, err = c.FetchUser(ctx, "someone")
	assert.True(t, errors.IsNotFound(err))

	require.NoError(t, c.Upsert(ctx, payload.OrgUnit{UUID: unit, Name: "Root"}))
	assert.Equal(t, []string{unit}, posted)

	require.NoError(t, c.Delete(ctx, payload.KindUser, "u1"))
	require.NoError(t, c.Delete(ctx, payload.KindUser, "gone"), "404 on delete is success")
	assert.Equal(t, []string{"u1", "gone"}, deleted)
}

func TestMutationsAreSingleAttempt(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newClient(t, srv.URL, clock.Fake(epoch))
	err := c.Upsert(context.Background(), payload.User{UUID: "u"})
	assert.True(t, errors.IsTransient(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestRequestTimeoutFailsOnlyItsEntity(t *testing.T) {
	var posts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if posts.Add(1) == 1 {
			select {
			case <-time.After(300 * time.Millisecond):
			case <-r.Context().Done():
			}
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c, err := New(Config{
		URL:            srv.URL,
		CVR:            "11111111",
		MutationPolicy: retry.Once(),
		HTTPClient:     &http.Client{Timeout: 50 * time.Millisecond},
	})
	require.NoError(t, err)

	upserts := []differ.Upsert[payload.OrgUnit]{
		{ID: "a", Payload: payload.OrgUnit{UUID: "a", Name: "A"}, Hash: "ha"},
		{ID: "b", Payload: payload.OrgUnit{UUID: "b", Name: "B"}, Hash: "hb"},
	}
	report, err := mutation.Apply(context.Background(), mutation.New(c), upserts, nil)
	require.NoError(t, err)

	require.Len(t, report.Failed, 1)
	assert.Equal(t, "a", report.Failed[0].ID)
	assert.Equal(t, 1, report.Created, "b is sent after a times out")
	assert.Equal(t, int32(2), posts.Load())
}

func TestConfigValidation(t *testing.T) {
	_, err := New(Config{CVR: "1"})
	assert.True(t, errors.IsConfigError(err))
	_, err = New(Config{URL: "http://x"})
	assert.True(t, errors.IsConfigError(err))
}
