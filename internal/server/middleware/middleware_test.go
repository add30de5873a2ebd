package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/agentstation/orgsync/pkg/logging"
)

func TestChainExecutionOrder(t *testing.T) {
	var log []string
	mark := func(name string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				log = append(log, "start-"+name)
				next.ServeHTTP(w, r)
				log = append(log, "end-"+name)
			})
		}
	}
	handler := http.HandlerFunc(func(http.ResponseWriter, *http.Request) { log = append(log, "handler") })

	Chain(mark("1"), mark("2"))(handler).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, []string{"start-1", "start-2", "handler", "end-2", "end-1"}, log)
}

func TestLoggerAddsRunID(t *testing.T) {
	tl := logging.NewTestLogger(t)
	var runID string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		runID = logging.RunID(r.Context())
		w.WriteHeader(http.StatusAccepted)
	})

	Logger(tl.Logger)(handler).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/trigger/user/x", nil))

	assert.NotEmpty(t, runID)
	assert.True(t, tl.ContainsAll("HTTP request", "/trigger/user/x", "202", runID))
}

func TestRecoveryWritesError(t *testing.T) {
	handler := http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") })
	rec := httptest.NewRecorder()
	Recovery(logging.NewNopLogger())(handler).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "INTERNAL_ERROR")
}

func TestAuthDisabledWithoutKey(t *testing.T) {
	called := false
	handler := http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true })
	Auth(DefaultAuthConfig(""), logging.NewNopLogger())(handler).
		ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/trigger/user/x", nil))
	assert.True(t, called)
}
