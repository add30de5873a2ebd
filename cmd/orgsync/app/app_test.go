package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/orgsync/cmd/application"
	"github.com/agentstation/orgsync/pkg/differ"
	"github.com/agentstation/orgsync/pkg/duplicates"
	"github.com/agentstation/orgsync/pkg/errors"
	"github.com/agentstation/orgsync/pkg/mutation"
	"github.com/agentstation/orgsync/pkg/payload"
	"github.com/agentstation/orgsync/pkg/reconciler"
)

const someUUID = "3f7e5a1c-0b7d-4c39-9f62-1a2b3c4d5e6f"

// isolate keeps tests away from the developer's config and .env files.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Chdir(t.TempDir())
	t.Setenv("LOG_OUTPUT", "discard")
}

func newTestApp(t *testing.T, client application.Client) (*App, *bytes.Buffer) {
	t.Helper()
	isolate(t)
	var out bytes.Buffer
	logger := zerolog.Nop()
	a, err := New("1.2.3", "abc123", "2026-05-01", "test",
		WithClient(client), WithOutput(&out), WithLogger(&logger))
	require.NoError(t, err)
	return a, &out
}

func TestLoadConfigFromEnv(t *testing.T) {
	isolate(t)
	t.Setenv("ORGSYNC_TARGET_URL", "https://target.example")
	t.Setenv("ORGSYNC_TARGET_CVR", "29189846")
	t.Setenv("ORGSYNC_SOURCE_BACKEND", "Replica")
	t.Setenv("ORGSYNC_SYNC_PHONE_PRIORITY", "mobile, work,")
	t.Setenv("ORGSYNC_SYNC_SNAPSHOT_INTERVAL", "2s")
	t.Setenv("ORGSYNC_CACHE_PREFILTER", "false")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := LoadConfig(viper.New())
	require.NoError(t, err)

	assert.Equal(t, "https://target.example", cfg.Sync.Target.URL)
	assert.Equal(t, "29189846", cfg.Sync.Target.CVR)
	assert.Equal(t, "replica", cfg.Sync.Source.Backend)
	assert.Equal(t, []string{"mobile", "work"}, cfg.Sync.Sync.PhonePriority)
	assert.Equal(t, 2*time.Second, cfg.Sync.Sync.SnapshotInterval)
	assert.False(t, cfg.Sync.Cache.Prefilter)
	assert.Equal(t, "debug", cfg.EnvLogLevel)

	// Unset keys keep their defaults.
	assert.Equal(t, 3, cfg.Sync.Sync.ReadAttempts)
	assert.Equal(t, ":8080", cfg.Sync.Serve.Addr)
}

func TestLoadConfigFile(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "orgsync.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
target:
  url: https://file.example
  cvr: "12345678"
sync:
  root_unit: 10000000-0000-4000-8000-000000000001
  email_priority: [primary, secondary]
  mutation_attempts: 5
`), 0o600))
	t.Setenv("ORGSYNC_TARGET_URL", "https://env.example")

	v := viper.New()
	cfg, err := LoadConfig(v)
	require.NoError(t, err)
	cfg.ConfigFile = path
	require.NoError(t, cfg.readSync(v))

	assert.Equal(t, path, cfg.ConfigFile)
	assert.Equal(t, "https://env.example", cfg.Sync.Target.URL, "environment overrides the file")
	assert.Equal(t, "12345678", cfg.Sync.Target.CVR)
	assert.Equal(t, []string{"primary", "secondary"}, cfg.Sync.Sync.EmailPriority)
	assert.Equal(t, 5, cfg.Sync.Sync.MutationAttempts)
}

func TestLoadConfigMissingExplicitFile(t *testing.T) {
	isolate(t)
	v := viper.New()
	cfg, err := LoadConfig(v)
	require.NoError(t, err)

	cfg.ConfigFile = filepath.Join(t.TempDir(), "missing.yaml")
	err = cfg.readSync(v)
	require.Error(t, err)
	assert.True(t, errors.IsConfigError(err))
}

func TestDetermineLogLevel(t *testing.T) {
	tests := []struct {
		name   string
		config Config
		want   string
	}{
		{name: "default", want: "info"},
		{name: "env", config: Config{EnvLogLevel: "error"}, want: "error"},
		{name: "verbose beats env", config: Config{Verbose: true, EnvLogLevel: "error"}, want: "debug"},
		{name: "quiet", config: Config{Quiet: true}, want: "warn"},
		{name: "both", config: Config{Verbose: true, Quiet: true}, want: "warn"},
		{name: "flag beats shortcuts", config: Config{LogLevel: "trace", Verbose: true}, want: "trace"},
		{name: "invalid", config: Config{LogLevel: "loud"}, want: "info"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, determineLogLevel(&tt.config))
		})
	}
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, ExitOK, ExitCode(nil))
	assert.Equal(t, ExitFatal, ExitCode(errors.NewConfigError("target", "url is required", nil)))
	assert.Equal(t, ExitPartial, ExitCode(fmt.Errorf("%w: 2 mutations failed", errors.ErrPartialFailure)))
	assert.Equal(t, ExitPartial, ExitCode(errors.NewMutationError("user", someUUID, "upsert", errors.NewAPIError("target", 400, "bad"))))
	assert.Equal(t, ExitFatal, ExitCode(context.Canceled))
}

func TestExecuteSync(t *testing.T) {
	client := &application.MockClient{
		SyncFunc: func(context.Context) (*reconciler.Report, error) {
			return &reconciler.Report{RunID: "run-1", OrgUnits: reconciler.Stats{Created: 2}}, nil
		},
	}
	a, out := newTestApp(t, client)

	require.NoError(t, a.Execute(context.Background(), []string{"sync", "-o", "json"}))

	var view map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &view))
	assert.Equal(t, "run-1", view["run_id"])
}

func TestExecuteSyncPartialFailure(t *testing.T) {
	failure := mutation.Failure{Kind: payload.KindUser, ID: someUUID, Operation: "upsert",
		Err: errors.NewAPIError("target", 400, "bad")}
	client := &application.MockClient{
		SyncFunc: func(context.Context) (*reconciler.Report, error) {
			r := &reconciler.Report{Failures: []mutation.Failure{failure}}
			return r, fmt.Errorf("%w: 1 mutations failed", errors.ErrPartialFailure)
		},
	}
	a, out := newTestApp(t, client)

	err := a.Execute(context.Background(), []string{"sync", "-o", "table"})
	require.Error(t, err)
	assert.Equal(t, ExitPartial, ExitCode(err))
	assert.Contains(t, out.String(), someUUID, "report is printed even when the run has failures")
}

func TestExecuteSyncDryRun(t *testing.T) {
	planned := false
	client := &application.MockClient{
		PlanFunc: func(context.Context) (*reconciler.Plan, error) {
			planned = true
			return &reconciler.Plan{
				OrgUnits: &differ.Changeset[payload.OrgUnit]{Created: []differ.Upsert[payload.OrgUnit]{{ID: someUUID}}},
				Users:    &differ.Changeset[payload.User]{},
			}, nil
		},
		SyncFunc: func(context.Context) (*reconciler.Report, error) {
			t.Fatal("dry run must not sync")
			return nil, nil
		},
	}
	a, out := newTestApp(t, client)

	require.NoError(t, a.Execute(context.Background(), []string{"sync", "--dry-run", "-o", "yaml"}))
	assert.True(t, planned)
	assert.Contains(t, out.String(), someUUID)
	assert.Contains(t, out.String(), "create")
}

func TestExecuteSyncUser(t *testing.T) {
	var got struct {
		kind   payload.Kind
		id     string
		dryRun bool
	}
	client := &application.MockClient{
		SyncOneFunc: func(_ context.Context, kind payload.Kind, id string, dryRun bool) (*reconciler.SingleResult, error) {
			got.kind, got.id, got.dryRun = kind, id, dryRun
			return &reconciler.SingleResult{Kind: kind, ID: id, Action: differ.ActionUpdate, DryRun: dryRun}, nil
		},
	}
	a, out := newTestApp(t, client)

	require.NoError(t, a.Execute(context.Background(), []string{"sync-user", someUUID, "--dry-run", "-o", "json"}))
	assert.Equal(t, payload.KindUser, got.kind)
	assert.Equal(t, someUUID, got.id)
	assert.True(t, got.dryRun)
	assert.Contains(t, out.String(), `"action": "update"`)

	require.NoError(t, a.Execute(context.Background(), []string{"sync-orgunit", someUUID}))
	assert.Equal(t, payload.KindOrgUnit, got.kind)
	assert.False(t, got.dryRun)
}

func TestExecuteSyncUserRejectsBadUUID(t *testing.T) {
	a, _ := newTestApp(t, &application.MockClient{})
	err := a.Execute(context.Background(), []string{"sync-user", "not-a-uuid"})
	require.Error(t, err)
	assert.True(t, errors.IsValidationError(err))
	assert.Equal(t, ExitFatal, ExitCode(err))
}

func TestExecuteCleanupDuplicates(t *testing.T) {
	found := []duplicates.Duplicate{
		{Kind: payload.KindUser, Identity: "a", Reason: duplicates.ReasonRepeatedPosition,
			Err: &errors.IdentityConflictError{Identity: "a", Details: []string{"U1/N1"}}},
		{Kind: payload.KindOrgUnit, Identity: "o", Reason: duplicates.ReasonRepeatedIdentity,
			Err: &errors.IdentityConflictError{Identity: "o"}},
	}
	var removed, reexported []string
	client := &application.MockClient{
		FindDuplicatesFunc: func(context.Context) ([]duplicates.Duplicate, error) { return found, nil },
		RemoveDuplicatesFunc: func(_ context.Context, _ payload.Kind, ids []string) (*mutation.Report, error) {
			removed = append(removed, ids...)
			return &mutation.Report{Deleted: len(ids)}, nil
		},
		ReExportFunc: func(_ context.Context, _ payload.Kind, ids []string, _ bool) ([]duplicates.ReExportResult, error) {
			reexported = append(reexported, ids...)
			return nil, nil
		},
	}
	a, out := newTestApp(t, client)
	ctx := context.Background()

	require.NoError(t, a.Execute(ctx, []string{"cleanup-duplicates", "find", "-o", "table"}))
	assert.Contains(t, out.String(), "repeated_position")

	require.NoError(t, a.Execute(ctx, []string{"cleanup-duplicates", "remove", "--dry-run", "-o", "table"}))
	assert.Empty(t, removed)
	assert.Contains(t, out.String(), "would delete")

	require.NoError(t, a.Execute(ctx, []string{"cleanup-duplicates", "remove", "--kind", "orgunit"}))
	assert.Equal(t, []string{"o"}, removed)

	require.NoError(t, a.Execute(ctx, []string{"cleanup-duplicates", "reexport", "x", "y"}))
	assert.Equal(t, []string{"x", "y"}, reexported)

	err := a.Execute(ctx, []string{"cleanup-duplicates", "remove", "--kind", "building"})
	require.Error(t, err)
}

func TestExecuteVersion(t *testing.T) {
	a, out := newTestApp(t, &application.MockClient{})
	require.NoError(t, a.Execute(context.Background(), []string{"version"}))
	assert.Contains(t, out.String(), "orgsync 1.2.3")
	assert.Contains(t, out.String(), "abc123")
}

func TestExecuteRejectsUnknownFormat(t *testing.T) {
	a, _ := newTestApp(t, &application.MockClient{})
	err := a.Execute(context.Background(), []string{"version", "-o", "xml"})
	require.Error(t, err)
}

func TestClientValidatesConfig(t *testing.T) {
	isolate(t)
	a, err := New("dev", "", "", "")
	require.NoError(t, err)

	_, err = a.Client(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsConfigError(err))
	assert.NoError(t, a.Shutdown(context.Background()))
}
