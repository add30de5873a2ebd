package application

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/agentstation/orgsync/pkg/duplicates"
	"github.com/agentstation/orgsync/pkg/mutation"
	"github.com/agentstation/orgsync/pkg/payload"
	"github.com/agentstation/orgsync/pkg/reconciler"
)

// Mock provides a mock implementation of Application for testing.
// A nil function field yields a zero value.
type Mock struct {
	ClientFunc       func(ctx context.Context) (Client, error)
	LoggerFunc       func() *zerolog.Logger
	OutputFormatFunc func() string
	VersionFunc      func() string
}

// Client returns a client using the mock function or an empty MockClient.
func (m *Mock) Client(ctx context.Context) (Client, error) {
	if m.ClientFunc != nil {
		return m.ClientFunc(ctx)
	}
	return &MockClient{}, nil
}

// Logger returns a logger using the mock function or a no-op logger.
func (m *Mock) Logger() *zerolog.Logger {
	if m.LoggerFunc != nil {
		return m.LoggerFunc()
	}
	logger := zerolog.Nop()
	return &logger
}

// OutputFormat returns the output format using the mock function or "table".
func (m *Mock) OutputFormat() string {
	if m.OutputFormatFunc != nil {
		return m.OutputFormatFunc()
	}
	return "table"
}

// Version returns the version using the mock function or "dev".
func (m *Mock) Version() string {
	if m.VersionFunc != nil {
		return m.VersionFunc()
	}
	return "dev"
}

// Commit returns "unknown".
func (m *Mock) Commit() string { return "unknown" }

// Date returns "unknown".
func (m *Mock) Date() string { return "unknown" }

// BuiltBy returns "test".
func (m *Mock) BuiltBy() string { return "test" }

// MockClient is a Client whose methods are set per test. Calls to an unset
// method return zero values.
type MockClient struct {
	SyncFunc             func(ctx context.Context) (*reconciler.Report, error)
	PlanFunc             func(ctx context.Context) (*reconciler.Plan, error)
	SyncOneFunc          func(ctx context.Context, kind payload.Kind, id string, dryRun bool) (*reconciler.SingleResult, error)
	FindDuplicatesFunc   func(ctx context.Context) ([]duplicates.Duplicate, error)
	RemoveDuplicatesFunc func(ctx context.Context, kind payload.Kind, ids []string) (*mutation.Report, error)
	ReExportFunc         func(ctx context.Context, kind payload.Kind, ids []string, dryRun bool) ([]duplicates.ReExportResult, error)
	ServeFunc            func(ctx context.Context) error
}

// Sync implements Client.
func (m *MockClient) Sync(ctx context.Context) (*reconciler.Report, error) {
	if m.SyncFunc != nil {
		return m.SyncFunc(ctx)
	}
	return &reconciler.Report{}, nil
}

// Plan implements Client.
func (m *MockClient) Plan(ctx context.Context) (*reconciler.Plan, error) {
	if m.PlanFunc != nil {
		return m.PlanFunc(ctx)
	}
	return nil, nil
}

// SyncOne implements Client.
func (m *MockClient) SyncOne(ctx context.Context, kind payload.Kind, id string, dryRun bool) (*reconciler.SingleResult, error) {
	if m.SyncOneFunc != nil {
		return m.SyncOneFunc(ctx, kind, id, dryRun)
	}
	return &reconciler.SingleResult{Kind: kind, ID: id, DryRun: dryRun}, nil
}

// FindDuplicates implements Client.
func (m *MockClient) FindDuplicates(ctx context.Context) ([]duplicates.Duplicate, error) {
	if m.FindDuplicatesFunc != nil {
		return m.FindDuplicatesFunc(ctx)
	}
	return nil, nil
}

// RemoveDuplicates implements Client.
func (m *MockClient) RemoveDuplicates(ctx context.Context, kind payload.Kind, ids []string) (*mutation.Report, error) {
	if m.RemoveDuplicatesFunc != nil {
		return m.RemoveDuplicatesFunc(ctx, kind, ids)
	}
	return &mutation.Report{}, nil
}

// ReExport implements Client.
func (m *MockClient) ReExport(ctx context.Context, kind payload.Kind, ids []string, dryRun bool) ([]duplicates.ReExportResult, error) {
	if m.ReExportFunc != nil {
		return m.ReExportFunc(ctx, kind, ids, dryRun)
	}
	return nil, nil
}

// Serve implements Client.
func (m *MockClient) Serve(ctx context.Context) error {
	if m.ServeFunc != nil {
		return m.ServeFunc(ctx)
	}
	<-ctx.Done()
	return nil
}

var (
	_ Application = (*Mock)(nil)
	_ Client      = (*MockClient)(nil)
)
