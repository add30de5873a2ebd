package reconciler

import (
	"fmt"
	"strings"
	"time"

	"github.com/agentstation/orgsync/pkg/differ"
	"github.com/agentstation/orgsync/pkg/mutation"
	"github.com/agentstation/orgsync/pkg/payload"
)

// Stats counts outcomes for one entity kind.
type Stats struct {
	Created   int
	Updated   int
	Deleted   int
	Unchanged int
	Skipped   int
	Failed    int
}

// Report is the outcome of a full run.
type Report struct {
	RunID    string
	Root     string
	OrgUnits Stats
	Users    Stats
	Failures []mutation.Failure
	Skips    []error // Entities dropped before diffing, with the reason

	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
}

func (r *Report) stats(kind payload.Kind) *Stats {
	if kind == payload.KindUser {
		return &r.Users
	}
	return &r.OrgUnits
}

// Stats returns the counters for kind.
func (r *Report) Stats(kind payload.Kind) Stats { return *r.stats(kind) }

// HasFailures reports whether any mutation failed.
func (r *Report) HasFailures() bool { return len(r.Failures) > 0 }

// Mutations returns the number of successful mutations.
func (r *Report) Mutations() int {
	return r.OrgUnits.Created + r.OrgUnits.Updated + r.OrgUnits.Deleted +
		r.Users.Created + r.Users.Updated + r.Users.Deleted
}

func (r *Report) skip(kind payload.Kind, err error) {
	r.stats(kind).Skipped++
	r.Skips = append(r.Skips, err)
}

func (r *Report) merge(kind payload.Kind, applied *mutation.Report) {
	if applied == nil {
		return
	}
	s := r.stats(kind)
	s.Created += applied.Created
	s.Updated += applied.Updated
	s.Deleted += applied.Deleted
	for _, f := range applied.Failed {
		r.stats(f.Kind).Failed++
	}
	r.Failures = append(r.Failures, applied.Failed...)
}

// String returns a human-readable summary of the report.
func (r *Report) String() string {
	var b strings.Builder
	for _, k := range []payload.Kind{payload.KindOrgUnit, payload.KindUser} {
		s := r.Stats(k)
		fmt.Fprintf(&b, "%s: %d created, %d updated, %d deleted, %d unchanged, %d skipped, %d failed\n",
			k, s.Created, s.Updated, s.Deleted, s.Unchanged, s.Skipped, s.Failed)
	}
	fmt.Fprintf(&b, "duration: %s", r.Duration.Round(time.Millisecond))
	return b.String()
}

// Plan is the computed difference between source and target before any
// mutation is sent.
type Plan struct {
	OrgUnits *differ.Changeset[payload.OrgUnit]
	Users    *differ.Changeset[payload.User]

	report      *Report
	depths      map[string]int // Source tree depth, for parent-first upserts
	storedDepth map[string]int // Target tree depth, for deepest-first deletes
}

// Report returns the counters collected while planning.
func (p *Plan) Report() *Report { return p.report }

// HasChanges reports whether applying the plan would send any mutation.
func (p *Plan) HasChanges() bool {
	return p.OrgUnits.HasChanges() || p.Users.HasChanges()
}

// Print renders every planned mutation.
func (p *Plan) Print() string {
	var b strings.Builder
	b.WriteString("Org units:\n")
	b.WriteString(p.OrgUnits.Print())
	b.WriteString("Users:\n")
	b.WriteString(p.Users.Print())
	return b.String()
}

// SingleResult is the outcome of syncing one entity.
type SingleResult struct {
	Kind    payload.Kind
	ID      string
	Action  differ.Action
	Payload payload.Record // Payload sent (or that would be sent); nil for deletes
	Changes []differ.FieldChange
	DryRun  bool
	Applied *mutation.Report
}
