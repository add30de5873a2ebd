package output

import (
	"strconv"
	"strings"

	"github.com/agentstation/orgsync/pkg/differ"
	"github.com/agentstation/orgsync/pkg/duplicates"
	"github.com/agentstation/orgsync/pkg/mutation"
	"github.com/agentstation/orgsync/pkg/payload"
	"github.com/agentstation/orgsync/pkg/reconciler"
)

// RunView is the printable outcome of a full run.
type RunView struct {
	RunID    string           `json:"run_id" yaml:"run_id"`
	Root     string           `json:"root" yaml:"root"`
	Duration string           `json:"duration" yaml:"duration"`
	OrgUnits reconciler.Stats `json:"orgunits" yaml:"orgunits"`
	Users    reconciler.Stats `json:"users" yaml:"users"`
	Failures []FailureView    `json:"failures,omitempty" yaml:"failures,omitempty"`
}

// FailureView is one failed mutation.
type FailureView struct {
	Kind      string `json:"kind" yaml:"kind"`
	ID        string `json:"id" yaml:"id"`
	Operation string `json:"operation" yaml:"operation"`
	Error     string `json:"error" yaml:"error"`
}

// NewRunView converts a run report.
func NewRunView(r *reconciler.Report) RunView {
	v := RunView{
		RunID:    r.RunID,
		Root:     r.Root,
		Duration: r.Duration.String(),
		OrgUnits: r.OrgUnits,
		Users:    r.Users,
	}
	v.Failures = failureViews(r.Failures)
	return v
}

func failureViews(failures []mutation.Failure) []FailureView {
	out := make([]FailureView, 0, len(failures))
	for _, f := range failures {
		out = append(out, FailureView{Kind: f.Kind.String(), ID: f.ID, Operation: f.Operation, Error: f.Err.Error()})
	}
	return out
}

// Table implements Tabular.
func (v RunView) Table() Data {
	d := Data{Headers: []string{"Kind", "Created", "Updated", "Deleted", "Unchanged", "Skipped", "Failed"}}
	for _, row := range []struct {
		kind  payload.Kind
		stats reconciler.Stats
	}{{payload.KindOrgUnit, v.OrgUnits}, {payload.KindUser, v.Users}} {
		s := row.stats
		d.Rows = append(d.Rows, []string{row.kind.String(),
			itoa(s.Created), itoa(s.Updated), itoa(s.Deleted), itoa(s.Unchanged), itoa(s.Skipped), itoa(s.Failed)})
	}
	for _, f := range v.Failures {
		d.Rows = append(d.Rows, []string{"failed " + f.Kind, f.ID, f.Operation, f.Error, "", "", ""})
	}
	return d
}

// PlanView lists the mutations a dry run would send.
type PlanView struct {
	Changes []ChangeView `json:"changes" yaml:"changes"`
}

// ChangeView is one planned mutation.
type ChangeView struct {
	Kind   string   `json:"kind" yaml:"kind"`
	ID     string   `json:"id" yaml:"id"`
	Action string   `json:"action" yaml:"action"`
	Fields []string `json:"fields,omitempty" yaml:"fields,omitempty"`
}

// NewPlanView converts a plan.
func NewPlanView(p *reconciler.Plan) PlanView {
	var v PlanView
	v.Changes = append(v.Changes, changes(payload.KindOrgUnit, p.OrgUnits)...)
	v.Changes = append(v.Changes, changes(payload.KindUser, p.Users)...)
	return v
}

func changes[T payload.Record](kind payload.Kind, c *differ.Changeset[T]) []ChangeView {
	if c == nil {
		return nil
	}
	var out []ChangeView
	for _, u := range c.Created {
		out = append(out, ChangeView{Kind: kind.String(), ID: u.ID, Action: string(differ.ActionCreate)})
	}
	for _, u := range c.Updated {
		v := ChangeView{Kind: kind.String(), ID: u.ID, Action: string(differ.ActionUpdate)}
		for _, ch := range u.Changes {
			v.Fields = append(v.Fields, string(ch.Type)+" "+ch.Path)
		}
		out = append(out, v)
	}
	for _, d := range c.Deletes() {
		out = append(out, ChangeView{Kind: kind.String(), ID: d.ID, Action: string(differ.ActionDelete)})
	}
	return out
}

// Table implements Tabular.
func (v PlanView) Table() Data {
	d := Data{Headers: []string{"Kind", "ID", "Action", "Fields"}}
	for _, c := range v.Changes {
		d.Rows = append(d.Rows, []string{c.Kind, c.ID, c.Action, strings.Join(c.Fields, ", ")})
	}
	return d
}

// SingleView is the outcome of syncing one entity.
type SingleView struct {
	Kind    string   `json:"kind" yaml:"kind"`
	ID      string   `json:"id" yaml:"id"`
	Action  string   `json:"action" yaml:"action"`
	DryRun  bool     `json:"dry_run" yaml:"dry_run"`
	Applied bool     `json:"applied" yaml:"applied"`
	Fields  []string `json:"fields,omitempty" yaml:"fields,omitempty"`
	Payload any      `json:"payload,omitempty" yaml:"payload,omitempty"`
}

// NewSingleView converts a single-entity result.
func NewSingleView(r *reconciler.SingleResult) SingleView {
	v := SingleView{
		Kind:    r.Kind.String(),
		ID:      r.ID,
		Action:  string(r.Action),
		DryRun:  r.DryRun,
		Applied: r.Applied != nil && r.Applied.Applied() > 0,
		Payload: r.Payload,
	}
	for _, ch := range r.Changes {
		v.Fields = append(v.Fields, string(ch.Type)+" "+ch.Path)
	}
	return v
}

// Table implements Tabular.
func (v SingleView) Table() Data {
	return Data{
		Headers: []string{"Kind", "ID", "Action", "Dry Run", "Fields"},
		Rows:    [][]string{{v.Kind, v.ID, v.Action, strconv.FormatBool(v.DryRun), strings.Join(v.Fields, ", ")}},
	}
}

// DuplicateView is one duplicate finding.
type DuplicateView struct {
	Kind     string   `json:"kind" yaml:"kind"`
	Identity string   `json:"identity" yaml:"identity"`
	Reason   string   `json:"reason" yaml:"reason"`
	Details  []string `json:"details" yaml:"details"`
}

// DuplicatesView lists duplicate findings.
type DuplicatesView []DuplicateView

// NewDuplicatesView converts findings.
func NewDuplicatesView(found []duplicates.Duplicate) DuplicatesView {
	out := make(DuplicatesView, 0, len(found))
	for _, d := range found {
		out = append(out, DuplicateView{Kind: d.Kind.String(), Identity: d.Identity, Reason: string(d.Reason), Details: d.Err.Details})
	}
	return out
}

// Table implements Tabular.
func (v DuplicatesView) Table() Data {
	d := Data{Headers: []string{"Kind", "Identity", "Reason", "Details"}}
	for _, dup := range v {
		d.Rows = append(d.Rows, []string{dup.Kind, dup.Identity, dup.Reason, strings.Join(dup.Details, "; ")})
	}
	return d
}

// RemovalView is the outcome of removing duplicates.
type RemovalView struct {
	Kind     string        `json:"kind" yaml:"kind"`
	DryRun   bool          `json:"dry_run" yaml:"dry_run"`
	Targeted []string      `json:"targeted" yaml:"targeted"`
	Deleted  int           `json:"deleted" yaml:"deleted"`
	Failures []FailureView `json:"failures,omitempty" yaml:"failures,omitempty"`
}

// NewRemovalView converts a removal. A nil report means a dry run.
func NewRemovalView(kind payload.Kind, ids []string, r *mutation.Report) RemovalView {
	v := RemovalView{Kind: kind.String(), Targeted: ids, DryRun: r == nil}
	if r != nil {
		v.Deleted = r.Deleted
		v.Failures = failureViews(r.Failed)
	}
	return v
}

// Table implements Tabular.
func (v RemovalView) Table() Data {
	d := Data{Headers: []string{"Kind", "Identity", "Result"}}
	failed := make(map[string]string, len(v.Failures))
	for _, f := range v.Failures {
		failed[f.ID] = f.Error
	}
	for _, id := range v.Targeted {
		result := "deleted"
		switch {
		case v.DryRun:
			result = "would delete"
		case failed[id] != "":
			result = "failed: " + failed[id]
		}
		d.Rows = append(d.Rows, []string{v.Kind, id, result})
	}
	return d
}

// ReExportView lists re-export outcomes.
type ReExportView []ReExportEntry

// ReExportEntry is the re-export outcome of one target identity.
type ReExportEntry struct {
	Identity string       `json:"identity" yaml:"identity"`
	Sources  []SingleView `json:"sources" yaml:"sources"`
	Error    string       `json:"error,omitempty" yaml:"error,omitempty"`
}

// NewReExportView converts re-export results.
func NewReExportView(results []duplicates.ReExportResult) ReExportView {
	out := make(ReExportView, 0, len(results))
	for _, r := range results {
		e := ReExportEntry{Identity: r.Identity}
		for _, s := range r.Results {
			e.Sources = append(e.Sources, NewSingleView(s))
		}
		if r.Err != nil {
			e.Error = r.Err.Error()
		}
		out = append(out, e)
	}
	return out
}

// Table implements Tabular.
func (v ReExportView) Table() Data {
	d := Data{Headers: []string{"Identity", "Source", "Action", "Error"}}
	for _, e := range v {
		if len(e.Sources) == 0 {
			d.Rows = append(d.Rows, []string{e.Identity, "", "", e.Error})
			continue
		}
		for _, s := range e.Sources {
			d.Rows = append(d.Rows, []string{e.Identity, s.ID, s.Action, e.Error})
		}
	}
	return d
}

func itoa(n int) string { return strconv.Itoa(n) }
