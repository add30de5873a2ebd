package differ

import (
	"fmt"
	"strings"

	"github.com/wI2L/jsondiff"

	"github.com/agentstation/orgsync/pkg/payload"
)

// ChangeType represents the type of change.
type ChangeType string

const (
	// ChangeTypeAdd indicates a field was added.
	ChangeTypeAdd ChangeType = "add"
	// ChangeTypeUpdate indicates a field was updated.
	ChangeTypeUpdate ChangeType = "update"
	// ChangeTypeRemove indicates a field was removed.
	ChangeTypeRemove ChangeType = "remove"
)

// FieldChange represents a change to a specific field.
type FieldChange struct {
	Path     string     // JSON pointer (e.g., "/Positions/0/Name")
	OldValue string     // Previous value (string representation)
	NewValue string     // New value (string representation)
	Type     ChangeType // Type of change
}

// Action names what a changeset does to a single identity.
type Action string

const (
	ActionCreate    Action = "create"
	ActionUpdate    Action = "update"
	ActionDelete    Action = "delete"
	ActionUnchanged Action = "unchanged"
	// ActionNone means the identity exists on neither side.
	ActionNone Action = "none"
)

// Upsert is a create or a full-payload update.
type Upsert[T payload.Record] struct {
	ID       string
	Payload  T             // Full payload to send, target-owned fields merged
	Previous *T            // Stored entry for updates, nil for creates
	Hash     string        // Hash of Payload, recorded in the cache on success
	Changes  []FieldChange // Only with tracking enabled
}

// Delete removes an identity from the target.
type Delete[T payload.Record] struct {
	ID       string
	Existing bool // Whether the target currently stores the identity
	Stored   T    // The stored entry when Existing
}

// Changeset is the partition computed by Diff.
type Changeset[T payload.Record] struct {
	Created   []Upsert[T]
	Updated   []Upsert[T]
	Deleted   []Delete[T]
	Unchanged []string
}

// Upserts returns creates followed by updates.
func (c *Changeset[T]) Upserts() []Upsert[T] {
	out := make([]Upsert[T], 0, len(c.Created)+len(c.Updated))
	out = append(out, c.Created...)
	return append(out, c.Updated...)
}

// Deletes returns only the deletes that have to be sent to the target.
func (c *Changeset[T]) Deletes() []Delete[T] {
	out := make([]Delete[T], 0, len(c.Deleted))
	for _, d := range c.Deleted {
		if d.Existing {
			out = append(out, d)
		}
	}
	return out
}

// HasChanges reports whether anything must be sent to the target.
func (c *Changeset[T]) HasChanges() bool {
	return len(c.Created) > 0 || len(c.Updated) > 0 || len(c.Deletes()) > 0
}

// Action returns the action of a single-identity changeset such as the one
// computed by DiffOne.
func (c *Changeset[T]) Action() Action {
	switch {
	case len(c.Created) > 0:
		return ActionCreate
	case len(c.Updated) > 0:
		return ActionUpdate
	case len(c.Deletes()) > 0:
		return ActionDelete
	case len(c.Unchanged) > 0:
		return ActionUnchanged
	default:
		return ActionNone
	}
}

// Summary returns a one-line description of the changeset.
func (c *Changeset[T]) Summary() string {
	return fmt.Sprintf("%d created, %d updated, %d deleted, %d unchanged",
		len(c.Created), len(c.Updated), len(c.Deletes()), len(c.Unchanged))
}

// Print writes a readable listing used for dry runs.
func (c *Changeset[T]) Print() string {
	var b strings.Builder
	for _, u := range c.Created {
		fmt.Fprintf(&b, "+ %s\n", u.ID)
	}
	for _, u := range c.Updated {
		fmt.Fprintf(&b, "~ %s\n", u.ID)
		for _, ch := range u.Changes {
			fmt.Fprintf(&b, "    %s %s: %s -> %s\n", ch.Type, ch.Path, ch.OldValue, ch.NewValue)
		}
	}
	for _, d := range c.Deletes() {
		fmt.Fprintf(&b, "- %s\n", d.ID)
	}
	return b.String()
}

// fieldChanges computes an RFC 6902 patch between the canonical encodings.
func fieldChanges[T payload.Record](before, after T) []FieldChange {
	a, err := payload.Marshal(before)
	if err != nil {
		return nil
	}
	b, err := payload.Marshal(after)
	if err != nil {
		return nil
	}
	patch, err := jsondiff.CompareJSON(a, b)
	if err != nil {
		return nil
	}

	changes := make([]FieldChange, 0, len(patch))
	for _, op := range patch {
		ch := FieldChange{Path: op.Path}
		switch op.Type {
		case jsondiff.OperationAdd:
			ch.Type = ChangeTypeAdd
			ch.NewValue = valueString(op.Value)
		case jsondiff.OperationRemove:
			ch.Type = ChangeTypeRemove
			ch.OldValue = valueString(op.OldValue)
		default:
			ch.Type = ChangeTypeUpdate
			ch.OldValue = valueString(op.OldValue)
			ch.NewValue = valueString(op.Value)
		}
		changes = append(changes, ch)
	}
	return changes
}

func valueString(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%v", v)
}
