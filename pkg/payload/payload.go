// Package payload defines the flat records pushed to the target directory,
// the snapshot the target returns, and the canonical form used to compare
// and hash them.
package payload

import (
	"fmt"
	"strings"
)

// Kind identifies an entity kind.
type Kind string

const (
	// KindOrgUnit is an organisational unit.
	KindOrgUnit Kind = "orgunit"
	// KindUser is a person with one or more positions.
	KindUser Kind = "user"
)

// ParseKind parses a kind from user input.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "orgunit", "org_unit", "ou":
		return KindOrgUnit, nil
	case "user", "person", "employee":
		return KindUser, nil
	default:
		return "", fmt.Errorf("unknown kind %q", s)
	}
}

// String returns the kind name.
func (k Kind) String() string { return string(k) }

// Record is satisfied by every payload kind.
type Record interface {
	// Identity is the target-side identity (possibly remapped from the source uuid).
	Identity() string
	// Kind reports the entity kind.
	Kind() Kind
	// MustDelete reports whether the record has to be removed from the target
	// instead of upserted.
	MustDelete() bool
}

// OrgUnit is the target payload for an organisational unit.
type OrgUnit struct {
	UUID              string   `json:"Uuid" validate:"required,uuid"`
	ShortKey          string   `json:"ShortKey"`
	Name              string   `json:"Name" validate:"required"`
	ParentOrgUnitUUID string   `json:"ParentOrgUnitUuid" validate:"omitempty,uuid"`
	ManagerUUID       string   `json:"ManagerUuid" validate:"omitempty,uuid"`
	PhoneNumber       string   `json:"PhoneNumber"`
	Landline          string   `json:"Landline"`
	Email             string   `json:"Email"`
	Post              string   `json:"Post"`
	Ean               string   `json:"Ean"`
	URL               string   `json:"Url"`
	LOSShortName      string   `json:"LOSShortName"`
	PayoutUnitUUID    string   `json:"PayoutUnitUuid" validate:"omitempty,uuid"`
	Tasks             []string `json:"Tasks" validate:"dive,uuid"`
	ContactForTasks   []string `json:"ContactForTasks" validate:"dive,uuid"`
	ItSystems         []string `json:"ItSystems" validate:"dive,uuid"`
}

// Identity implements Record.
func (o OrgUnit) Identity() string { return o.UUID }

// Kind implements Record.
func (o OrgUnit) Kind() Kind { return KindOrgUnit }

// MustDelete implements Record. Org units are never forced into deletion.
func (o OrgUnit) MustDelete() bool { return false }

// Person is the personal part of a user payload.
type Person struct {
	Name string `json:"Name" validate:"required"`
	Cpr  string `json:"Cpr,omitempty" validate:"omitempty,len=10,numeric"`
}

// Position places a user in an org unit.
type Position struct {
	OrgUnitUUID string `json:"OrgUnitUuid" validate:"required,uuid"`
	Name        string `json:"Name"`
	IsPrimary   bool   `json:"IsPrimary"`
}

// User is the target payload for a person.
type User struct {
	UUID        string     `json:"Uuid" validate:"required,uuid"`
	UserID      string     `json:"UserId" validate:"required"`
	Person      Person     `json:"Person"`
	Email       string     `json:"Email"`
	PhoneNumber string     `json:"PhoneNumber"`
	Landline    string     `json:"Landline"`
	Positions   []Position `json:"Positions" validate:"dive"`
}

// Identity implements Record.
func (u User) Identity() string { return u.UUID }

// Kind implements Record.
func (u User) Kind() Kind { return KindUser }

// MustDelete implements Record. A user without positions in scope is removed.
func (u User) MustDelete() bool { return len(u.Positions) == 0 }

// Snapshot is the target's current state as produced by a hierarchy job.
type Snapshot struct {
	OrgUnits []OrgUnit `json:"oUs"`
	Users    []User    `json:"users"`
}

// OrgUnitIndex returns the snapshot's org units keyed by identity.
func (s *Snapshot) OrgUnitIndex() map[string]OrgUnit {
	return index(s.OrgUnits)
}

// UserIndex returns the snapshot's users keyed by identity.
func (s *Snapshot) UserIndex() map[string]User {
	return index(s.Users)
}

func index[T Record](items []T) map[string]T {
	out := make(map[string]T, len(items))
	for _, item := range items {
		out[item.Identity()] = item
	}
	return out
}

// JobState is the lifecycle state of a hierarchy job.
type JobState string

// Job states.
const (
	JobRequested JobState = "requested"
	JobPolling   JobState = "polling"
	JobReady     JobState = "ready"
	JobTimedOut  JobState = "timed_out"
)

// SyncJob tracks an asynchronous hierarchy job on the target.
type SyncJob struct {
	RequestUUID string
	State       JobState
}
