// Package source reads org units and persons from the HR system and
// transforms them into target payloads.
package source

import (
	"context"
	"iter"

	"github.com/agentstation/orgsync/pkg/payload"
)

// Address scopes used by the source system.
const (
	ScopePhone = "PHONE"
	ScopeEmail = "EMAIL"
	ScopePost  = "DAR"
	ScopeEAN   = "EAN"
	ScopeWWW   = "WWW"
)

// KLE aspects.
const (
	AspectExecuting   = "Udførende"
	AspectResponsible = "Ansvarlig"
)

// Address is a contact address attached to a unit or person.
type Address struct {
	Scope       string `json:"scope"`
	TypeUUID    string `json:"address_type_uuid"`
	TypeUserKey string `json:"address_type_user_key"`
	Value       string `json:"value"`
}

// KLE is a task classification attached to a unit.
type KLE struct {
	NumberUUID string   `json:"kle_number_uuid"`
	Aspects    []string `json:"kle_aspects"`
}

// ITAccount is an account in an external it-system.
type ITAccount struct {
	System  string `json:"itsystem"`
	UserKey string `json:"user_key"`
}

// Engagement places a person in a unit.
type Engagement struct {
	OrgUnitUUID string `json:"org_unit_uuid"`
	JobFunction string `json:"job_function"`
	Primary     bool   `json:"is_primary"`
}

// OrgUnit is an org unit as stored in the source system.
type OrgUnit struct {
	UUID          string      `json:"uuid"`
	UserKey       string      `json:"user_key"`
	Name          string      `json:"name"`
	ParentUUID    string      `json:"parent_uuid"`
	HierarchyUUID string      `json:"org_unit_hierarchy"`
	ManagerUUID   string      `json:"manager_uuid"`
	Addresses     []Address   `json:"addresses"`
	KLEs          []KLE       `json:"kles"`
	ITAccounts    []ITAccount `json:"itusers"`
	ITSystems     []string    `json:"itsystems"`
}

// Person is a person as stored in the source system.
type Person struct {
	UUID        string       `json:"uuid"`
	Name        string       `json:"name"`
	Cpr         string       `json:"cpr_number"`
	Addresses   []Address    `json:"addresses"`
	Engagements []Engagement `json:"engagements"`
	ITAccounts  []ITAccount  `json:"itusers"`
}

// Backend is the data access capability behind a Reader. The live API and
// the local read replica both implement it. The iterators yield a record that
// cannot be decoded as an EntityValidationError and carry on with the next.
type Backend interface {
	// OrgUnits iterates over every current org unit.
	OrgUnits(ctx context.Context) iter.Seq2[OrgUnit, error]
	// Persons iterates over every person with at least one engagement.
	Persons(ctx context.Context) iter.Seq2[Person, error]
	// OrgUnit reads a single unit, returning a NotFoundError when absent.
	OrgUnit(ctx context.Context, uuid string) (*OrgUnit, error)
	// Person reads a single person, returning a NotFoundError when absent.
	Person(ctx context.Context, uuid string) (*Person, error)
	// FindByITAccount returns the uuids of entities owning an account with
	// the given user key in any of the named it-systems.
	FindByITAccount(ctx context.Context, kind payload.Kind, systems []string, userKey string) ([]string, error)
	// Close releases backend resources.
	Close() error
}
