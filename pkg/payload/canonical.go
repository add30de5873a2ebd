package payload

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"slices"
	"strings"

	"github.com/zeebo/blake3"
	"golang.org/x/text/unicode/norm"

	"github.com/agentstation/orgsync/pkg/errors"
)

// Canonical returns a copy with sorted list fields, NFC-normalised names and
// empty rather than nil slices.
func (o OrgUnit) Canonical() OrgUnit {
	o.Name = nfc(o.Name)
	o.Tasks = sortedCopy(o.Tasks)
	o.ContactForTasks = sortedCopy(o.ContactForTasks)
	o.ItSystems = sortedCopy(o.ItSystems)
	return o
}

// Canonical returns a copy with positions sorted and names NFC-normalised.
func (u User) Canonical() User {
	u.Person.Name = nfc(u.Person.Name)
	positions := make([]Position, len(u.Positions))
	for i, p := range u.Positions {
		p.Name = nfc(p.Name)
		positions[i] = p
	}
	slices.SortFunc(positions, func(a, b Position) int {
		if c := strings.Compare(a.OrgUnitUUID, b.OrgUnitUUID); c != 0 {
			return c
		}
		if c := strings.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		switch {
		case a.IsPrimary == b.IsPrimary:
			return 0
		case a.IsPrimary:
			return -1
		default:
			return 1
		}
	})
	u.Positions = positions
	return u
}

// Canonical returns the canonical form of any record kind.
func Canonical(r Record) Record {
	switch v := r.(type) {
	case OrgUnit:
		return v.Canonical()
	case User:
		return v.Canonical()
	case *OrgUnit:
		return v.Canonical()
	case *User:
		return v.Canonical()
	default:
		return r
	}
}

// Marshal encodes the canonical form of r.
func Marshal(r Record) ([]byte, error) {
	data, err := json.Marshal(Canonical(r))
	if err != nil {
		return nil, errors.WrapParse("json", string(r.Kind()), err)
	}
	return data, nil
}

// Hash is the hex BLAKE3 digest of the canonical JSON encoding.
func Hash(r Record) (string, error) {
	data, err := Marshal(r)
	if err != nil {
		return "", err
	}
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// Equal reports whether two records have the same canonical encoding.
func Equal(a, b Record) bool {
	da, err := Marshal(a)
	if err != nil {
		return false
	}
	db, err := Marshal(b)
	if err != nil {
		return false
	}
	return bytes.Equal(da, db)
}

func nfc(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

func sortedCopy(in []string) []string {
	out := slices.Clone(in)
	if out == nil {
		out = []string{}
	}
	slices.Sort(out)
	return slices.Compact(out)
}
