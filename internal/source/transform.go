package source

import (
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/agentstation/orgsync/pkg/errors"
	"github.com/agentstation/orgsync/pkg/payload"
)

// selectAddress picks the value of the best address with the given scope.
// With a priority list the first non-empty address whose type uuid or user
// key appears earliest in the list wins. Without one the first non-empty
// match in source order wins.
func selectAddress(addresses []Address, scope string, priority []string) string {
	if len(priority) == 0 {
		for _, a := range addresses {
			if a.Scope == scope && strings.TrimSpace(a.Value) != "" {
				return strings.TrimSpace(a.Value)
			}
		}
		return ""
	}

	for _, want := range priority {
		for _, a := range addresses {
			if a.Scope != scope || strings.TrimSpace(a.Value) == "" {
				continue
			}
			if a.TypeUUID == want || a.TypeUserKey == want {
				return strings.TrimSpace(a.Value)
			}
		}
	}
	return ""
}

// partitionKLE splits KLE numbers into tasks and contact-for-tasks.
func partitionKLE(kles []KLE, useContactForTasks bool) (tasks, contact []string) {
	tasks, contact = []string{}, []string{}
	for _, k := range kles {
		if k.NumberUUID == "" {
			continue
		}
		for _, aspect := range k.Aspects {
			switch aspect {
			case AspectExecuting:
				tasks = append(tasks, k.NumberUUID)
			case AspectResponsible:
				if useContactForTasks {
					contact = append(contact, k.NumberUUID)
				}
			}
		}
	}
	slices.Sort(tasks)
	slices.Sort(contact)
	return slices.Compact(tasks), slices.Compact(contact)
}

// remapIdentity returns the target identity for an entity: the user key of
// its account in the first configured identity it-system, or the source uuid.
func remapIdentity(kind payload.Kind, sourceUUID string, accounts []ITAccount, systems []string) (string, error) {
	for _, system := range systems {
		for _, acc := range accounts {
			if acc.System != system || acc.UserKey == "" {
				continue
			}
			id, err := uuid.Parse(acc.UserKey)
			if err != nil {
				return "", errors.NewEntityValidationError(kind.String(), sourceUUID, "identity",
					"identity it-system "+system+" user key "+acc.UserKey+" is not a uuid")
			}
			return id.String(), nil
		}
	}
	return sourceUUID, nil
}

// accountUserKey returns the user key of the first account in system.
func accountUserKey(accounts []ITAccount, system string) string {
	if system == "" {
		return ""
	}
	for _, acc := range accounts {
		if acc.System == system && acc.UserKey != "" {
			return acc.UserKey
		}
	}
	return ""
}

func truncateRunes(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}

// transformOrgUnit builds the target payload of a unit in scope.
func transformOrgUnit(raw OrgUnit, scope *Scope, opts Options) (payload.OrgUnit, error) {
	id, ok := scope.identities[raw.UUID]
	if !ok {
		return payload.OrgUnit{}, errors.NewNotFoundError("orgunit", raw.UUID)
	}

	tasks, contact := partitionKLE(raw.KLEs, opts.UseContactForTasks)
	ou := payload.OrgUnit{
		UUID:            id,
		ShortKey:        raw.UserKey,
		Name:            strings.TrimSpace(raw.Name),
		PhoneNumber:     selectAddress(raw.Addresses, ScopePhone, opts.PhonePriority),
		Email:           selectAddress(raw.Addresses, ScopeEmail, opts.EmailPriority),
		Post:            selectAddress(raw.Addresses, ScopePost, opts.PostPriority),
		Ean:             selectAddress(raw.Addresses, ScopeEAN, nil),
		URL:             selectAddress(raw.Addresses, ScopeWWW, nil),
		Tasks:           tasks,
		ContactForTasks: contact,
		ItSystems:       slices.Clone(raw.ITSystems),
	}
	if len(opts.LandlinePriority) > 0 {
		ou.Landline = selectAddress(raw.Addresses, ScopePhone, opts.LandlinePriority)
	}
	if raw.UUID != scope.Root {
		ou.ParentOrgUnitUUID = scope.identities[raw.ParentUUID]
	}
	if opts.SyncManagers {
		ou.ManagerUUID = raw.ManagerUUID
	}

	ou = ou.Canonical()
	if err := payload.Validate(ou); err != nil {
		return payload.OrgUnit{}, err
	}
	return ou, nil
}

// transformPerson builds the target payload of a person. Engagements in
// units outside scope are dropped; a result without positions must be
// deleted from the target.
func transformPerson(raw Person, scope *Scope, opts Options) (payload.User, error) {
	id, err := remapIdentity(payload.KindUser, raw.UUID, raw.ITAccounts, opts.IdentityITSystems)
	if err != nil {
		return payload.User{}, err
	}

	user := payload.User{
		UUID:        id,
		UserID:      accountUserKey(raw.ITAccounts, opts.UserKeyITSystem),
		Person:      payload.Person{Name: strings.TrimSpace(raw.Name)},
		Email:       selectAddress(raw.Addresses, ScopeEmail, opts.EmailPriority),
		PhoneNumber: selectAddress(raw.Addresses, ScopePhone, opts.PhonePriority),
		Positions:   []payload.Position{},
	}
	if user.UserID == "" {
		user.UserID = id
	}
	if len(opts.LandlinePriority) > 0 {
		user.Landline = selectAddress(raw.Addresses, ScopePhone, opts.LandlinePriority)
	}
	if opts.XferCpr {
		user.Person.Cpr = strings.ReplaceAll(raw.Cpr, "-", "")
	}

	for _, e := range raw.Engagements {
		unit, ok := scope.identities[e.OrgUnitUUID]
		if !ok {
			continue
		}
		user.Positions = append(user.Positions, payload.Position{
			OrgUnitUUID: unit,
			Name:        truncateRunes(strings.TrimSpace(e.JobFunction), opts.NameMaxLength),
			IsPrimary:   e.Primary,
		})
	}

	user = user.Canonical()
	if err := payload.Validate(user); err != nil {
		return payload.User{}, err
	}
	return user, nil
}
