package graphql

import "github.com/agentstation/orgsync/internal/source"

type class struct {
	UUID    string `json:"uuid"`
	UserKey string `json:"user_key"`
	Name    string `json:"name"`
	Scope   string `json:"scope"`
}

type address struct {
	Value       string `json:"value"`
	AddressType class  `json:"address_type"`
}

type itUser struct {
	UserKey  string `json:"user_key"`
	ITSystem struct {
		UUID    string `json:"uuid"`
		UserKey string `json:"user_key"`
		Name    string `json:"name"`
	} `json:"itsystem"`
	EmployeeUUID string `json:"employee_uuid"`
	OrgUnitUUID  string `json:"org_unit_uuid"`
}

type orgUnit struct {
	UUID             string `json:"uuid"`
	UserKey          string `json:"user_key"`
	Name             string `json:"name"`
	ParentUUID       string `json:"parent_uuid"`
	OrgUnitHierarchy string `json:"org_unit_hierarchy"`
	Managers         []struct {
		EmployeeUUID string `json:"employee_uuid"`
	} `json:"managers"`
	Addresses []address `json:"addresses"`
	KLEs      []struct {
		Number  []class `json:"kle_number"`
		Aspects []class `json:"kle_aspects"`
	} `json:"kles"`
	ITUsers       []itUser `json:"itusers"`
	ITSystemUUIDs []string `json:"itsystem_uuids"`
}

type employee struct {
	UUID        string    `json:"uuid"`
	Name        string    `json:"name"`
	CprNumber   string    `json:"cpr_number"`
	Addresses   []address `json:"addresses"`
	Engagements []struct {
		OrgUnitUUID string `json:"org_unit_uuid"`
		JobFunction class  `json:"job_function"`
		IsPrimary   bool   `json:"is_primary"`
	} `json:"engagements"`
	ITUsers []itUser `json:"itusers"`
}

func convertAddresses(in []address) []source.Address {
	out := make([]source.Address, 0, len(in))
	for _, a := range in {
		out = append(out, source.Address{
			Scope:       a.AddressType.Scope,
			TypeUUID:    a.AddressType.UUID,
			TypeUserKey: a.AddressType.UserKey,
			Value:       a.Value,
		})
	}
	return out
}

func convertAccounts(in []itUser) []source.ITAccount {
	out := make([]source.ITAccount, 0, len(in))
	for _, u := range in {
		out = append(out, source.ITAccount{System: u.ITSystem.Name, UserKey: u.UserKey})
	}
	return out
}

func (o orgUnit) convert() source.OrgUnit {
	u := source.OrgUnit{
		UUID:          o.UUID,
		UserKey:       o.UserKey,
		Name:          o.Name,
		ParentUUID:    o.ParentUUID,
		HierarchyUUID: o.OrgUnitHierarchy,
		Addresses:     convertAddresses(o.Addresses),
		ITAccounts:    convertAccounts(o.ITUsers),
		ITSystems:     o.ITSystemUUIDs,
	}
	for _, m := range o.Managers {
		if m.EmployeeUUID != "" {
			u.ManagerUUID = m.EmployeeUUID
			break
		}
	}
	for _, k := range o.KLEs {
		aspects := make([]string, 0, len(k.Aspects))
		for _, a := range k.Aspects {
			aspects = append(aspects, a.Name)
		}
		for _, n := range k.Number {
			u.KLEs = append(u.KLEs, source.KLE{NumberUUID: n.UUID, Aspects: aspects})
		}
	}
	return u
}

func (e employee) convert() source.Person {
	p := source.Person{
		UUID:       e.UUID,
		Name:       e.Name,
		Cpr:        e.CprNumber,
		Addresses:  convertAddresses(e.Addresses),
		ITAccounts: convertAccounts(e.ITUsers),
	}
	for _, eng := range e.Engagements {
		p.Engagements = append(p.Engagements, source.Engagement{
			OrgUnitUUID: eng.OrgUnitUUID,
			JobFunction: eng.JobFunction.Name,
			Primary:     eng.IsPrimary,
		})
	}
	return p
}
