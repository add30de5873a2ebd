package graphql

import (
	_ "embed"
	"strings"

	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"

	"github.com/agentstation/orgsync/pkg/errors"
)

//go:embed schema.graphql
var schemaSource string

const addressFields = `
      value
      address_type { uuid user_key name scope }`

const itUserFields = `
      user_key
      itsystem { uuid user_key name }
      employee_uuid
      org_unit_uuid`

const orgUnitFields = `
    uuid
    user_key
    name
    parent_uuid
    org_unit_hierarchy
    managers { employee_uuid }
    addresses {` + addressFields + `
    }
    kles {
      kle_number { uuid user_key name }
      kle_aspects { uuid user_key name }
    }
    itusers {` + itUserFields + `
    }
    itsystem_uuids`

const employeeFields = `
    uuid
    name
    cpr_number
    addresses {` + addressFields + `
    }
    engagements {
      org_unit_uuid
      job_function { uuid user_key name }
      is_primary
    }
    itusers {` + itUserFields + `
    }`

var orgUnitsQuery = `query OrgUnits($limit: Int, $cursor: Cursor, $uuids: [UUID!]) {
  org_units(limit: $limit, cursor: $cursor, uuids: $uuids) {
    objects { uuid current {` + orgUnitFields + `
    } }
    page_info { next_cursor }
  }
}`

var employeesQuery = `query Employees($limit: Int, $cursor: Cursor, $uuids: [UUID!]) {
  employees(limit: $limit, cursor: $cursor, uuids: $uuids) {
    objects { uuid current {` + employeeFields + `
    } }
    page_info { next_cursor }
  }
}`

var itUsersQuery = `query ITUsers($user_keys: [String!], $itsystem_names: [String!], $limit: Int, $cursor: Cursor) {
  itusers(user_keys: $user_keys, itsystem_names: $itsystem_names, limit: $limit, cursor: $cursor) {
    objects { uuid current {` + itUserFields + `
    } }
    page_info { next_cursor }
  }
}`

// validateQueries checks every query document against the embedded schema.
func validateQueries() error {
	schema, err := gqlparser.LoadSchema(&ast.Source{Name: "schema.graphql", Input: schemaSource})
	if err != nil {
		return errors.WrapParse("graphql", "schema.graphql", err)
	}
	for name, q := range map[string]string{
		"OrgUnits":  orgUnitsQuery,
		"Employees": employeesQuery,
		"ITUsers":   itUsersQuery,
	} {
		if _, errs := gqlparser.LoadQuery(schema, q); len(errs) > 0 {
			msgs := make([]string, len(errs))
			for i, e := range errs {
				msgs[i] = e.Message
			}
			return errors.NewParseError("graphql", name, strings.Join(msgs, "; "), errs)
		}
	}
	return nil
}
