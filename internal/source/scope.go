package source

import (
	"context"
	"slices"

	"github.com/agentstation/orgsync/pkg/errors"
	"github.com/agentstation/orgsync/pkg/logging"
	"github.com/agentstation/orgsync/pkg/payload"
)

// Scope is the set of units under a root, in breadth-first order, together
// with the target identity of every unit.
type Scope struct {
	Root string
	// Problems are validation errors found while building the scope: parent
	// cycles and units whose identity could not be remapped.
	Problems []error

	units      []OrgUnit
	identities map[string]string
}

// Contains reports whether a source unit uuid is in scope.
func (s *Scope) Contains(uuid string) bool {
	_, ok := s.identities[uuid]
	return ok
}

// Identity returns the target identity of a unit in scope.
func (s *Scope) Identity(uuid string) (string, bool) {
	id, ok := s.identities[uuid]
	return id, ok
}

// Len returns the number of units in scope.
func (s *Scope) Len() int { return len(s.units) }

// Scope reads every unit and builds the subtree under root from parent
// references among units passing the hierarchy filter. An empty root selects
// every unit without a parent as a root. Units on parent cycles within the
// scope are reported as EntityValidationErrors and left out, as are units the
// backend could not decode.
func (r *Reader) Scope(ctx context.Context, root string, hierarchyFilter []string) (*Scope, error) {
	if root == "" {
		root = r.opts.RootUnit
	}
	if hierarchyFilter == nil {
		hierarchyFilter = r.opts.HierarchyFilter
	}

	scope := &Scope{Root: root, identities: make(map[string]string)}

	all := make(map[string]OrgUnit)
	for raw, err := range r.backend.OrgUnits(ctx) {
		if errors.IsValidationError(err) {
			scope.Problems = append(scope.Problems, err)
			continue
		}
		if err != nil {
			return nil, err
		}
		if len(hierarchyFilter) > 0 && raw.UUID != root && !slices.Contains(hierarchyFilter, raw.HierarchyUUID) {
			continue
		}
		all[raw.UUID] = raw
	}
	if root != "" {
		if _, ok := all[root]; !ok {
			return nil, errors.NewNotFoundError("orgunit", root)
		}
	}

	// The root's own parent is outside the subtree.
	nodes := make([]payload.OrgUnit, 0, len(all))
	for id, raw := range all {
		parent := raw.ParentUUID
		if id == root {
			parent = ""
		}
		nodes = append(nodes, payload.OrgUnit{UUID: id, ParentOrgUnitUUID: parent})
	}
	depths := payload.Depths(nodes)

	children := make(map[string][]string)
	var roots []string
	for _, n := range nodes {
		switch {
		case root != "" && n.UUID == root:
			roots = append(roots, n.UUID)
		case root == "" && n.ParentOrgUnitUUID == "":
			roots = append(roots, n.UUID)
		default:
			children[n.ParentOrgUnitUUID] = append(children[n.ParentOrgUnitUUID], n.UUID)
		}
	}
	slices.Sort(roots)

	queue := roots
	visited := make(map[string]bool, len(all))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if visited[id] {
			continue
		}
		visited[id] = true

		raw := all[id]
		target, err := remapIdentity(payload.KindOrgUnit, id, raw.ITAccounts, r.opts.IdentityITSystems)
		if err != nil {
			// Descendants are dropped along with the unit.
			scope.Problems = append(scope.Problems, err)
			continue
		}
		scope.identities[id] = target
		scope.units = append(scope.units, raw)

		kids := children[id]
		slices.Sort(kids)
		queue = append(queue, kids...)
	}

	// Every unit below an explicit root has an ancestor chain ending at the
	// root, so cycles can only be in scope when there is no root.
	var cyclic []string
	if root == "" {
		for _, n := range nodes {
			if depths[n.UUID] < 0 {
				cyclic = append(cyclic, n.UUID)
			}
		}
	}
	slices.Sort(cyclic)
	for _, id := range cyclic {
		scope.Problems = append(scope.Problems, errors.NewEntityValidationError(
			payload.KindOrgUnit.String(), id, "ParentOrgUnitUuid", "unit is on or below a parent cycle"))
	}

	logging.FromContext(ctx).Debug().
		Str("root", root).
		Int("units", len(scope.units)).
		Int("problems", len(scope.Problems)).
		Msg("Built source scope")
	return scope, nil
}
