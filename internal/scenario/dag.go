package scenario

import (
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"github.com/fhops/fhops/internal/domain"
)

// jobLayering is the result of topologically layering a harvest system's
// job DAG: Layer[jobName] is 0 for a job with no prerequisites, and
// 1 + max(prereq layers) otherwise. Role precedence (§4.3 constraint 8)
// is applied at the block level using these layers.
type jobLayering struct {
	Layer map[string]int
}

// layerHarvestSystem validates that hs.Jobs forms a DAG (invariant 4) and
// returns its topological layering. A cycle is reported as a single
// Violation; callers should skip sequencing constraints for a harvest
// system that fails this check.
func layerHarvestSystem(hs domain.HarvestSystem, c *collector, table string, row int) (jobLayering, bool) {
	g := simple.NewDirectedGraph()
	nameToID := make(map[string]int64, len(hs.Jobs))
	idToName := make(map[int64]string, len(hs.Jobs))
	for i, j := range hs.Jobs {
		id := int64(i)
		nameToID[j.Name] = id
		idToName[id] = j.Name
		g.AddNode(simple.Node(id))
	}

	ok := true
	for _, j := range hs.Jobs {
		to, exists := nameToID[j.Name]
		if !exists {
			continue
		}
		for _, prereq := range j.Prereqs {
			from, exists := nameToID[prereq]
			if !exists {
				c.addf(table, row, "jobs", "reference",
					"harvest system %q job %q references unknown prerequisite %q", hs.ID, j.Name, prereq)
				ok = false
				continue
			}
			g.SetEdge(g.NewEdge(simple.Node(from), simple.Node(to)))
		}
	}
	if !ok {
		return jobLayering{}, false
	}

	order, err := topo.SortStabilized(g, nil)
	if err != nil {
		c.addf(table, row, "jobs", "dag_cycle",
			"harvest system %q job graph is not a DAG: %v", hs.ID, err)
		return jobLayering{}, false
	}

	layer := make(map[string]int, len(order))
	// order is topologically sorted; a job's layer is 1 + max(prereq layers).
	prereqsOf := make(map[string][]string, len(hs.Jobs))
	for _, j := range hs.Jobs {
		prereqsOf[j.Name] = j.Prereqs
	}
	for _, n := range order {
		name := idToName[n.ID()]
		best := 0
		for _, p := range prereqsOf[name] {
			if l, ok := layer[p]; ok && l+1 > best {
				best = l + 1
			}
		}
		layer[name] = best
	}
	return jobLayering{Layer: layer}, true
}

// rolesByLayer groups job roles by their topological layer, in
// ascending layer order, deduplicated. This is the precedence chain a
// block with this harvest system must respect: role at layer k+1 may
// not out-produce role at layer k.
func (jl jobLayering) rolesByLayer(hs domain.HarvestSystem) [][]string {
	maxLayer := -1
	for _, l := range jl.Layer {
		if l > maxLayer {
			maxLayer = l
		}
	}
	roleAt := make([][]string, maxLayer+1)
	seen := make([]map[string]bool, maxLayer+1)
	for i := range seen {
		seen[i] = make(map[string]bool)
	}
	for _, j := range hs.Jobs {
		l := jl.Layer[j.Name]
		if j.Role == "" || seen[l][j.Role] {
			continue
		}
		seen[l][j.Role] = true
		roleAt[l] = append(roleAt[l], j.Role)
	}
	return roleAt
}
