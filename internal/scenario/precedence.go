package scenario

import "github.com/fhops/fhops/internal/domain"

// PrecedenceChain returns the machine roles of hs grouped by DAG layer,
// ascending: roles in layer i+1 may not out-produce roles in layer i on
// the same block (§4.3 constraint 8, §8 property 7). It re-validates the
// job graph; a harvest system that already passed Load's validation
// always succeeds here.
func PrecedenceChain(hs domain.HarvestSystem) ([][]string, error) {
	c := &collector{}
	jl, ok := layerHarvestSystem(hs, c, "harvest_systems", -1)
	if !ok {
		return nil, c.violations
	}
	return jl.rolesByLayer(hs), nil
}
