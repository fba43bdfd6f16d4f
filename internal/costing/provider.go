// Package costing defines the seam through which the scenario validator
// obtains a machine's default operating cost. The core never reads a
// global CPI/costing table directly — it receives a Provider at
// scenario-build time, the Go expression of "global CPI/costing helpers
// → injected costing provider" (Design Note 5).
package costing

// Provider supplies a default operating cost per hour for a canonical
// machine role. Implementations may back this with a live feed; the
// core only ever calls it through this interface.
type Provider interface {
	OperatingCostPerHour(canonicalRole string) (rate float64, ok bool)
}

// bundledRates is the registry backing Bundled: nominal CAD/hour
// placeholders for each role the scenario package knows how to
// canonicalise, not a live costing feed.
var bundledRates = map[string]float64{
	"feller_buncher":  185.0,
	"grapple_skidder": 150.0,
	"cable_skidder":   165.0,
	"processor":       175.0,
	"loader":          140.0,
	"skyline_yarder":  260.0,
	"delimber":        130.0,
	"forwarder":       155.0,
}

// Bundled is the default Provider, backed by the rate table above
// (§4.1's "bundled role→rate table").
type Bundled struct{}

// OperatingCostPerHour implements Provider.
func (Bundled) OperatingCostPerHour(canonicalRole string) (float64, bool) {
	rate, ok := bundledRates[canonicalRole]
	return rate, ok
}

// Static is a Provider backed by a fixed map, useful for tests and for
// callers who want to override specific roles without standing up a
// live costing feed.
type Static map[string]float64

// OperatingCostPerHour implements Provider.
func (s Static) OperatingCostPerHour(canonicalRole string) (float64, bool) {
	rate, ok := s[canonicalRole]
	return rate, ok
}
