package playback

import (
	"math/rand"

	"github.com/fhops/fhops/internal/infra/rngsplit"
	"github.com/fhops/fhops/internal/problemview"
)

// SamplingConfig parameterises stochastic playback (§4.5).
type SamplingConfig struct {
	Samples               int
	DowntimeProb          float64
	DowntimeMaxPerDay     int
	WeatherProb           float64
	WeatherSeverity       float64
	WeatherWindow         int
	LandingShockProb      float64
	LandingShockMultMin   float64
	LandingShockMultMax   float64
	LandingShockDuration  int
}

// Stochastic runs cfg.Samples independent perturbed replays and
// returns one KPIBundle per sample, in sample order; EnsembleOf
// computes the mean metrics across them. When every probability in cfg is zero,
// every sample is required to equal the deterministic result
// regardless of sample count (§4.5, §8 property 3) — this holds
// structurally here because a zero-probability perturbation never
// populates its drop/factor maps.
func Stochastic(v *problemview.View, rows []AssignmentRow, cfg SamplingConfig, seed int64, strict bool) ([]KPIBundle, error) {
	samples := cfg.Samples
	if samples < 1 {
		samples = 1
	}
	out := make([]KPIBundle, samples)
	for i := 0; i < samples; i++ {
		rng := rngsplit.Child(seed, i)
		p := drawPerturbation(v, cfg, rng)
		kpi, err := replay(v, rows, replayOptions{sampleID: i, strict: strict, perturb: p})
		if err != nil {
			return nil, err
		}
		out[i] = kpi
	}
	return out, nil
}

// EnsembleOf computes the mean metrics across a set of per-sample
// bundles, to be attached to the canonical bundle's Ensemble field.
func EnsembleOf(samples []KPIBundle) EnsembleKPI {
	if len(samples) == 0 {
		return EnsembleKPI{}
	}
	var prod, mob, completed float64
	for _, s := range samples {
		prod += s.TotalProduction
		mob += s.MobilisationCost
		completed += float64(s.CompletedBlocks)
	}
	n := float64(len(samples))
	return EnsembleKPI{
		MeanTotalProduction:  prod / n,
		MeanMobilisationCost: mob / n,
		MeanCompletedBlocks:  completed / n,
	}
}

func drawPerturbation(v *problemview.View, cfg SamplingConfig, rng *rand.Rand) *perturbation {
	p := &perturbation{
		droppedShift:  map[shiftKey]bool{},
		weatherFactor: map[int]float64{},
		landingFactor: map[landingDayKey]float64{},
	}

	if cfg.DowntimeProb > 0 {
		for _, m := range v.Scenario.Machines {
			for day := 1; day <= v.Scenario.Horizon; day++ {
				if rng.Float64() >= cfg.DowntimeProb {
					continue
				}
				dropped := 0
				for _, sid := range v.ShiftIDs {
					if cfg.DowntimeMaxPerDay > 0 && dropped >= cfg.DowntimeMaxPerDay {
						break
					}
					p.droppedShift[shiftKey{MachineID: m.ID, Day: day, ShiftID: sid}] = true
					dropped++
				}
			}
		}
	}

	if cfg.WeatherProb > 0 {
		day := 1
		for day <= v.Scenario.Horizon {
			if rng.Float64() < cfg.WeatherProb {
				factor := 1 - cfg.WeatherSeverity
				window := cfg.WeatherWindow
				if window < 1 {
					window = 1
				}
				for d := day; d < day+window && d <= v.Scenario.Horizon; d++ {
					p.weatherFactor[d] = factor
				}
				day += window
			} else {
				day++
			}
		}
	}

	if cfg.LandingShockProb > 0 {
		for _, l := range v.Scenario.Landings {
			day := 1
			for day <= v.Scenario.Horizon {
				if rng.Float64() < cfg.LandingShockProb {
					lo, hi := cfg.LandingShockMultMin, cfg.LandingShockMultMax
					if hi < lo {
						hi = lo
					}
					mult := lo + rng.Float64()*(hi-lo)
					duration := cfg.LandingShockDuration
					if duration < 1 {
						duration = 1
					}
					for d := day; d < day+duration && d <= v.Scenario.Horizon; d++ {
						key := landingDayKey{LandingID: l.ID, Day: d}
						if existing, ok := p.landingFactor[key]; ok {
							p.landingFactor[key] = existing * mult
						} else {
							p.landingFactor[key] = mult
						}
					}
					day += duration
				} else {
					day++
				}
			}
		}
	}

	return p
}
