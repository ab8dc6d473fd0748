package coldchain

import (
	"sort"
	"time"

	"github.com/vaxflow/vaxflow/internal/platform/rules"
)

// Envelope is the [min,max] °C range a batch must be stored within, taken
// from its vaccine's temperature conditions.
type Envelope struct {
	Min float64
	Max float64
}

// checkStorage validates one storage against a batch's envelope and
// quantity. nil means the storage is a candidate; otherwise the violation
// names the first failed condition, activation checked before envelope and
// capacity so an inactive unit never reports a capacity problem.
func checkStorage(s *ColdStorage, env Envelope, quantity int, today time.Time) *rules.Violation {
	if !s.IsActive {
		return rules.New(rules.StorageInactive, "storage %s is deactivated", s.Name)
	}
	if s.EffectiveFrom.After(today) {
		return rules.New(rules.StorageInactive,
			"storage %s is not effective until %s", s.Name, s.EffectiveFrom.Format("2006-01-02"))
	}
	// Full containment; partial overlap is rejected, not down-ranked.
	if s.MinTemperatureThreshold > env.Min || s.MaxTemperatureThreshold < env.Max {
		return rules.New(rules.TemperatureEnvelopeMismatch,
			"storage %s operates [%g,%g]°C which does not contain [%g,%g]°C",
			s.Name, s.MinTemperatureThreshold, s.MaxTemperatureThreshold, env.Min, env.Max)
	}
	if s.RemainingCapacity() < quantity {
		return rules.New(rules.InsufficientCapacity,
			"storage %s has %d vials of room, batch needs %d",
			s.Name, s.RemainingCapacity(), quantity)
	}
	return nil
}

// FindCandidates filters storages down to the units that can take the whole
// batch today, ordered by tightest containing envelope first and, on ties,
// most remaining capacity. The order is deterministic: equal storages sort
// by name.
func FindCandidates(batch *VaccineBatch, env Envelope, storages []*ColdStorage, today time.Time) []*ColdStorage {
	var out []*ColdStorage
	for _, s := range storages {
		if checkStorage(s, env, batch.CurrentQuantity, today) == nil {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		wi, wj := out[i].EnvelopeWidth(), out[j].EnvelopeWidth()
		if wi != wj {
			return wi < wj
		}
		ri, rj := out[i].RemainingCapacity(), out[j].RemainingCapacity()
		if ri != rj {
			return ri > rj
		}
		return out[i].Name < out[j].Name
	})
	return out
}
