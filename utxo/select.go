package utxo

import (
	"fmt"
	"sort"
)

// Filter returns the units whose category is not excluded, preserving order.
func Filter(units []Unit, exclude ...Category) []Unit {
	out := make([]Unit, 0, len(units))
	for _, u := range units {
		if excluded(u.Category, exclude) {
			continue
		}
		out = append(out, u)
	}
	return out
}

func excluded(c Category, exclude []Category) bool {
	for _, e := range exclude {
		if c == e {
			return true
		}
	}
	return false
}

// sortedByValue returns a copy of units ordered by value, largest first.
// Equal values keep their input order so selection is deterministic.
func sortedByValue(units []Unit) []Unit {
	sorted := make([]Unit, len(units))
	copy(sorted, units)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Value > sorted[j].Value
	})
	return sorted
}

// Select picks units largest first until their total reaches target.
//
// Selection stops as soon as the target is crossed; no attempt is made to
// minimise change. It fails with ErrNoSpendableUnits when nothing survives
// the filter and ErrInsufficientFunds when all candidates fall short.
func Select(units []Unit, target uint64, exclude ...Category) ([]Unit, uint64, error) {
	return SelectCovering(units, target, nil, exclude...)
}

// SelectCovering is Select with a target that grows with the number of
// chosen inputs: after each pick the target is base + cost(len(chosen)).
// A nil cost behaves like Select.
func SelectCovering(units []Unit, base uint64, cost func(inputs int) uint64, exclude ...Category) ([]Unit, uint64, error) {
	candidates := Filter(units, exclude...)
	if len(candidates) == 0 {
		return nil, 0, ErrNoSpendableUnits
	}

	target := func(n int) uint64 {
		if cost == nil {
			return base
		}
		return base + cost(n)
	}

	var (
		chosen []Unit
		total  uint64
	)
	for _, u := range sortedByValue(candidates) {
		chosen = append(chosen, u)
		total += u.Value
		if total >= target(len(chosen)) {
			return chosen, total, nil
		}
	}
	return nil, 0, fmt.Errorf("%w: need %d sat, have %d sat",
		ErrInsufficientFunds, target(len(chosen)), total)
}

// FindAsset returns the first unit of category c holding at least quantity
// of assetID.
func FindAsset(units []Unit, c Category, assetID string, quantity uint64) (Unit, error) {
	var held uint64
	for _, u := range units {
		if u.Category != c || u.AssetID != assetID {
			continue
		}
		if u.AssetAmount >= quantity {
			return u, nil
		}
		held += u.AssetAmount
	}
	return Unit{}, fmt.Errorf("%w: %s %s: need %d in one unit, %d held across smaller units",
		ErrInsufficientProtocolBalance, c, assetID, quantity, held)
}

// AssetBalance sums the protocol balance of assetID across units of category c.
func AssetBalance(units []Unit, c Category, assetID string) uint64 {
	var sum uint64
	for _, u := range units {
		if u.Category == c && u.AssetID == assetID {
			sum += u.AssetAmount
		}
	}
	return sum
}
