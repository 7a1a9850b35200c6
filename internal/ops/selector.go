package ops

import "math/rand"

// Selector picks the next operation for a virtual user.
type Selector interface {
	Pick(rng *rand.Rand) Spec
}

// Uniform selects every catalog entry with equal probability. This is the
// default offered-load composition.
type Uniform struct {
	Catalog Catalog
}

func (u Uniform) Pick(rng *rand.Rand) Spec {
	return u.Catalog[rng.Intn(len(u.Catalog))]
}

// Weighted selects entries in proportion to their Weight. Entries with a zero
// weight are never picked unless every weight is zero, in which case it
// degrades to uniform selection.
type Weighted struct {
	catalog    Catalog
	cumulative []int
	total      int
}

func NewWeighted(c Catalog) *Weighted {
	w := &Weighted{catalog: c, cumulative: make([]int, len(c))}
	for i, s := range c {
		w.total += s.Weight
		w.cumulative[i] = w.total
	}
	return w
}

func (w *Weighted) Pick(rng *rand.Rand) Spec {
	if w.total == 0 {
		return w.catalog[rng.Intn(len(w.catalog))]
	}
	n := rng.Intn(w.total)
	for i, c := range w.cumulative {
		if n < c {
			return w.catalog[i]
		}
	}
	return w.catalog[len(w.catalog)-1]
}
