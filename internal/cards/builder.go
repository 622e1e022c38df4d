package cards

import (
	"math"
	"math/rand"
	"sort"
)

// Ordering selects how a built deck is sequenced
type Ordering string

const (
	// OrderingSmart spreads the primary arc evenly and keeps powerups apart
	OrderingSmart Ordering = "smart"
	// OrderingInterleave round-robins randomly between arc groups
	OrderingInterleave Ordering = "interleave"
)

// DefaultPowerupFraction is the share of a partial deck given to powerups
const DefaultPowerupFraction = 0.10

// DeckOptions configures deck selection and ordering
type DeckOptions struct {
	DeckSize        int
	PrimaryArc      string
	PowerupFraction float64
	Ordering        Ordering
}

// BuildDeck selects cards from the catalog and returns them in play order
func BuildDeck(catalog Catalog, opts DeckOptions, rng *rand.Rand) ([]Card, error) {
	if err := catalog.Validate(); err != nil {
		return nil, err
	}
	if len(catalog) == 0 {
		return []Card{}, nil
	}

	primary, rest := selectCards(catalog, opts, rng)

	if opts.Ordering == OrderingInterleave {
		all := append(append([]Card{}, primary...), rest...)
		return separatePowerups(interleave(all, rng)), nil
	}
	return smartShuffle(primary, rest, rng), nil
}

// selectCards picks the primary arc cards (sorted) and the remaining cards
func selectCards(catalog Catalog, opts DeckOptions, rng *rand.Rand) ([]Card, []Card) {
	var primary []Card
	if opts.PrimaryArc != "" {
		primary = sortByArcNumber(catalog.ByArc(opts.PrimaryArc))
	}

	if opts.DeckSize <= 0 || opts.DeckSize >= len(catalog) {
		var rest []Card
		for _, card := range catalog {
			if card.IsPowerup || card.StoryArc != opts.PrimaryArc || opts.PrimaryArc == "" {
				rest = append(rest, card)
			}
		}
		return primary, rest
	}

	if len(primary) >= opts.DeckSize {
		return primary[:opts.DeckSize], nil
	}

	fraction := opts.PowerupFraction
	if fraction <= 0 {
		fraction = DefaultPowerupFraction
	}
	powerupCount := int(math.Floor(float64(opts.DeckSize) * fraction))
	if room := opts.DeckSize - len(primary); powerupCount > room {
		powerupCount = room
	}
	rest := sample(catalog.Powerups(), powerupCount, rng)

	fill := opts.DeckSize - len(primary) - len(rest)
	rest = append(rest, sample(catalog.ByArc(ArcRandom), fill, rng)...)
	return primary, rest
}

// sample draws up to n cards without replacement
func sample(pool []Card, n int, rng *rand.Rand) []Card {
	if n <= 0 {
		return nil
	}
	shuffled := make([]Card, len(pool))
	copy(shuffled, pool)
	rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	if n > len(shuffled) {
		n = len(shuffled)
	}
	return shuffled[:n]
}

func sortByArcNumber(arc []Card) []Card {
	sorted := make([]Card, len(arc))
	copy(sorted, arc)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].ArcOrder() < sorted[j].ArcOrder()
	})
	return sorted
}

// arcSlots computes evenly spread, strictly increasing positions for k arc cards in n slots
func arcSlots(n, k int) []int {
	slots := make([]int, k)
	if k == 0 {
		return slots
	}
	spacing := float64(n) / float64(k)
	for i := range slots {
		slots[i] = int(math.Floor(spacing*float64(i) + float64(k)/2))
	}
	// Cap from the back so every card fits, then push forward to stay strictly increasing.
	for i := k - 1; i >= 0; i-- {
		limit := n - (k - i)
		if i < k-1 && slots[i+1]-1 < limit {
			limit = slots[i+1] - 1
		}
		if slots[i] > limit {
			slots[i] = limit
		}
	}
	for i := range slots {
		if slots[i] < 0 {
			slots[i] = 0
		}
		if i > 0 && slots[i] <= slots[i-1] {
			slots[i] = slots[i-1] + 1
		}
	}
	return slots
}

// smartShuffle pins the primary arc to spread slots and shuffles the rest around it.
// Powerups never open the deck or sit next to each other unless the free slots left
// by the arc cannot hold them apart.
func smartShuffle(primary, rest []Card, rng *rand.Rand) []Card {
	n := len(primary) + len(rest)
	deck := make([]Card, n)
	taken := make([]bool, n)

	for i, slot := range arcSlots(n, len(primary)) {
		deck[slot] = primary[i]
		taken[slot] = true
	}

	var powerups, others []Card
	for _, card := range rest {
		if card.IsPowerup {
			powerups = append(powerups, card)
		} else {
			others = append(others, card)
		}
	}
	rng.Shuffle(len(powerups), func(i, j int) {
		powerups[i], powerups[j] = powerups[j], powerups[i]
	})
	rng.Shuffle(len(others), func(i, j int) {
		others[i], others[j] = others[j], others[i]
	})

	var free []int
	for slot := 0; slot < n; slot++ {
		if !taken[slot] {
			free = append(free, slot)
		}
	}

	reserved := powerupSlots(free, len(powerups), rng)
	for _, slot := range free {
		if reserved[slot] {
			deck[slot], powerups = powerups[0], powerups[1:]
		} else {
			deck[slot], others = others[0], others[1:]
		}
	}
	return deck
}

// powerupSlots picks count of the ascending free slots for powerups. Slot 0 and
// neighbouring picks are avoided: free slots form runs of consecutive positions and
// a run of length L holds at most (L+1)/2 spaced powerups, so the quota is spread
// at random across runs within those limits. Only powerups beyond the total
// capacity fall back to any remaining slot.
func powerupSlots(free []int, count int, rng *rand.Rand) map[int]bool {
	reserved := make(map[int]bool, count)
	if count == 0 {
		return reserved
	}

	var runs [][]int
	for _, slot := range free {
		if slot == 0 {
			continue
		}
		if last := len(runs) - 1; last >= 0 && runs[last][len(runs[last])-1] == slot-1 {
			runs[last] = append(runs[last], slot)
		} else {
			runs = append(runs, []int{slot})
		}
	}

	var capacity []int
	for i, run := range runs {
		for j := 0; j < (len(run)+1)/2; j++ {
			capacity = append(capacity, i)
		}
	}
	rng.Shuffle(len(capacity), func(i, j int) {
		capacity[i], capacity[j] = capacity[j], capacity[i]
	})
	placed := count
	if placed > len(capacity) {
		placed = len(capacity)
	}
	perRun := make([]int, len(runs))
	for _, i := range capacity[:placed] {
		perRun[i]++
	}
	for i, run := range runs {
		for _, offset := range spacedOffsets(len(run), perRun[i], rng) {
			reserved[run[offset]] = true
		}
	}

	if placed == count {
		return reserved
	}
	var leftover []int
	for _, slot := range free {
		if !reserved[slot] && slot != 0 {
			leftover = append(leftover, slot)
		}
	}
	rng.Shuffle(len(leftover), func(i, j int) {
		leftover[i], leftover[j] = leftover[j], leftover[i]
	})
	if len(free) > 0 && free[0] == 0 {
		leftover = append(leftover, 0)
	}
	for _, slot := range leftover[:count-placed] {
		reserved[slot] = true
	}
	return reserved
}

// spacedOffsets draws k pairwise non-adjacent offsets in [0, length) uniformly.
// Choosing k sorted values from [0, length-k] and shifting the i-th by i keeps a gap
// between every pair. Requires k <= (length+1)/2.
func spacedOffsets(length, k int, rng *rand.Rand) []int {
	if k == 0 {
		return nil
	}
	offsets := rng.Perm(length - k + 1)[:k]
	sort.Ints(offsets)
	for i := range offsets {
		offsets[i] += i
	}
	return offsets
}

// interleave groups cards by arc and repeatedly draws from a random non-empty group
func interleave(all []Card, rng *rand.Rand) []Card {
	groups := make(map[string][]Card)
	var names []string
	for _, card := range all {
		key := card.StoryArc
		if card.IsPowerup {
			key = ArcPowerup
		}
		if _, ok := groups[key]; !ok {
			names = append(names, key)
		}
		groups[key] = append(groups[key], card)
	}
	sort.Strings(names)

	queues := make([][]Card, 0, len(names))
	for _, name := range names {
		group := groups[name]
		if name == ArcRandom || name == ArcPowerup {
			rng.Shuffle(len(group), func(i, j int) {
				group[i], group[j] = group[j], group[i]
			})
		} else {
			group = sortByArcNumber(group)
		}
		queues = append(queues, group)
	}
	rng.Shuffle(len(queues), func(i, j int) {
		queues[i], queues[j] = queues[j], queues[i]
	})

	result := make([]Card, 0, len(all))
	for len(queues) > 0 {
		i := rng.Intn(len(queues))
		result = append(result, queues[i][0])
		queues[i] = queues[i][1:]
		if len(queues[i]) == 0 {
			queues = append(queues[:i], queues[i+1:]...)
		}
	}
	return result
}

// separatePowerups moves powerups off slot 0 and apart without reordering the other
// cards. Each powerup keeps the gap it was drawn into when that gap is free, otherwise
// it takes the nearest free gap after a non-powerup card. Powerups beyond the number
// of such gaps go to the end.
func separatePowerups(deck []Card) []Card {
	var others, powerups []Card
	var wanted []int
	for _, card := range deck {
		if card.IsPowerup {
			powerups = append(powerups, card)
			wanted = append(wanted, len(others))
		} else {
			others = append(others, card)
		}
	}
	if len(powerups) == 0 {
		return deck
	}

	// gap g sits right after others[g-1]
	m := len(others)
	inGap := make([]*Card, m+1)
	var overflow []Card
	for i, g := range wanted {
		if g < 1 {
			g = 1
		}
		slot := -1
		for j := g; j <= m && slot < 0; j++ {
			if inGap[j] == nil {
				slot = j
			}
		}
		for j := g - 1; j >= 1 && slot < 0; j-- {
			if inGap[j] == nil {
				slot = j
			}
		}
		if slot < 0 {
			overflow = append(overflow, powerups[i])
			continue
		}
		inGap[slot] = &powerups[i]
	}

	result := make([]Card, 0, len(deck))
	for g, card := range others {
		result = append(result, card)
		if p := inGap[g+1]; p != nil {
			result = append(result, *p)
		}
	}
	return append(result, overflow...)
}
