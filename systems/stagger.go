package systems

// Stagger selects which update group runs its directional search on a tick.
// Every agent does the cheap forward check each tick; only the active
// group searches, so a full cycle takes MaxGroups ticks.
type Stagger struct {
	Iterator  int
	MaxGroups int
}

// NewStagger starts a cycle of maxGroups ticks at group 0.
func NewStagger(maxGroups int) Stagger {
	if maxGroups < 1 {
		maxGroups = 1
	}
	return Stagger{MaxGroups: maxGroups}
}

// NextIterator returns the group after it in a cycle of maxGroups.
func NextIterator(it, maxGroups int) int {
	if maxGroups < 1 {
		return 0
	}
	it++
	if it >= maxGroups {
		return 0
	}
	return it
}

// Active reports whether group searches on this tick.
func (s Stagger) Active(group int) bool {
	return group == s.Iterator
}

// Next returns the stagger for the following tick. Advance only after every
// agent has finished the current tick.
func (s Stagger) Next() Stagger {
	s.Iterator = NextIterator(s.Iterator, s.MaxGroups)
	return s
}

// GroupFor assigns spawn index i to its update group.
func GroupFor(i, maxGroups int) int {
	if maxGroups < 1 {
		return 0
	}
	return i % maxGroups
}
