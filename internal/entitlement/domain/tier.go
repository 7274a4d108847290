// Package domain defines subscription tiers and the per-user entitlement state
// from which the effective tier of a caller is derived.
package domain

// Tier is an ordered privilege level. The zero value is not a valid tier.
type Tier string

const (
	// TierObserver is the floor tier every authenticated user is entitled to.
	TierObserver Tier = "observer"

	// TierNavigator is the first paid tier.
	TierNavigator Tier = "navigator"

	// TierOperator is the second paid tier.
	TierOperator Tier = "operator"

	// TierSovereign is the highest tier.
	TierSovereign Tier = "sovereign"
)

// tierRanks orders tiers by ascending privilege.
var tierRanks = map[Tier]int{
	TierObserver:  0,
	TierNavigator: 1,
	TierOperator:  2,
	TierSovereign: 3,
}

// Tiers lists every valid tier in ascending order.
func Tiers() []Tier {
	return []Tier{TierObserver, TierNavigator, TierOperator, TierSovereign}
}

// ParseTier converts a string into a Tier.
func ParseTier(s string) (Tier, error) {
	t := Tier(s)
	if !t.Valid() {
		return "", ErrInvalidTier
	}
	return t, nil
}

// Valid reports whether t is a known tier.
func (t Tier) Valid() bool {
	_, ok := tierRanks[t]
	return ok
}

// Rank returns the privilege rank of t. Unknown tiers rank as observer.
func (t Tier) Rank() int {
	return tierRanks[t]
}

// Normalize returns t, or TierObserver when t is unknown.
func (t Tier) Normalize() Tier {
	if !t.Valid() {
		return TierObserver
	}
	return t
}

// AtLeast reports whether t grants at least the privileges of other.
func (t Tier) AtLeast(other Tier) bool {
	return t.Normalize().Rank() >= other.Normalize().Rank()
}

// MaxTier returns the more privileged of a and b. Unknown values count as observer.
func MaxTier(a, b Tier) Tier {
	a, b = a.Normalize(), b.Normalize()
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}

func (t Tier) String() string {
	return string(t)
}
