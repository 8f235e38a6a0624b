package systems

import "github.com/pthm-cable/bubblecomplex/components"

// Outcome is the result of a priority comparison.
type Outcome uint8

const (
	SelfAbsorbs Outcome = iota
	OtherAbsorbs
)

// String returns the outcome name.
func (o Outcome) String() string {
	if o == SelfAbsorbs {
		return "SelfAbsorbs"
	}
	return "OtherAbsorbs"
}

// Resolve decides which of two overlapping bubbles absorbs the other.
// Rules are checked in order: negatives win, then players beat friendlies,
// then the larger individual radius wins with ties going to self.
// Call it once per unordered pair; ties and negative pairs are not symmetric.
func Resolve(self, other *components.Bubble) Outcome {
	if other.Category == components.CategoryNegative {
		return OtherAbsorbs
	}
	if self.Category == components.CategoryNegative {
		return SelfAbsorbs
	}
	if other.Category == components.CategoryPlayer && self.Category == components.CategoryFriendly {
		return OtherAbsorbs
	}
	if self.Category == components.CategoryPlayer && other.Category == components.CategoryFriendly {
		return SelfAbsorbs
	}
	if self.IndividualRadius >= other.IndividualRadius {
		return SelfAbsorbs
	}
	return OtherAbsorbs
}
