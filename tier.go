package tiergate

import "fmt"

// Tier is the complexity bucket assigned to a query before model selection.
type Tier int

const (
	TierSimple Tier = iota
	TierMedium
	TierAdvanced
)

// Tiers lists all tiers in ascending complexity order.
var Tiers = []Tier{TierSimple, TierMedium, TierAdvanced}

func (t Tier) String() string {
	switch t {
	case TierSimple:
		return "simple"
	case TierMedium:
		return "medium"
	case TierAdvanced:
		return "advanced"
	default:
		return "unknown"
	}
}

// Label returns the single-letter classification label for a tier.
func (t Tier) Label() string {
	switch t {
	case TierSimple:
		return "S"
	case TierMedium:
		return "M"
	case TierAdvanced:
		return "A"
	default:
		return "?"
	}
}

// ParseTier maps a classifier label onto the three-value tier space.
// It accepts the short and long label spellings used by trained
// classifiers. An unmappable label is a fatal classification error.
func ParseTier(label string) (Tier, error) {
	switch label {
	case "S", "Simple", "simple":
		return TierSimple, nil
	case "M", "Medium", "medium", "Moderate", "moderate":
		return TierMedium, nil
	case "A", "Advanced", "advanced", "Complex", "complex":
		return TierAdvanced, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownLabel, label)
	}
}

// UnmarshalYAML lets configs name tiers by their string form.
func (t *Tier) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	switch s {
	case "simple", "tier1":
		*t = TierSimple
	case "medium", "tier2":
		*t = TierMedium
	case "advanced", "tier3":
		*t = TierAdvanced
	default:
		return fmt.Errorf("tiergate: config: invalid tier %q", s)
	}
	return nil
}
