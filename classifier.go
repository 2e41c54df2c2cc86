package tiergate

import "strings"

// Classifier assigns a complexity tier to query text.
type Classifier interface {
	Classify(text string) (Tier, error)
}

// Keyword lists for the heuristic classifier. Matching is case-insensitive
// substring containment, so "algorithms" counts for "algorithm".
var (
	complexKeywords = []string{
		"quantum", "algorithm", "complex", "advanced", "sophisticated",
		"multi-step", "comprehensive", "intricate", "theoretical", "develop",
		"design", "architecture", "implement", "optimize", "analyze",
	}
	simpleKeywords = []string{
		"what", "who", "when", "where", "define", "explain", "simple",
		"is", "are", "capital", "name", "basic",
	}
	codeKeywords = []string{
		"code", "function", "program", "script", "application", "api",
	}
)

// HeuristicClassifier is the deterministic keyword classifier. Rules are
// evaluated in order, first match wins:
//
//  1. Advanced if complex matches >= 2, word count > 50, or code matches >= 2.
//  2. Simple if simple matches >= 1, word count < 20, and no complex match.
//  3. Medium otherwise.
type HeuristicClassifier struct{}

var _ Classifier = HeuristicClassifier{}

func (HeuristicClassifier) Classify(text string) (Tier, error) {
	if strings.TrimSpace(text) == "" {
		return 0, ErrEmptyQuery
	}

	lower := strings.ToLower(text)
	wordCount := len(strings.Fields(text))

	complexScore := countMatches(lower, complexKeywords)
	simpleScore := countMatches(lower, simpleKeywords)
	codeScore := countMatches(lower, codeKeywords)

	switch {
	case complexScore >= 2 || wordCount > 50 || codeScore >= 2:
		return TierAdvanced, nil
	case simpleScore >= 1 && wordCount < 20 && complexScore == 0:
		return TierSimple, nil
	default:
		return TierMedium, nil
	}
}

func countMatches(lower string, keywords []string) int {
	n := 0
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			n++
		}
	}
	return n
}

// LabelClassifier adapts an external trained classifier that returns string
// labels. Labels are mapped onto the three-value tier space via ParseTier;
// an unmappable label is a fatal classification error.
type LabelClassifier struct {
	Predict func(text string) (string, error)
}

var _ Classifier = LabelClassifier{}

func (c LabelClassifier) Classify(text string) (Tier, error) {
	if strings.TrimSpace(text) == "" {
		return 0, ErrEmptyQuery
	}
	label, err := c.Predict(text)
	if err != nil {
		return 0, err
	}
	return ParseTier(label)
}
