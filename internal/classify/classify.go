// Package classify maps page text to a payer document type using a two-tier
// policy: a literal keyword hit wins immediately, otherwise the highest fuzzy
// partial-ratio score at or above the threshold wins.
package classify

import (
	"log/slog"
	"strings"

	"github.com/joseph-ayodele/eps-docsorter/constants"
	"github.com/joseph-ayodele/eps-docsorter/internal/textnorm"
)

// DefaultThreshold is the minimum fuzzy score (inclusive) a keyword needs to count.
const DefaultThreshold = 80

// Rule binds a document type to the keywords that identify it.
type Rule struct {
	Type     constants.DocumentType
	Keywords []string
}

// Rules is evaluated in slice order; the order is significant for exact hits and ties.
type Rules []Rule

// Types returns the document types in rule order.
func (r Rules) Types() []constants.DocumentType {
	out := make([]constants.DocumentType, 0, len(r))
	for _, rule := range r {
		out = append(out, rule.Type)
	}
	return out
}

// Match describes why a type was chosen.
type Match struct {
	Type    constants.DocumentType
	Keyword string
	Score   float64
	Exact   bool
}

// Classify returns the document type for text, or false when nothing matched.
func Classify(text string, rules Rules, threshold float64) (Match, bool) {
	normalized := textnorm.Fold(textnorm.Clean(text))
	if strings.TrimSpace(normalized) == "" {
		return Match{}, false
	}

	var best Match
	found := false
	for _, rule := range rules {
		for _, kw := range rule.Keywords {
			nk := textnorm.Fold(kw)
			if strings.TrimSpace(nk) == "" {
				continue
			}
			if strings.Contains(normalized, nk) {
				return Match{Type: rule.Type, Keyword: kw, Score: 100, Exact: true}, true
			}
			score := PartialRatio(normalized, nk)
			if score >= threshold && score > best.Score {
				best = Match{Type: rule.Type, Keyword: kw, Score: score}
				found = true
			}
		}
	}
	return best, found
}

// Classifier carries the threshold and logs every decision.
type Classifier struct {
	threshold float64
	logger    *slog.Logger
}

func NewClassifier(threshold float64, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Classifier{threshold: threshold, logger: logger}
}

// Threshold returns the configured fuzzy threshold.
func (c *Classifier) Threshold() float64 { return c.threshold }

// Classify is Classify with the configured threshold.
func (c *Classifier) Classify(path, text string, rules Rules) (Match, bool) {
	m, ok := Classify(text, rules, c.threshold)
	if !ok {
		c.logger.Debug("no document type matched", "path", path, "text_bytes", len(text))
		return m, false
	}
	c.logger.Debug("document type matched",
		"path", path,
		"type", m.Type.String(),
		"keyword", m.Keyword,
		"score", m.Score,
		"exact", m.Exact,
	)
	return m, true
}
