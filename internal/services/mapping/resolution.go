package mapping

import (
	"strings"
	"unicode"

	"github.com/formbridge/formbridge/internal/models"
)

// multiValueSeparators are the separators accepted in raw multi-choice cells.
const multiValueSeparators = ";,|"

// joinSeparator is the canonical join for multi-choice values. No dedupe is
// performed: a raw "red,Red" against choices [Red] resolves to "Red, Red".
const joinSeparator = ", "

// ResolvedValue is the value produced for one question, kept pre-join so
// delivery adapters can inspect the parts. Single-valued kinds carry exactly
// one part.
type ResolvedValue struct {
	Parts []string `json:"parts"`
}

// String joins the parts into the final scalar value.
func (v ResolvedValue) String() string {
	return strings.Join(v.Parts, joinSeparator)
}

// Resolution is the outcome of resolving all questions against the current
// rules and selection.
type Resolution struct {
	// Values maps qid to its resolved value. A qid absent from the map has
	// no value; presence with an empty string is a deliberate clear.
	Values map[string]ResolvedValue

	// MissingRequired lists the required questions whose mapping could not
	// be satisfied, in question order.
	MissingRequired []string
}

// Resolve computes a final value per mapped question, normalized per its
// kind, and reports which required mappings are unsatisfied. It is pure:
// no mutation, no I/O, deterministic in question order, and defensive
// against stale references (a rule pointing at a removed source behaves as
// "selection absent", never an error).
func Resolve(questions []models.Question, rules map[string]models.Rule, selection models.Selection) Resolution {
	result := Resolution{Values: make(map[string]ResolvedValue, len(rules))}

	for _, q := range questions {
		value, present := resolveQuestion(q, rules[q.QID], selection)
		if present {
			result.Values[q.QID] = value
		}
		if q.Required && (!present || isBlank(value)) {
			result.MissingRequired = append(result.MissingRequired, q.QID)
		}
	}
	return result
}

// resolveQuestion produces the value for one question, or present=false when
// the rule yields nothing.
func resolveQuestion(q models.Question, rule models.Rule, selection models.Selection) (ResolvedValue, bool) {
	switch r := rule.(type) {
	case nil:
		return ResolvedValue{}, false

	case models.SheetColumnRule:
		row, ok := selection[r.SourceID]
		if !ok {
			return ResolvedValue{}, false
		}
		raw, ok := row[r.Column]
		if !ok {
			return ResolvedValue{}, false
		}
		return normalizeRaw(applyTransform(raw, r.Transform), q)

	case models.FixedSingleRule:
		if q.Kind == models.KindSingleChoice || q.Kind == models.KindMultiChoice {
			canonical, ok := matchChoice(r.Value, q.Choices)
			if !ok {
				return ResolvedValue{}, false
			}
			return ResolvedValue{Parts: []string{canonical}}, true
		}
		return ResolvedValue{Parts: []string{r.Value}}, true

	case models.FixedMultiRule:
		if q.Kind != models.KindMultiChoice {
			return ResolvedValue{}, false
		}
		var kept []string
		for _, v := range r.Values {
			for _, choice := range q.Choices {
				if v == choice {
					kept = append(kept, v)
					break
				}
			}
		}
		if len(kept) == 0 {
			return ResolvedValue{}, false
		}
		return ResolvedValue{Parts: kept}, true

	case models.FreeTextRule:
		return ResolvedValue{Parts: []string{r.Value}}, true

	default:
		// Unknown variant: treat as no mapping.
		return ResolvedValue{}, false
	}
}

// applyTransform rewrites a raw sheet cell before kind normalization. Unknown
// transforms pass the value through untouched.
func applyTransform(raw, transform string) string {
	switch transform {
	case models.TransformTrim:
		return strings.TrimSpace(raw)
	case models.TransformLowercase:
		return strings.ToLower(raw)
	case models.TransformUppercase:
		return strings.ToUpper(raw)
	case models.TransformTitlecase:
		return titlecase(raw)
	default:
		return raw
	}
}

// titlecase lowercases the value and uppercases each word-initial letter.
func titlecase(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	prevWord := false
	for _, r := range raw {
		if unicode.IsLetter(r) && !prevWord {
			b.WriteRune(unicode.ToUpper(r))
		} else {
			b.WriteRune(unicode.ToLower(r))
		}
		prevWord = unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
	}
	return b.String()
}

// normalizeRaw applies the kind-specific normalization to a raw cell value.
func normalizeRaw(raw string, q models.Question) (ResolvedValue, bool) {
	switch q.Kind {
	case models.KindMultiChoice:
		parts := splitMulti(raw)
		var kept []string
		for _, part := range parts {
			if canonical, ok := matchChoice(part, q.Choices); ok {
				kept = append(kept, canonical)
			}
		}
		if len(kept) == 0 {
			return ResolvedValue{}, false
		}
		return ResolvedValue{Parts: kept}, true

	case models.KindSingleChoice:
		canonical, ok := matchChoice(raw, q.Choices)
		if !ok {
			return ResolvedValue{}, false
		}
		return ResolvedValue{Parts: []string{canonical}}, true

	default:
		// Free text and non-mappable kinds take the cell verbatim.
		return ResolvedValue{Parts: []string{raw}}, true
	}
}

// splitMulti tokenizes a raw multi-choice cell: split on any accepted
// separator, trim, drop empties. Order is preserved.
func splitMulti(raw string) []string {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return strings.ContainsRune(multiValueSeparators, r)
	})
	var parts []string
	for _, f := range fields {
		if trimmed := strings.TrimSpace(f); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}

// matchChoice finds the case-insensitive match for value among choices and
// returns the canonical-cased entry.
func matchChoice(value string, choices []string) (string, bool) {
	trimmed := strings.TrimSpace(value)
	for _, choice := range choices {
		if strings.EqualFold(trimmed, choice) {
			return choice, true
		}
	}
	return "", false
}

// isBlank reports whether a resolved value is empty after trimming, which
// does not satisfy a required question.
func isBlank(v ResolvedValue) bool {
	for _, part := range v.Parts {
		if strings.TrimSpace(part) != "" {
			return false
		}
	}
	return true
}
