package mapping

import (
	"strings"

	"github.com/formbridge/formbridge/internal/models"
)

// AutoMap proposes SheetColumn rules for questions whose label
// case-insensitively equals a column name of some source. It never mutates
// the rule store and never overwrites an existing rule; the caller merges the
// proposals. Running it twice yields the same outcome.
func AutoMap(sources []models.Source, questions []models.Question, existing map[string]models.Rule) map[string]models.Rule {
	// Case-insensitive column index across all sources, first-seen wins:
	// ties break on source registration order, then column order.
	type columnRef struct {
		sourceID string
		column   string
	}
	index := make(map[string]columnRef)
	for _, src := range sources {
		for _, col := range src.Columns {
			key := normalizeLabel(col)
			if key == "" {
				continue
			}
			if _, seen := index[key]; !seen {
				index[key] = columnRef{sourceID: src.ID, column: col}
			}
		}
	}

	proposals := make(map[string]models.Rule)
	for _, q := range questions {
		if !q.Kind.Mappable() {
			continue
		}
		if _, mapped := existing[q.QID]; mapped {
			continue
		}
		ref, found := index[normalizeLabel(q.Label)]
		if !found {
			continue
		}
		proposals[q.QID] = models.SheetColumnRule{SourceID: ref.sourceID, Column: ref.column}
	}
	return proposals
}

func normalizeLabel(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
