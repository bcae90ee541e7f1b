package mapping

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/formbridge/formbridge/internal/models"
)

func colorsQuestion(required bool) models.Question {
	return models.Question{
		QID:      "q1",
		Label:    "Colors",
		Kind:     models.KindMultiChoice,
		Choices:  []string{"Red", "Blue", "Green"},
		Required: required,
	}
}

func TestResolveSheetColumnMultiChoice(t *testing.T) {
	questions := []models.Question{colorsQuestion(false)}
	rules := map[string]models.Rule{
		"q1": models.SheetColumnRule{SourceID: "s1", Column: "Colors"},
	}
	selection := models.Selection{
		"s1": {"Colors": "red; Purple ,Blue"},
	}

	res := Resolve(questions, rules, selection)
	assert.Equal(t, "Red, Blue", res.Values["q1"].String())
	assert.Empty(t, res.MissingRequired)
}

func TestResolveMultiChoiceNoDedupe(t *testing.T) {
	questions := []models.Question{colorsQuestion(false)}
	rules := map[string]models.Rule{
		"q1": models.SheetColumnRule{SourceID: "s1", Column: "Colors"},
	}
	selection := models.Selection{
		"s1": {"Colors": "red,Red"},
	}

	res := Resolve(questions, rules, selection)
	assert.Equal(t, "Red, Red", res.Values["q1"].String())
}

func TestResolveMultiChoiceNoMatchesAbsent(t *testing.T) {
	questions := []models.Question{colorsQuestion(true)}
	rules := map[string]models.Rule{
		"q1": models.SheetColumnRule{SourceID: "s1", Column: "Colors"},
	}
	selection := models.Selection{
		"s1": {"Colors": "Purple; Orange"},
	}

	res := Resolve(questions, rules, selection)
	_, present := res.Values["q1"]
	assert.False(t, present)
	assert.Equal(t, []string{"q1"}, res.MissingRequired)
}

func TestResolveSingleChoiceCanonicalizes(t *testing.T) {
	q := models.Question{
		QID:     "q2",
		Label:   "Size",
		Kind:    models.KindSingleChoice,
		Choices: []string{"A", "B"},
	}
	rules := map[string]models.Rule{
		"q2": models.SheetColumnRule{SourceID: "s1", Column: "Size"},
	}

	res := Resolve([]models.Question{q}, rules, models.Selection{"s1": {"Size": "  b "}})
	assert.Equal(t, "B", res.Values["q2"].String())

	res = Resolve([]models.Question{q}, rules, models.Selection{"s1": {"Size": "C"}})
	_, present := res.Values["q2"]
	assert.False(t, present)
}

func TestResolveFixedSingleAgainstChoices(t *testing.T) {
	q := models.Question{
		QID:     "q2",
		Label:   "Size",
		Kind:    models.KindSingleChoice,
		Choices: []string{"A", "B"},
	}

	res := Resolve([]models.Question{q}, map[string]models.Rule{"q2": models.FixedSingleRule{Value: "b"}}, nil)
	assert.Equal(t, "B", res.Values["q2"].String())

	res = Resolve([]models.Question{q}, map[string]models.Rule{"q2": models.FixedSingleRule{Value: "C"}}, nil)
	_, present := res.Values["q2"]
	assert.False(t, present)
}

func TestResolveFixedSingleFreeTextPassthrough(t *testing.T) {
	q := models.Question{QID: "q3", Label: "Notes", Kind: models.KindFreeText}

	res := Resolve([]models.Question{q}, map[string]models.Rule{"q3": models.FixedSingleRule{Value: "any value"}}, nil)
	assert.Equal(t, "any value", res.Values["q3"].String())
}

func TestResolveFixedMulti(t *testing.T) {
	questions := []models.Question{colorsQuestion(false)}

	// Case-sensitive exact membership: "red" is filtered out.
	rules := map[string]models.Rule{
		"q1": models.FixedMultiRule{Values: []string{"Red", "red", "Green"}},
	}
	res := Resolve(questions, rules, nil)
	assert.Equal(t, "Red, Green", res.Values["q1"].String())

	// Nothing kept means no value.
	rules["q1"] = models.FixedMultiRule{Values: []string{"purple"}}
	res = Resolve(questions, rules, nil)
	_, present := res.Values["q1"]
	assert.False(t, present)

	// A fixed-multi rule on a single-choice question yields nothing.
	single := models.Question{QID: "q1", Kind: models.KindSingleChoice, Choices: []string{"Red"}}
	res = Resolve([]models.Question{single}, map[string]models.Rule{"q1": models.FixedMultiRule{Values: []string{"Red"}}}, nil)
	_, present = res.Values["q1"]
	assert.False(t, present)
}

func TestResolveSheetColumnTransforms(t *testing.T) {
	q := models.Question{QID: "q1", Label: "Name", Kind: models.KindFreeText}
	selection := models.Selection{"s1": {"Name": "  ADA lovelace  "}}

	tests := []struct {
		transform string
		want      string
	}{
		{"", "  ADA lovelace  "},
		{models.TransformNone, "  ADA lovelace  "},
		{models.TransformTrim, "ADA lovelace"},
		{models.TransformLowercase, "  ada lovelace  "},
		{models.TransformUppercase, "  ADA LOVELACE  "},
		{models.TransformTitlecase, "  Ada Lovelace  "},
	}

	for _, tt := range tests {
		t.Run(tt.transform, func(t *testing.T) {
			rules := map[string]models.Rule{
				"q1": models.SheetColumnRule{SourceID: "s1", Column: "Name", Transform: tt.transform},
			}
			res := Resolve([]models.Question{q}, rules, selection)
			assert.Equal(t, tt.want, res.Values["q1"].String())
		})
	}
}

func TestResolveTransformBeforeKindNormalization(t *testing.T) {
	questions := []models.Question{colorsQuestion(false)}
	rules := map[string]models.Rule{
		"q1": models.SheetColumnRule{SourceID: "s1", Column: "Colors", Transform: models.TransformTitlecase},
	}
	selection := models.Selection{
		"s1": {"Colors": "RED; blue"},
	}

	res := Resolve(questions, rules, selection)
	assert.Equal(t, "Red, Blue", res.Values["q1"].String())
}

func TestTitlecaseWordBoundaries(t *testing.T) {
	assert.Equal(t, "Jean-Luc O'Brien", titlecase("jean-luc o'brien"))
	assert.Equal(t, "A1b", titlecase("A1B"))
	assert.Equal(t, "", titlecase(""))
}

func TestResolveFreeTextVerbatim(t *testing.T) {
	q := models.Question{QID: "q3", Label: "Notes", Kind: models.KindFreeText}

	res := Resolve([]models.Question{q}, map[string]models.Rule{"q3": models.FreeTextRule{Value: "  keep spaces  "}}, nil)
	assert.Equal(t, "  keep spaces  ", res.Values["q3"].String())
}

func TestResolveDeliberateClearIsPresent(t *testing.T) {
	q := models.Question{QID: "q3", Label: "Notes", Kind: models.KindFreeText}

	res := Resolve([]models.Question{q}, map[string]models.Rule{"q3": models.FreeTextRule{Value: ""}}, nil)
	value, present := res.Values["q3"]
	assert.True(t, present)
	assert.Equal(t, "", value.String())
}

func TestResolveMissingSelection(t *testing.T) {
	q := models.Question{QID: "q4", Label: "Email", Kind: models.KindFreeText, Required: true}
	rules := map[string]models.Rule{
		"q4": models.SheetColumnRule{SourceID: "s1", Column: "Email"},
	}

	// No selection at all.
	res := Resolve([]models.Question{q}, rules, models.Selection{})
	_, present := res.Values["q4"]
	assert.False(t, present)
	assert.Equal(t, []string{"q4"}, res.MissingRequired)

	// Stale source reference behaves the same, never errors.
	res = Resolve([]models.Question{q}, rules, models.Selection{"gone": {"Email": "x"}})
	_, present = res.Values["q4"]
	assert.False(t, present)

	// Column vanished after a reload.
	res = Resolve([]models.Question{q}, rules, models.Selection{"s1": {"Name": "Ada"}})
	_, present = res.Values["q4"]
	assert.False(t, present)
}

func TestResolveRequiredBlankValue(t *testing.T) {
	q := models.Question{QID: "q5", Label: "Name", Kind: models.KindFreeText, Required: true}
	rules := map[string]models.Rule{
		"q5": models.SheetColumnRule{SourceID: "s1", Column: "Name"},
	}

	res := Resolve([]models.Question{q}, rules, models.Selection{"s1": {"Name": "   "}})
	assert.Equal(t, []string{"q5"}, res.MissingRequired)
}

func TestResolveUnmappedRequired(t *testing.T) {
	questions := []models.Question{
		{QID: "q1", Label: "Name", Kind: models.KindFreeText, Required: true},
		{QID: "q2", Label: "Email", Kind: models.KindFreeText, Required: true},
		{QID: "q3", Label: "Notes", Kind: models.KindFreeText},
	}

	res := Resolve(questions, map[string]models.Rule{}, nil)
	assert.Empty(t, res.Values)
	assert.Equal(t, []string{"q1", "q2"}, res.MissingRequired)
}

func TestResolveIsPure(t *testing.T) {
	questions := []models.Question{colorsQuestion(true)}
	rules := map[string]models.Rule{
		"q1": models.SheetColumnRule{SourceID: "s1", Column: "Colors"},
	}
	selection := models.Selection{"s1": {"Colors": "blue"}}

	first := Resolve(questions, rules, selection)
	second := Resolve(questions, rules, selection)
	assert.Equal(t, first, second)
	assert.Equal(t, "blue", selection["s1"]["Colors"])
}

func TestResolveEndToEndScenario(t *testing.T) {
	questions := []models.Question{
		{QID: "1", Label: "Full Name", Kind: models.KindFreeText, Required: true},
		{QID: "2", Label: "Email", Kind: models.KindFreeText, Required: true},
		{QID: "3", Label: "Department", Kind: models.KindSingleChoice, Choices: []string{"Sales", "Engineering"}},
		{QID: "4", Label: "Interests", Kind: models.KindMultiChoice, Choices: []string{"Go", "SQL", "CSV"}},
		{QID: "5", Label: "Referral", Kind: models.KindFreeText},
	}
	rules := map[string]models.Rule{
		"1": models.SheetColumnRule{SourceID: "contacts", Column: "Name"},
		"2": models.SheetColumnRule{SourceID: "contacts", Column: "Email"},
		"3": models.SheetColumnRule{SourceID: "contacts", Column: "Dept"},
		"4": models.SheetColumnRule{SourceID: "contacts", Column: "Topics"},
		"5": models.FreeTextRule{Value: "spreadsheet import"},
	}
	selection := models.Selection{
		"contacts": {
			"Name":   "Ada Lovelace",
			"Email":  "ada@example.com",
			"Dept":   "engineering",
			"Topics": "go; sql, basket weaving",
		},
	}

	res := Resolve(questions, rules, selection)
	assert.Empty(t, res.MissingRequired)
	assert.Equal(t, "Ada Lovelace", res.Values["1"].String())
	assert.Equal(t, "ada@example.com", res.Values["2"].String())
	assert.Equal(t, "Engineering", res.Values["3"].String())
	assert.Equal(t, "Go, SQL", res.Values["4"].String())
	assert.Equal(t, "spreadsheet import", res.Values["5"].String())
}
