package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRule(t *testing.T) {
	rules := []Rule{
		SheetColumnRule{SourceID: "s1", Column: "Email"},
		FixedSingleRule{Value: "B"},
		FixedMultiRule{Values: []string{"Red", "Blue"}},
		FreeTextRule{Value: "literal"},
	}

	for _, rule := range rules {
		decoded, err := DecodeRule(EncodeRule(rule))
		require.NoError(t, err)
		assert.Equal(t, rule, decoded)
	}
}

func TestDecodeRuleRejectsUnknownType(t *testing.T) {
	_, err := DecodeRule(RuleEnvelope{Type: "teleport"})
	assert.Error(t, err)

	_, err = DecodeRule(RuleEnvelope{})
	assert.Error(t, err)
}

func TestSheetColumnTransformCodec(t *testing.T) {
	rule := SheetColumnRule{SourceID: "s1", Column: "Name", Transform: TransformTitlecase}

	env := EncodeRule(rule)
	assert.Equal(t, TransformTitlecase, env.Transform)

	decoded, err := DecodeRule(env)
	require.NoError(t, err)
	assert.Equal(t, rule, decoded)

	_, err = DecodeRule(RuleEnvelope{Type: "sheet_column", SourceID: "s1", Column: "Name", Transform: "rot13"})
	assert.Error(t, err)
}

func TestValidTransform(t *testing.T) {
	for _, t2 := range []string{"", TransformNone, TransformTrim, TransformLowercase, TransformUppercase, TransformTitlecase} {
		assert.True(t, ValidTransform(t2))
	}
	assert.False(t, ValidTransform("reverse"))
}

func TestDecodeRuleRejectsIncompleteSheetColumn(t *testing.T) {
	_, err := DecodeRule(RuleEnvelope{Type: "sheet_column", SourceID: "s1"})
	assert.Error(t, err)

	_, err = DecodeRule(RuleEnvelope{Type: "sheet_column", Column: "Email"})
	assert.Error(t, err)
}

func TestUnmarshalRulesDropsBadEntries(t *testing.T) {
	data := []byte(`{
		"q1": {"type": "free_text", "value": "ok"},
		"q2": {"type": "unknown_kind"},
		"": {"type": "free_text", "value": "orphan"}
	}`)

	rules, dropped, err := UnmarshalRules(data)
	require.NoError(t, err)
	assert.Len(t, rules, 1)
	assert.Equal(t, FreeTextRule{Value: "ok"}, rules["q1"])
	assert.Len(t, dropped, 2)
}

func TestUnmarshalRulesMalformedJSON(t *testing.T) {
	rules, _, err := UnmarshalRules([]byte("not json"))
	assert.Error(t, err)
	assert.Empty(t, rules)
}

func TestMarshalRulesRoundTrip(t *testing.T) {
	in := map[string]Rule{
		"q1": SheetColumnRule{SourceID: "s1", Column: "Name"},
		"q2": FixedMultiRule{Values: []string{"A"}},
	}

	data, err := MarshalRules(in)
	require.NoError(t, err)

	out, dropped, err := UnmarshalRules(data)
	require.NoError(t, err)
	assert.Empty(t, dropped)
	assert.Equal(t, in, out)
}
