package models

import (
	"encoding/json"
	"fmt"
)

// Rule is the configured strategy for deriving a question's value. It is a
// closed sum: SheetColumnRule, FixedSingleRule, FixedMultiRule and
// FreeTextRule are the only variants. Absence of a rule means "no mapping",
// which is distinct from FreeTextRule{Value: ""}.
type Rule interface {
	isRule()
}

// Transforms applied to a sheet-sourced cell before kind normalization. An
// empty transform behaves as TransformNone.
const (
	TransformNone      = "none"
	TransformTrim      = "trim"
	TransformLowercase = "lowercase"
	TransformUppercase = "uppercase"
	TransformTitlecase = "titlecase"
)

// ValidTransform reports whether t names a known transform.
func ValidTransform(t string) bool {
	switch t {
	case "", TransformNone, TransformTrim, TransformLowercase, TransformUppercase, TransformTitlecase:
		return true
	default:
		return false
	}
}

// SheetColumnRule takes the value from a column of the selected row of a
// source, optionally passing the raw cell through a transform first. The
// column may no longer exist after a reload; that is resolved at read time,
// not at write time.
type SheetColumnRule struct {
	SourceID  string `json:"source_id"`
	Column    string `json:"column"`
	Transform string `json:"transform,omitempty"`
}

// FixedSingleRule supplies one fixed value, validated against the question's
// choices for choice kinds at resolution time.
type FixedSingleRule struct {
	Value string `json:"value"`
}

// FixedMultiRule supplies a fixed set of values; only meaningful for
// multi-choice questions.
type FixedMultiRule struct {
	Values []string `json:"values"`
}

// FreeTextRule supplies a literal value for any kind, never validated.
type FreeTextRule struct {
	Value string `json:"value"`
}

func (SheetColumnRule) isRule() {}
func (FixedSingleRule) isRule() {}
func (FixedMultiRule) isRule()  {}
func (FreeTextRule) isRule()    {}

// Wire tags for the persisted/REST rule envelope.
const (
	ruleTypeSheetColumn = "sheet_column"
	ruleTypeFixedSingle = "fixed_single"
	ruleTypeFixedMulti  = "fixed_multi"
	ruleTypeFreeText    = "free_text"
)

// RuleEnvelope is the tagged JSON form of a Rule, used both in the key-value
// store and on the REST surface.
type RuleEnvelope struct {
	Type      string   `json:"type"`
	SourceID  string   `json:"source_id,omitempty"`
	Column    string   `json:"column,omitempty"`
	Transform string   `json:"transform,omitempty"`
	Value     string   `json:"value,omitempty"`
	Values    []string `json:"values,omitempty"`
}

// EncodeRule converts a Rule into its tagged wire form.
func EncodeRule(rule Rule) RuleEnvelope {
	switch r := rule.(type) {
	case SheetColumnRule:
		return RuleEnvelope{Type: ruleTypeSheetColumn, SourceID: r.SourceID, Column: r.Column, Transform: r.Transform}
	case FixedSingleRule:
		return RuleEnvelope{Type: ruleTypeFixedSingle, Value: r.Value}
	case FixedMultiRule:
		return RuleEnvelope{Type: ruleTypeFixedMulti, Values: r.Values}
	case FreeTextRule:
		return RuleEnvelope{Type: ruleTypeFreeText, Value: r.Value}
	default:
		return RuleEnvelope{}
	}
}

// DecodeRule converts a tagged envelope back into a Rule. Unknown or empty
// types return an error so that callers can drop the entry instead of
// persisting a variant the resolver cannot handle.
func DecodeRule(env RuleEnvelope) (Rule, error) {
	switch env.Type {
	case ruleTypeSheetColumn:
		if env.SourceID == "" || env.Column == "" {
			return nil, fmt.Errorf("sheet_column rule requires source_id and column")
		}
		if !ValidTransform(env.Transform) {
			return nil, fmt.Errorf("unknown transform %q", env.Transform)
		}
		return SheetColumnRule{SourceID: env.SourceID, Column: env.Column, Transform: env.Transform}, nil
	case ruleTypeFixedSingle:
		return FixedSingleRule{Value: env.Value}, nil
	case ruleTypeFixedMulti:
		return FixedMultiRule{Values: env.Values}, nil
	case ruleTypeFreeText:
		return FreeTextRule{Value: env.Value}, nil
	default:
		return nil, fmt.Errorf("unknown rule type %q", env.Type)
	}
}

// MarshalRules encodes a qid-to-rule map into its persisted JSON form.
func MarshalRules(rules map[string]Rule) ([]byte, error) {
	envelopes := make(map[string]RuleEnvelope, len(rules))
	for qid, rule := range rules {
		envelopes[qid] = EncodeRule(rule)
	}
	return json.Marshal(envelopes)
}

// UnmarshalRules decodes the persisted JSON form. Entries with an empty qid or
// an unknown variant are dropped; the names of dropped entries are returned so
// the caller can log them. Structurally malformed JSON yields an error and an
// empty map.
func UnmarshalRules(data []byte) (map[string]Rule, []string, error) {
	var envelopes map[string]RuleEnvelope
	if err := json.Unmarshal(data, &envelopes); err != nil {
		return map[string]Rule{}, nil, fmt.Errorf("failed to decode rules: %w", err)
	}

	rules := make(map[string]Rule, len(envelopes))
	var dropped []string
	for qid, env := range envelopes {
		if qid == "" {
			dropped = append(dropped, "(empty qid)")
			continue
		}
		rule, err := DecodeRule(env)
		if err != nil {
			dropped = append(dropped, qid)
			continue
		}
		rules[qid] = rule
	}
	return rules, dropped, nil
}
