package models

// Source represents one registered external tabular dataset. Columns and Rows
// are replaced wholesale on every (re)load; every row carries exactly the keys
// in Columns, with "" for cells absent in the raw input.
type Source struct {
	ID        string              `json:"source_id"`
	Name      string              `json:"source_name"`
	FetchURL  string              `json:"fetch_url"`
	KeyColumn string              `json:"key_column"`
	Columns   []string            `json:"columns"`
	Rows      []map[string]string `json:"rows"`
}

// QuestionKind classifies how a question accepts values.
type QuestionKind string

const (
	KindFreeText     QuestionKind = "free_text"
	KindSingleChoice QuestionKind = "single_choice"
	KindMultiChoice  QuestionKind = "multi_choice"
	KindNonMappable  QuestionKind = "non_mappable"
)

// Mappable reports whether a question of this kind can be a mapping target.
func (k QuestionKind) Mappable() bool {
	return k != KindNonMappable
}

// Question represents one field on the destination form. The catalog is
// replaced wholesale on each load; Choices is empty unless Kind is a choice
// kind.
type Question struct {
	QID      string       `json:"qid"`
	Label    string       `json:"label"`
	Kind     QuestionKind `json:"kind"`
	Choices  []string     `json:"choices,omitempty"`
	Required bool         `json:"required"`
}

// Selection maps a source ID to its currently chosen row. At most one row per
// source; choosing a new row replaces the prior choice.
type Selection map[string]map[string]string
