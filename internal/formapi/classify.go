package formapi

import (
	"strings"

	"github.com/formbridge/formbridge/internal/models"
)

// fieldKinds is the classification table from raw remote field types to
// question kinds. Classification happens exactly once, at load time;
// downstream code only ever inspects the resulting QuestionKind.
var fieldKinds = map[string]models.QuestionKind{
	"control_textbox":  models.KindFreeText,
	"control_textarea": models.KindFreeText,
	"control_email":    models.KindFreeText,
	"control_phone":    models.KindFreeText,
	"control_number":   models.KindFreeText,
	"control_datetime": models.KindFreeText,
	"control_address":  models.KindFreeText,
	"control_fullname": models.KindFreeText,

	"control_dropdown": models.KindSingleChoice,
	"control_radio":    models.KindSingleChoice,

	"control_checkbox": models.KindMultiChoice,
}

// presentationTypes are layout-only field types that are never valid mapping
// targets and are excluded from the question catalog entirely.
var presentationTypes = map[string]bool{
	"control_head":      true,
	"control_text":      true,
	"control_image":     true,
	"control_button":    true,
	"control_pagebreak": true,
	"control_divider":   true,
	"control_collapse":  true,
	"control_widget":    true,
	"control_captcha":   true,
}

// ClassifyFieldType maps a raw remote field type to a QuestionKind. The
// second return value is false for presentation-only types, which must be
// dropped rather than classified. Unrecognized input types are kept as
// non-mappable so they still appear in the catalog.
func ClassifyFieldType(rawType string) (models.QuestionKind, bool) {
	normalized := strings.ToLower(strings.TrimSpace(rawType))
	if presentationTypes[normalized] {
		return models.KindNonMappable, false
	}
	if kind, ok := fieldKinds[normalized]; ok {
		return kind, true
	}
	return models.KindNonMappable, true
}
