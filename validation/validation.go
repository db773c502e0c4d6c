package validation

import (
	"errors"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"
)

type Violations map[string]string

func (v Violations) Empty() bool { return len(v) == 0 }

// Basic validators
func Required(field, value string, v Violations) {
	if strings.TrimSpace(value) == "" {
		v[field] = "required"
	}
}

func RequiredID(field string, id uint, v Violations) {
	if id == 0 {
		v[field] = "required"
	}
}

func PositiveInt(field string, val int, v Violations) {
	if val <= 0 {
		v[field] = "must_be_positive"
	}
}

func NonEmpty[T any](field string, items []T, v Violations) {
	if len(items) == 0 {
		v[field] = "required"
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Struct runs the `validate` tags of s and folds failures into v, keyed by
// the namespaced field ("Items[0].ProductID").
func Struct(s any, v Violations) {
	err := validate.Struct(s)
	if err == nil {
		return
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		v["_"] = err.Error()
		return
	}
	for _, fe := range verrs {
		key := fe.Namespace()
		if i := strings.IndexByte(key, '.'); i >= 0 {
			key = key[i+1:]
		}
		v[key] = violationCode(fe.Tag())
	}
}

func violationCode(tag string) string {
	switch tag {
	case "required":
		return "required"
	case "gt", "gte", "min":
		return "must_be_positive"
	default:
		return "invalid"
	}
}

// Message renders violations as one line, e.g. for a result error.
func (v Violations) Message() string {
	parts := make([]string, 0, len(v))
	for k, code := range v {
		parts = append(parts, k+": "+code)
	}
	slices.Sort(parts)
	return strings.Join(parts, ", ")
}
