package adpackage

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var ErrInvalidBrief = errors.New("invalid ad brief")

var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidateBrief checks b before anything is sent to a model.
func ValidateBrief(b Brief) error {
	if err := validate.Struct(b); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidBrief, describe(err))
	}
	if strings.TrimSpace(b.Brand) == "" || strings.TrimSpace(b.Product) == "" ||
		strings.TrimSpace(b.ValueProp) == "" || strings.TrimSpace(b.Audience) == "" {
		return fmt.Errorf("%w: brand, product, value_prop and audience must not be blank", ErrInvalidBrief)
	}
	return nil
}

func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := jsonName(fe.Field())
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, field+" is required")
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of [%s]", field, fe.Param()))
		case "min":
			msgs = append(msgs, fmt.Sprintf("%s must be at least %s", field, fe.Param()))
		case "max":
			msgs = append(msgs, fmt.Sprintf("%s must be at most %s", field, fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %s", field, fe.Tag()))
		}
	}
	return strings.Join(msgs, "; ")
}

var fieldNames = map[string]string{
	"Brand":       "brand",
	"Product":     "product",
	"ValueProp":   "value_prop",
	"Audience":    "audience",
	"Objective":   "objective",
	"Platform":    "platform",
	"DurationSec": "duration_sec",
}

func jsonName(field string) string {
	if n, ok := fieldNames[field]; ok {
		return n
	}
	return field
}
