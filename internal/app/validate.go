package app

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"lms-test-service/internal/domain"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterStructValidation(func(sl validator.StructLevel) {
		q := sl.Current().Interface().(domain.Question)
		if q.CorrectOption >= len(q.Options) {
			sl.ReportError(q.CorrectOption, "CorrectOption", "correctOption", "ltfield", "Options")
		}
	}, domain.Question{})
	return v
}

// ValidateTest checks a definition loaded from a backing store.
func ValidateTest(def domain.TestDefinition) error {
	if err := validate.Struct(def); err != nil {
		return fmt.Errorf("%w %q: %v", domain.ErrInvalidTest, def.ID, err)
	}
	seen := make(map[string]struct{}, len(def.Questions))
	for _, q := range def.Questions {
		if _, dup := seen[q.ID]; dup {
			return fmt.Errorf("%w %q: duplicate question %q", domain.ErrInvalidTest, def.ID, q.ID)
		}
		seen[q.ID] = struct{}{}
	}
	return nil
}
