package resolvers

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/jacentio/socialtable/store"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// check validates input and reports failures as store.ErrValidation.
func check(input any) error {
	err := validate.Struct(input)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		msgs := make([]string, 0, len(verrs))
		for _, e := range verrs {
			msgs = append(msgs, fmt.Sprintf("%s failed %q", e.Namespace(), e.Tag()))
		}
		return fmt.Errorf("%w: %s", store.ErrValidation, strings.Join(msgs, "; "))
	}
	return fmt.Errorf("%w: %w", store.ErrValidation, err)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", store.ErrValidation, fmt.Sprintf(format, args...))
}
