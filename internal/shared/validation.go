package shared

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/odyssey-crm/odyssey-crm/internal/platform/httpx"
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

// Validate checks struct tags on v and reports failures as httpx.ErrValidation.
// When v is a pointer to a struct, its string and *string fields are trimmed
// in place first; fields tagged `trim:"-"` are left as sent.
func Validate(v any) error {
	trimStrings(v)
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", httpx.ErrValidation, err)
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fmt.Sprintf("%s %s", fe.Field(), fe.Tag()))
	}
	return fmt.Errorf("%w: %s", httpx.ErrValidation, strings.Join(fields, ", "))
}

func trimStrings(v any) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return
	}
	rv = rv.Elem()
	if rv.Kind() != reflect.Struct {
		return
	}
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		sf := rt.Field(i)
		if !sf.IsExported() || sf.Tag.Get("trim") == "-" {
			continue
		}
		field := rv.Field(i)
		switch {
		case field.Kind() == reflect.String:
			field.SetString(strings.TrimSpace(field.String()))
		case field.Kind() == reflect.Pointer && !field.IsNil() && field.Elem().Kind() == reflect.String:
			trimmed := strings.TrimSpace(field.Elem().String())
			field.Set(reflect.New(field.Elem().Type()))
			field.Elem().SetString(trimmed)
		}
	}
}
