package domain

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// ValidateMeta checks required descriptive metadata for a new document.
func ValidateMeta(meta *DocumentMeta) error {
	if meta == nil {
		return NewValidationError(map[string]string{"meta": "is required"})
	}
	meta.Title = strings.TrimSpace(meta.Title)
	return toValidationError(structValidator().Struct(meta))
}

// ValidateFileRef checks that a file reference carries the attributes the
// core depends on.
func ValidateFileRef(ref *FileRef) error {
	if ref == nil {
		return NewValidationError(map[string]string{"file": "is required"})
	}
	if err := structValidator().Struct(ref); err != nil {
		ve := toValidationError(err)
		var typed *ValidationError
		if errors.As(ve, &typed) {
			for i := range typed.Fields {
				typed.Fields[i].Field = "file." + typed.Fields[i].Field
			}
		}
		return ve
	}
	return nil
}

// ValidateChangeNotes requires a non-blank change note.
func ValidateChangeNotes(notes string) error {
	if strings.TrimSpace(notes) == "" {
		return NewValidationError(map[string]string{"change_notes": "is required"})
	}
	return nil
}

func toValidationError(err error) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validating input: %w", err)
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fieldPath(fe)] = describe(fe)
	}
	return NewValidationError(fields)
}

func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return "must be at most " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	default:
		return "failed " + fe.Tag() + " check"
	}
}
