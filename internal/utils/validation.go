package utils

import (
	"fmt"
	"regexp"
	"strings"
)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

var aadhaarLast4Regex = regexp.MustCompile(`^\d{4}$`)

func ValidateRequired(field, value string) *ValidationError {
	if strings.TrimSpace(value) == "" {
		return &ValidationError{Field: field, Message: fmt.Sprintf("%s is required", field)}
	}
	return nil
}

// ValidateAadhaarLast4 accepts exactly four ASCII digits, nothing else.
func ValidateAadhaarLast4(field, value string) *ValidationError {
	if strings.TrimSpace(value) == "" {
		return &ValidationError{Field: field, Message: fmt.Sprintf("%s is required", field)}
	}
	if !aadhaarLast4Regex.MatchString(value) {
		return &ValidationError{Field: field, Message: fmt.Sprintf("%s must be exactly 4 digits", field)}
	}
	return nil
}

// CollectErrors drops nil results so callers can list checks inline.
func CollectErrors(errs ...*ValidationError) []ValidationError {
	out := make([]ValidationError, 0, len(errs))
	for _, e := range errs {
		if e != nil {
			out = append(out, *e)
		}
	}
	return out
}
