package validation

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	apperrors "github.com/lorrc/service-desk-realtime/internal/core/errors"
)

// MaxBodyBytes caps request bodies read by DecodeAndValidate.
const MaxBodyBytes = 1 << 20

// Validator validates request data
type Validator struct {
	errors *apperrors.ValidationErrors
}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{
		errors: apperrors.NewValidationErrors(),
	}
}

// HasErrors returns true if there are validation errors
func (v *Validator) HasErrors() bool {
	return v.errors.HasErrors()
}

// Errors returns the validation errors
func (v *Validator) Errors() *apperrors.ValidationErrors {
	return v.errors
}

// Err returns the validation errors as an error, or nil if there are none.
func (v *Validator) Err() error {
	if !v.HasErrors() {
		return nil
	}
	return v.errors
}

// Required validates that a string is not empty
func (v *Validator) Required(field, value string) *Validator {
	if strings.TrimSpace(value) == "" {
		v.errors.Add(field, "This field is required")
	}
	return v
}

// MaxLength validates maximum string length
func (v *Validator) MaxLength(field, value string, max int) *Validator {
	if len(value) > max {
		v.errors.Add(field, "Must be at most "+strconv.Itoa(max)+" characters")
	}
	return v
}

// RequiredEach validates that a slice is non-empty and has no blank entries
func (v *Validator) RequiredEach(field string, values []string) *Validator {
	if len(values) == 0 {
		v.errors.Add(field, "At least one value is required")
		return v
	}
	for i, value := range values {
		if strings.TrimSpace(value) == "" {
			v.errors.Add(field, "Entry "+strconv.Itoa(i)+" must not be empty")
		}
	}
	return v
}

// Custom adds a custom validation
func (v *Validator) Custom(field string, valid bool, message string) *Validator {
	if !valid {
		v.errors.Add(field, message)
	}
	return v
}

// Validatable is implemented by request types that check their own fields.
type Validatable interface {
	Validate(v *Validator)
}

// Decode unmarshals raw JSON into T and runs its validation.
func Decode[T any, PT interface {
	*T
	Validatable
}](data []byte) (*T, error) {
	var req T
	if len(data) == 0 {
		return nil, apperrors.NewBadRequestError(apperrors.ErrInvalidEventPayload, "Request body is required")
	}
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, apperrors.NewBadRequestError(errors.Join(apperrors.ErrInvalidEventPayload, err), "Invalid request body")
	}

	v := NewValidator()
	PT(&req).Validate(v)
	if err := v.Err(); err != nil {
		return nil, err
	}
	return &req, nil
}

// ReadBody reads a request body up to MaxBodyBytes.
func ReadBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		return nil, apperrors.NewBadRequestError(err, "Invalid request body")
	}
	return body, nil
}
