package validation

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	apperrors "github.com/lorrc/service-desk-realtime/internal/core/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleRequest struct {
	ID   string   `json:"id"`
	Tags []string `json:"tags"`
}

func (r *sampleRequest) Validate(v *Validator) {
	v.Required("id", r.ID).
		MaxLength("id", r.ID, 8).
		RequiredEach("tags", r.Tags)
}

func TestValidatorChain(t *testing.T) {
	v := NewValidator()
	v.Required("a", " ").
		MaxLength("b", "toolong", 3).
		RequiredEach("c", nil).
		RequiredEach("d", []string{"x", ""}).
		Custom("e", false, "bad")

	require.True(t, v.HasErrors())
	errs := v.Errors().Errors
	assert.Equal(t, []string{"This field is required"}, errs["a"])
	assert.Equal(t, []string{"Must be at most 3 characters"}, errs["b"])
	assert.Equal(t, []string{"At least one value is required"}, errs["c"])
	assert.Equal(t, []string{"Entry 1 must not be empty"}, errs["d"])
	assert.Equal(t, []string{"bad"}, errs["e"])
}

func TestValidator_ErrNilWhenClean(t *testing.T) {
	v := NewValidator().Required("a", "ok")
	assert.NoError(t, v.Err())
}

func TestDecode(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		req, err := Decode[sampleRequest]([]byte(`{"id":"T1","tags":["a"]}`))
		require.NoError(t, err)
		assert.Equal(t, "T1", req.ID)
	})

	t.Run("malformed json", func(t *testing.T) {
		_, err := Decode[sampleRequest]([]byte(`{"id":`))
		var appErr *apperrors.AppError
		require.True(t, errors.As(err, &appErr))
		assert.Equal(t, http.StatusBadRequest, appErr.StatusCode)
		assert.ErrorIs(t, err, apperrors.ErrInvalidEventPayload)
	})

	t.Run("empty body", func(t *testing.T) {
		_, err := Decode[sampleRequest](nil)
		assert.ErrorIs(t, err, apperrors.ErrInvalidEventPayload)
	})

	t.Run("failed validation", func(t *testing.T) {
		_, err := Decode[sampleRequest]([]byte(`{"id":"way-too-long-id"}`))
		var vErrs *apperrors.ValidationErrors
		require.True(t, errors.As(err, &vErrs))
		assert.Contains(t, vErrs.Errors, "id")
		assert.Contains(t, vErrs.Errors, "tags")
	})
}

func TestReadBody_Limit(t *testing.T) {
	body := strings.Repeat("x", MaxBodyBytes+1)
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	_, err := ReadBody(httptest.NewRecorder(), r)
	assert.Error(t, err)
}
