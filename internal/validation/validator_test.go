package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/recipe-api/internal/service"
)

type signup struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=5"`
	Name     string `json:"name,omitempty" validate:"max=10"`
}

func TestValidateOK(t *testing.T) {
	assert.NoError(t, New().Validate(signup{Email: "a@example.com", Password: "12345"}))
}

func TestValidateFieldErrors(t *testing.T) {
	err := New().Validate(signup{Email: "nope", Password: "pw", Name: "a very long name"})
	var verr *service.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "Enter a valid email address.", verr.Fields["email"])
	assert.Equal(t, "Ensure this field has at least 5 characters.", verr.Fields["password"])
	assert.Equal(t, "Ensure this field has no more than 10 characters.", verr.Fields["name"])
}

func TestValidateRequired(t *testing.T) {
	err := New().Validate(signup{})
	var verr *service.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "This field is required.", verr.Fields["email"])
	assert.Equal(t, "This field is required.", verr.Fields["password"])
}
