package validate

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,max=72"`
	Internal string `json:"-" validate:"omitempty"`
}

func TestStruct_OK(t *testing.T) {
	assert.NoError(t, Struct(sample{Email: "a@b.com", Password: "secret"}))
}

func TestStruct_ReportsEachFieldByJSONName(t *testing.T) {
	err := Struct(sample{Email: "nope", Password: strings.Repeat("x", 73)})
	assert.EqualError(t, err, "field 'email' failed 'email'; field 'password' failed 'max'")

	var ve *Error
	require.True(t, errors.As(err, &ve))
	assert.True(t, ve.FailedField("email", "email"))
	assert.True(t, ve.FailedField("password", "max"))
	assert.False(t, ve.Failed("required"))
}

func TestStruct_Required(t *testing.T) {
	err := Struct(sample{})
	var ve *Error
	require.True(t, errors.As(err, &ve))
	assert.True(t, ve.Failed("required"))
	assert.ErrorContains(t, err, "field 'email' failed 'required'")
	assert.ErrorContains(t, err, "field 'password' failed 'required'")
}
