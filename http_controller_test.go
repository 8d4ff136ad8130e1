package prolink_test

import (
	"testing"

	"github.com/prolink/prolink-go"
	"github.com/stretchr/testify/assert"
)

func TestLoginRequestValidate(t *testing.T) {
	valid := prolink.LoginRequest{Email: "user@example.com", Password: "hunter2pass"}
	assert.NoError(t, valid.Validate())

	assert.Error(t, prolink.LoginRequest{Email: "", Password: "x"}.Validate())
	assert.Error(t, prolink.LoginRequest{Email: "not-an-email", Password: "x"}.Validate())
	assert.Error(t, prolink.LoginRequest{Email: "user@example.com", Password: ""}.Validate())
}

func TestRegistrationPayloadValidate(t *testing.T) {
	valid := prolink.RegistrationCreatePayload{
		FirstName:       "Dana",
		LastName:        "Fox",
		Email:           "dana@example.com",
		Role:            "client",
		Password:        "hunter2pass",
		ConfirmPassword: "hunter2pass",
	}
	assert.NoError(t, valid.Validate())

	short := valid
	short.FirstName = "D"
	assert.Error(t, short.Validate())

	weak := valid
	weak.Password = "short"
	weak.ConfirmPassword = "short"
	assert.Error(t, weak.Validate())

	mismatch := valid
	mismatch.ConfirmPassword = "different1"
	assert.Error(t, mismatch.Validate())

	badRole := valid
	badRole.Role = "admin"
	assert.Error(t, badRole.Validate())

	noRole := valid
	noRole.Role = ""
	assert.Error(t, noRole.Validate())
}

func TestProfileUpdatePayloadValidate(t *testing.T) {
	valid := prolink.ProfileUpdatePayload{
		FirstName:  "Dana",
		LastName:   "Fox",
		Bio:        "Plumbing and heating.",
		HourlyRate: 85,
	}
	assert.NoError(t, valid.Validate())

	negative := valid
	negative.HourlyRate = -1
	assert.Error(t, negative.Validate())
}

func TestFormatValidationErrorToMap(t *testing.T) {
	err := prolink.RegistrationCreatePayload{}.Validate()
	assert.Error(t, err)

	fields := prolink.FormatValidationErrorToMap(err)
	assert.Contains(t, fields, "email")
	assert.Contains(t, fields, "password")

	assert.Empty(t, prolink.FormatValidationErrorToMap(nil))
}

func TestValidateStringEquals(t *testing.T) {
	rule := prolink.ValidateStringEquals("secret")
	assert.NoError(t, rule("secret"))
	assert.Error(t, rule("other"))
}
