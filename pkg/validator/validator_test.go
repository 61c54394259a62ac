package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateRegister(t *testing.T) {
	t.Run("valid input", func(t *testing.T) {
		errs := ValidateRegister("ana@example.com", "Ana", "patient", "Sup3rSecret")
		assert.False(t, errs.HasErrors())
	})

	t.Run("missing everything", func(t *testing.T) {
		errs := ValidateRegister("", "", "", "")
		assert.Contains(t, errs, "email")
		assert.Contains(t, errs, "display_name")
		assert.Contains(t, errs, "role")
		assert.Contains(t, errs, "password")
	})

	t.Run("bad email", func(t *testing.T) {
		errs := ValidateRegister("not-an-email", "Ana", "patient", "Sup3rSecret")
		assert.Contains(t, errs, "email")
	})

	t.Run("role must be patient or doctor", func(t *testing.T) {
		errs := ValidateRegister("ana@example.com", "Ana", "admin", "Sup3rSecret")
		assert.Contains(t, errs, "role")

		errs = ValidateRegister("ana@example.com", "Ana", "doctor", "Sup3rSecret")
		assert.False(t, errs.HasErrors())
	})

	t.Run("weak passwords", func(t *testing.T) {
		errs := ValidateRegister("ana@example.com", "Ana", "patient", "short")
		assert.Contains(t, errs, "password")

		errs = ValidateRegister("ana@example.com", "Ana", "patient", "alllowercase1")
		assert.Contains(t, errs, "password")

		errs = ValidateRegister("ana@example.com", "Ana", "patient", "NoDigitsHere")
		assert.Contains(t, errs, "password")
	})

	t.Run("display name bounds", func(t *testing.T) {
		errs := ValidateRegister("ana@example.com", "A", "patient", "Sup3rSecret")
		assert.Contains(t, errs, "display_name")
	})
}

func TestValidateLogin(t *testing.T) {
	errs := ValidateLogin("ana@example.com", "Sup3rSecret")
	assert.False(t, errs.HasErrors())

	errs = ValidateLogin("", "")
	assert.Contains(t, errs, "email")
	assert.Contains(t, errs, "password")

	errs = ValidateLogin("broken@", "x")
	assert.Contains(t, errs, "email")
}
