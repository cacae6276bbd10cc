package common

import (
	"context"
	"testing"

	"vocabapp/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestAuthContextRoundTrip(t *testing.T) {
	_, ok := AuthFromContext(context.Background())
	assert.False(t, ok)

	auth := &AuthContext{Account: &models.Account{ID: uuid.New()}}
	got, ok := AuthFromContext(WithAuthContext(context.Background(), auth))
	assert.True(t, ok)
	assert.Same(t, auth, got)

	_, ok = AuthFromContext(WithAuthContext(context.Background(), nil))
	assert.False(t, ok)
}

func TestIsValidUsername(t *testing.T) {
	valid := []string{"jane", "j-d", "jane_doe42", "abc"}
	invalid := []string{"", "ab", "Jane", "-jane", "jane-", "jane doe", "jane@example.com", "a234567890123456789012345678901234"}

	for _, u := range valid {
		assert.True(t, IsValidUsername(u), u)
	}
	for _, u := range invalid {
		assert.False(t, IsValidUsername(u), u)
	}
}

func TestValidateEmail(t *testing.T) {
	assert.NoError(t, ValidateEmail("jane@example.com", "email"))
	assert.Error(t, ValidateEmail("jane", "email"))
	assert.Error(t, ValidateEmail("Jane <jane@example.com>", "email"))
}

func TestValidateUUID(t *testing.T) {
	id := uuid.New()
	got, err := ValidateUUID(" "+id.String()+" ", "id")
	assert.NoError(t, err)
	assert.Equal(t, id, got)

	_, err = ValidateUUID("", "id")
	assert.Error(t, err)
	_, err = ValidateUUID("1234", "id")
	assert.Error(t, err)
}

func TestNormalizeIdentifier(t *testing.T) {
	assert.Equal(t, "jane@example.com", NormalizeIdentifier("  Jane@Example.com "))
}
