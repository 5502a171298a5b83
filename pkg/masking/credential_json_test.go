package masking

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCredentialJSONMasker_AppliesTo(t *testing.T) {
	m := &CredentialJSONMasker{}

	assert.True(t, m.AppliesTo(`{"api_key": "xyz"}`))
	assert.False(t, m.AppliesTo(`plain text with no braces`))
	assert.False(t, m.AppliesTo(`{"name": "alice"}`))
}

func TestCredentialJSONMasker_MasksNestedFields(t *testing.T) {
	m := &CredentialJSONMasker{}
	content := `debug dump: {"user":{"name":"alice","password":"hunter2"},"api_key":"sk-live-xxx"} end of page`

	result := m.Mask(content)

	assert.NotContains(t, result, "hunter2")
	assert.NotContains(t, result, "sk-live-xxx")
	assert.Contains(t, result, MaskedCredentialValue)
	assert.Contains(t, result, "alice")
	assert.Contains(t, result, "end of page")
}

func TestCredentialJSONMasker_DefensiveOnInvalidJSON(t *testing.T) {
	m := &CredentialJSONMasker{}
	content := `{not valid json at all}`

	result := m.Mask(content)
	assert.Equal(t, content, result)
}

func TestCredentialJSONMasker_NoCredentialFields(t *testing.T) {
	m := &CredentialJSONMasker{}
	content := `{"title": "Example Article", "author": "Jane Doe"}`

	result := m.Mask(content)
	assert.Equal(t, content, result)
}
