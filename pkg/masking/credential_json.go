package masking

import (
	"encoding/json"
	"strings"
)

// MaskedCredentialValue is the replacement string for masked credential fields.
const MaskedCredentialValue = "[MASKED_CREDENTIAL]"

// credentialFieldNames are JSON object keys treated as carrying a secret
// value wherever they appear, at any nesting depth. Fetched web/news pages
// sometimes embed an API response (e.g. a leaked debug endpoint) containing
// these fields verbatim.
var credentialFieldNames = map[string]bool{
	"api_key":       true,
	"apikey":        true,
	"access_token":  true,
	"auth_token":    true,
	"password":      true,
	"secret":        true,
	"client_secret": true,
	"private_key":   true,
}

// CredentialJSONMasker detects embedded JSON objects carrying credential-like
// fields and masks their values, leaving the surrounding text untouched.
type CredentialJSONMasker struct{}

func (m *CredentialJSONMasker) Name() string { return "credential_json" }

// AppliesTo performs a lightweight check before attempting a parse.
func (m *CredentialJSONMasker) AppliesTo(data string) bool {
	if !strings.Contains(data, "{") {
		return false
	}
	for field := range credentialFieldNames {
		if strings.Contains(data, field) {
			return true
		}
	}
	return false
}

// Mask finds JSON object substrings and masks credential fields within them.
// Returns the original data on any parse failure (defensive).
func (m *CredentialJSONMasker) Mask(data string) string {
	start := strings.IndexByte(data, '{')
	end := strings.LastIndexByte(data, '}')
	if start < 0 || end < 0 || end < start {
		return data
	}

	var obj map[string]any
	candidate := data[start : end+1]
	if err := json.Unmarshal([]byte(candidate), &obj); err != nil {
		return data
	}

	if !maskCredentialFields(obj) {
		return data
	}

	masked, err := json.Marshal(obj)
	if err != nil {
		return data
	}

	return data[:start] + string(masked) + data[end+1:]
}

// maskCredentialFields walks the decoded object recursively, replacing any
// credential-named field's value. Returns true if anything was masked.
func maskCredentialFields(v any) bool {
	anyMasked := false
	switch val := v.(type) {
	case map[string]any:
		for key, fieldVal := range val {
			if credentialFieldNames[strings.ToLower(key)] {
				val[key] = MaskedCredentialValue
				anyMasked = true
				continue
			}
			if maskCredentialFields(fieldVal) {
				anyMasked = true
			}
		}
	case []any:
		for _, item := range val {
			if maskCredentialFields(item) {
				anyMasked = true
			}
		}
	}
	return anyMasked
}
