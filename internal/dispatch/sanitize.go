package dispatch

import "strings"

// credentialFragments match field names that smell like secrets. The filter
// is structural, not type-aware: it runs on every payload regardless of job
// type so a caller that mistakenly includes a credential never gets it
// persisted, even for types added later.
var credentialFragments = []string{
	"password",
	"passwd",
	"secret",
	"token",
	"api_key",
	"apikey",
	"access_key",
	"private_key",
	"credential",
	"authorization",
	"auth_header",
	"client_secret",
	"session_key",
}

func isCredentialKey(key string) bool {
	k := strings.ToLower(key)
	k = strings.ReplaceAll(k, "-", "_")
	for _, frag := range credentialFragments {
		if strings.Contains(k, frag) {
			return true
		}
	}
	return false
}

// Sanitize strips credential-shaped keys from a decoded payload, descending
// into nested objects and arrays. The input map is not modified.
func Sanitize(payload map[string]any) map[string]any {
	out, _ := sanitizeValue(payload).(map[string]any)
	return out
}

func sanitizeValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		clean := make(map[string]any, len(val))
		for k, inner := range val {
			if isCredentialKey(k) {
				continue
			}
			clean[k] = sanitizeValue(inner)
		}
		return clean
	case []any:
		clean := make([]any, len(val))
		for i, inner := range val {
			clean[i] = sanitizeValue(inner)
		}
		return clean
	default:
		return v
	}
}
