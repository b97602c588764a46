package dispatch

import (
	"fmt"
	"net/url"

	"github.com/lorekeep/lorekeep/internal/domain"
)

// Payload schemas per job type. Validation happens before any side effect;
// a malformed payload never reaches the rate limiter or the ledger.

func validatePayload(jobType string, payload map[string]any) error {
	switch jobType {
	case domain.TypeTextGeneration:
		return validateTextGeneration(payload)
	case domain.TypeVideoIngest:
		return validateVideoIngest(payload)
	case domain.TypeIndexRefresh:
		return validateIndexRefresh(payload)
	default:
		return &domain.ValidationError{Field: "type", Message: fmt.Sprintf("unknown job type %q", jobType)}
	}
}

func validateTextGeneration(payload map[string]any) error {
	prompt, err := requireString(payload, "prompt")
	if err != nil {
		return err
	}
	if len(prompt) > 32_000 {
		return &domain.ValidationError{Field: "prompt", Message: "exceeds 32000 characters"}
	}
	if _, ok := payload["model"]; ok {
		if _, err := requireString(payload, "model"); err != nil {
			return err
		}
	}
	return nil
}

func validateVideoIngest(payload map[string]any) error {
	source, err := requireString(payload, "source_url")
	if err != nil {
		return err
	}
	u, parseErr := url.Parse(source)
	if parseErr != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return &domain.ValidationError{Field: "source_url", Message: "must be an http(s) URL"}
	}
	return nil
}

func validateIndexRefresh(payload map[string]any) error {
	_, err := requireString(payload, "collection_id")
	return err
}

func requireString(payload map[string]any, field string) (string, error) {
	raw, ok := payload[field]
	if !ok {
		return "", &domain.ValidationError{Field: field, Message: "is required"}
	}
	s, ok := raw.(string)
	if !ok || s == "" {
		return "", &domain.ValidationError{Field: field, Message: "must be a non-empty string"}
	}
	return s, nil
}
