package handlers

import (
	"context"
	"encoding/json"

	"github.com/lorekeep/lorekeep/internal/domain"
	"github.com/lorekeep/lorekeep/internal/provider"
	"github.com/lorekeep/lorekeep/internal/registry"
)

type videoIngestPayload struct {
	SourceURL string `json:"source_url"`
	Language  string `json:"language"`
	Title     string `json:"title"`
}

// VideoIngest transcribes an uploaded recording and stores the transcript
// as a searchable document.
type VideoIngest struct {
	Provider provider.Client
	Model    string
}

func (h *VideoIngest) Process(ctx context.Context, job *domain.Job) registry.Outcome {
	var p videoIngestPayload
	if err := json.Unmarshal(job.Payload, &p); err != nil {
		return registry.Permanent("malformed payload: " + err.Error())
	}
	if p.SourceURL == "" {
		return registry.Permanent("payload missing source_url")
	}

	tr, err := h.Provider.Transcribe(ctx, provider.TranscribeRequest{
		Model:     h.Model,
		SourceURL: p.SourceURL,
		Language:  p.Language,
	})
	if err != nil {
		return registry.Transient("provider: " + err.Error())
	}
	if tr.Text == "" {
		return registry.Permanent("provider returned empty transcript")
	}

	title := p.Title
	if title == "" {
		title = "Transcript: " + p.SourceURL
	}

	return registry.Success(
		map[string]any{
			"transcript":       tr.Text,
			"duration_seconds": tr.DurationSeconds,
		},
		&registry.SideEffects{
			Document: &domain.Document{Title: title, Content: tr.Text},
			Usage:    &domain.UsageRecord{CreditsCharged: 5},
		},
	)
}
