// Package handlers implements the job-type handlers registered against the
// worker registry. Handlers receive the sanitized payload, call out to the
// model provider, and return a classified outcome; they never touch job
// state directly.
package handlers

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/lorekeep/lorekeep/internal/domain"
	"github.com/lorekeep/lorekeep/internal/provider"
	"github.com/lorekeep/lorekeep/internal/registry"
)

type textGenPayload struct {
	Prompt string `json:"prompt"`
	Model  string `json:"model"`
	Title  string `json:"title"`
}

// TextGeneration runs a prompt through the model provider and persists the
// generated content as a document plus a token-usage record.
type TextGeneration struct {
	Provider     provider.Client
	DefaultModel string
}

func (h *TextGeneration) Process(ctx context.Context, job *domain.Job) registry.Outcome {
	var p textGenPayload
	if err := json.Unmarshal(job.Payload, &p); err != nil {
		return registry.Permanent("malformed payload: " + err.Error())
	}
	if p.Prompt == "" {
		return registry.Permanent("payload missing prompt")
	}

	model := p.Model
	if model == "" {
		model = h.DefaultModel
	}

	gen, err := h.Provider.Generate(ctx, provider.GenerateRequest{
		Model:  model,
		Prompt: p.Prompt,
	})
	if err != nil {
		// Provider and network errors are transient; the retry budget in
		// the worker bounds how often we go back.
		return registry.Transient("provider: " + err.Error())
	}
	if gen.Content == "" {
		return registry.Permanent("provider returned empty content")
	}

	title := p.Title
	if title == "" {
		title = firstLine(gen.Content)
	}

	return registry.Success(
		map[string]any{
			"content":    gen.Content,
			"model":      model,
			"tokens_in":  gen.TokensIn,
			"tokens_out": gen.TokensOut,
		},
		&registry.SideEffects{
			Document: &domain.Document{Title: title, Content: gen.Content},
			Usage: &domain.UsageRecord{
				TokensIn:       gen.TokensIn,
				TokensOut:      gen.TokensOut,
				CreditsCharged: 1,
			},
		},
	)
}

func firstLine(s string) string {
	line := s
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		line = s[:i]
	}
	line = strings.TrimSpace(line)
	if len(line) > 120 {
		line = line[:120]
	}
	if line == "" {
		line = "Generated document"
	}
	return line
}
