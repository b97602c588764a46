package provider

import "context"

// Client is the capability the AI handlers are written against. Provider
// failures and timeouts surface as ordinary errors; the worker classifies
// them as transient.
type Client interface {
	Generate(ctx context.Context, req GenerateRequest) (*Generation, error)
	Transcribe(ctx context.Context, req TranscribeRequest) (*Transcript, error)
}

type GenerateRequest struct {
	Model  string
	Prompt string
}

type Generation struct {
	Content   string
	TokensIn  int
	TokensOut int
}

type TranscribeRequest struct {
	Model     string
	SourceURL string
	Language  string
}

type Transcript struct {
	Text            string
	DurationSeconds float64
}
