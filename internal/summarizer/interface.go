package summarizer

import "context"

// Summarizer turns parsed speech text into a markdown summary.
type Summarizer interface {
	Summarize(ctx context.Context, speechText string) (string, error)
}
