package summarizer

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"

	"google.golang.org/genai"
)

const defaultPrompt = `You are an expert at analyzing spoken-word transcripts. The text below is a
speech transcript grouped into five-minute blocks, each headed by its start
timestamp.

Write a DETAILED markdown summary:
- Start with a one-sentence title line describing the overall topic
- List every main point in order of appearance, with its timestamp
- Explain each point, keeping important caveats and warnings
- Keep domain-specific terms verbatim
- Use markdown headings, bullet points and bold for key phrases
- End with an "Important notes" section if anything needs emphasis

Transcript:
---
%TEXT%
---`

// Summarize sends the parsed speech text to Gemini and returns the
// markdown summary. Rotates API keys on 429 / quota errors.
func (s *implSummarizer) Summarize(ctx context.Context, speechText string) (string, error) {
	prompt := strings.Replace(s.prompt, "%TEXT%", speechText, 1)
	if !strings.Contains(s.prompt, "%TEXT%") {
		prompt = s.prompt + "\n\n" + strings.TrimSpace(speechText)
	}

	temperature := float32(0.5)
	cfg := &genai.GenerateContentConfig{Temperature: &temperature}

	attempts := len(s.apiKeys)
	var lastErr error

	for range attempts {
		key := s.apiKeys[s.currentKey]

		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  key,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			lastErr = errors.Wrap(err, "create client")
			s.rotateKey()
			continue
		}

		result, err := client.Models.GenerateContent(ctx, s.model, genai.Text(prompt), cfg)
		if err != nil {
			if isQuotaError(err) {
				s.logger.Warn(ctx, "Gemini key %d rate limited, rotating...", s.currentKey+1)
				s.rotateKey()
				lastErr = err
				continue
			}
			return "", errors.Wrap(err, "generate content")
		}

		if result != nil && len(result.Candidates) > 0 && result.Candidates[0].Content != nil {
			var text strings.Builder
			for _, part := range result.Candidates[0].Content.Parts {
				text.WriteString(part.Text)
			}
			if text.Len() > 0 {
				return text.String(), nil
			}
		}
		return "", errors.New("empty response from Gemini")
	}

	return "", errors.Wrap(lastErr, "all API keys exhausted")
}

func isQuotaError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "quota") ||
		strings.Contains(msg, "RESOURCE_EXHAUSTED")
}

func (s *implSummarizer) rotateKey() {
	s.currentKey = (s.currentKey + 1) % len(s.apiKeys)
}
