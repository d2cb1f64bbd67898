package summarizer

import (
	"os"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/galencky/whisper-stt-project/internal/logger"
)

// Options configures the Gemini summarizer.
type Options struct {
	APIKeys    []string
	Model      string
	PromptPath string // empty = built-in prompt
}

type implSummarizer struct {
	apiKeys    []string
	currentKey int
	model      string
	prompt     string
	logger     logger.Logger
}

// New creates a Summarizer that rotates through the supplied Gemini API
// keys on quota exhaustion.
func New(opts Options, log logger.Logger) (Summarizer, error) {
	if len(opts.APIKeys) == 0 {
		return nil, errors.New("at least one Gemini API key is required")
	}

	prompt := defaultPrompt
	if opts.PromptPath != "" {
		data, err := os.ReadFile(opts.PromptPath)
		if err != nil {
			return nil, errors.Wrapf(err, "read system prompt %s", opts.PromptPath)
		}
		prompt = strings.TrimSpace(string(data))
	}

	model := opts.Model
	if model == "" {
		model = "gemini-2.5-flash"
	}

	return &implSummarizer{
		apiKeys: opts.APIKeys,
		model:   model,
		prompt:  prompt,
		logger:  log,
	}, nil
}
