package uploader

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/galencky/whisper-stt-project/internal/logger"
)

// hashtag appended to every published note so the project's uploads are
// findable on HackMD.
const hashtag = "#whisper-stt-project"

type hackmdPublisher struct {
	token  string
	apiURL string
	client *retryablehttp.Client
	logger logger.Logger
}

// NewHackMD creates a Publisher posting to the HackMD notes API. Calls are
// retried with backoff on transient failures.
func NewHackMD(token, apiURL string, log logger.Logger) Publisher {
	client := retryablehttp.NewClient()
	client.RetryMax = 3
	client.RetryWaitMin = time.Second
	client.RetryWaitMax = 10 * time.Second
	client.Logger = nil

	return &hackmdPublisher{
		token:  token,
		apiURL: apiURL,
		client: client,
		logger: log,
	}
}

type notePayload struct {
	Title           string `json:"title"`
	Content         string `json:"content"`
	ReadPermission  string `json:"readPermission"`
	WritePermission string `json:"writePermission"`
}

type noteResponse struct {
	ID string `json:"id"`
}

// Publish posts the markdown as a guest-readable note and returns the
// shared URL.
func (p *hackmdPublisher) Publish(ctx context.Context, title, markdown string) (string, error) {
	payload, err := json.Marshal(notePayload{
		Title:           title,
		Content:         NormalizeContent(title, markdown),
		ReadPermission:  "guest",
		WritePermission: "signed_in",
	})
	if err != nil {
		return "", errors.Wrap(err, "encode note")
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, p.apiURL, bytes.NewReader(payload))
	if err != nil {
		return "", errors.Wrap(err, "build request")
	}
	req.Header.Set("Authorization", "Bearer "+p.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "post note")
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", errors.Newf("upload failed: %d %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var note noteResponse
	if err := json.Unmarshal(body, &note); err != nil {
		return "", errors.Wrap(err, "decode note response")
	}
	if note.ID == "" {
		return "", errors.New("note response missing id")
	}

	return "https://hackmd.io/" + note.ID, nil
}

// TitleFromStem derives the public note title from an item stem: the
// `_parsed` suffix is dropped and underscores become spaces.
func TitleFromStem(stem string) string {
	title := strings.ReplaceAll(stem, "_parsed", "")
	title = strings.ReplaceAll(title, "_", " ")
	return strings.TrimSpace(title)
}

// NormalizeContent forces the first line to `# Title` and appends the
// project hashtag when it is not already in the trailing lines.
func NormalizeContent(title, markdown string) string {
	content := strings.TrimLeft(markdown, "\n \t")
	lines := strings.Split(content, "\n")
	if len(lines) == 0 || !strings.HasPrefix(lines[0], "# ") {
		content = "# " + title + "\n\n" + content
	} else {
		lines[0] = "# " + title
		content = strings.Join(lines, "\n")
	}

	trimmed := strings.TrimRight(content, "\n")
	tail := strings.Split(trimmed, "\n")
	if len(tail) > 3 {
		tail = tail[len(tail)-3:]
	}
	for _, line := range tail {
		if strings.TrimSpace(line) == hashtag {
			return trimmed + "\n"
		}
	}
	return trimmed + "\n\n" + hashtag + "\n"
}
