package uploader

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/galencky/whisper-stt-project/internal/logger"
	"github.com/galencky/whisper-stt-project/internal/pipeline"
)

func TestTitleFromStem(t *testing.T) {
	tests := []struct {
		stem string
		want string
	}{
		{"meeting_2024_parsed", "meeting 2024"},
		{"a", "a"},
		{"weekly_standup", "weekly standup"},
		{"_parsed", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, TitleFromStem(tt.stem))
	}
}

func TestNormalizeContent(t *testing.T) {
	tests := []struct {
		name     string
		title    string
		markdown string
		wantHead string
	}{
		{"adds heading", "My Talk", "Some intro text.", "# My Talk"},
		{"rewrites heading", "My Talk", "# old title\n\nbody", "# My Talk"},
		{"strips leading blank lines", "T", "\n\n## sub\n", "# T"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeContent(tt.title, tt.markdown)
			assert.True(t, strings.HasPrefix(got, tt.wantHead), "got: %q", got)
			assert.Contains(t, got, "#whisper-stt-project")
		})
	}
}

func TestNormalizeContentHashtagOnlyOnce(t *testing.T) {
	md := "# t\n\nbody\n\n#whisper-stt-project\n"
	got := NormalizeContent("t", md)
	assert.Equal(t, 1, strings.Count(got, "#whisper-stt-project"))
}

func TestHackMDPublish(t *testing.T) {
	var gotAuth string
	var gotPayload notePayload

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))
		_ = json.NewEncoder(w).Encode(noteResponse{ID: "abc123"})
	}))
	defer srv.Close()

	p := NewHackMD("secret-token", srv.URL, logger.NewNop())
	url, err := p.Publish(context.Background(), "My Talk", "## notes\n\nbody")
	require.NoError(t, err)

	assert.Equal(t, "https://hackmd.io/abc123", url)
	assert.Equal(t, "Bearer secret-token", gotAuth)
	assert.Equal(t, "My Talk", gotPayload.Title)
	assert.Equal(t, "guest", gotPayload.ReadPermission)
	assert.True(t, strings.HasPrefix(gotPayload.Content, "# My Talk"))
}

func TestHackMDPublishServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad token", http.StatusUnauthorized)
	}))
	defer srv.Close()

	p := NewHackMD("bad", srv.URL, logger.NewNop())
	_, err := p.Publish(context.Background(), "t", "body")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

type fakePublisher struct {
	url string
	err error
}

func (f *fakePublisher) Publish(ctx context.Context, title, markdown string) (string, error) {
	return f.url, f.err
}

func TestStageProcessMovesAndCollects(t *testing.T) {
	markdownDir := t.TempDir()
	uploadedDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(markdownDir, "a.md"), []byte("# s"), 0644))

	st := NewStage(&fakePublisher{url: "https://hackmd.io/x"}, true,
		markdownDir, uploadedDir, logger.NewNop())

	require.NoError(t, st.Process(context.Background(), "a"))

	assert.NoFileExists(t, filepath.Join(markdownDir, "a.md"))
	assert.FileExists(t, filepath.Join(uploadedDir, "a.md"))

	links := st.TakeLinks()
	require.Len(t, links, 1)
	assert.Equal(t, Link{Title: "a", URL: "https://hackmd.io/x"}, links[0])
	assert.Empty(t, st.TakeLinks(), "TakeLinks resets the accumulator")
}

func TestStageSkipsWithoutToken(t *testing.T) {
	markdownDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(markdownDir, "a.md"), []byte("# s"), 0644))

	st := NewStage(nil, false, markdownDir, t.TempDir(), logger.NewNop())

	err := st.Process(context.Background(), "a")
	require.Error(t, err)
	assert.ErrorIs(t, err, pipeline.ErrSkipped)

	// Nothing published, nothing moved.
	assert.FileExists(t, filepath.Join(markdownDir, "a.md"))
	assert.Empty(t, st.TakeLinks())
}

func TestStageDiscover(t *testing.T) {
	markdownDir := t.TempDir()
	uploadedDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(markdownDir, "a.md"), nil, 0644))
	require.NoError(t, os.WriteFile(filepath.Join(markdownDir, "b.md"), nil, 0644))
	require.NoError(t, os.WriteFile(filepath.Join(uploadedDir, "a.md"), nil, 0644))

	st := NewStage(nil, false, markdownDir, uploadedDir, logger.NewNop())
	stems, err := st.Discover(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, stems)
}
