package watcher

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/galencky/whisper-stt-project/internal/logger"
)

func newTestDetector(t *testing.T, quiet time.Duration) (Detector, string) {
	t.Helper()
	dir := t.TempDir()
	d, err := New(Options{
		InboxDir:      dir,
		QuietInterval: quiet,
		Extensions:    []string{".wav", ".mp3"},
	}, logger.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Stop() })
	return d, dir
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestClaimHonorsQuietInterval(t *testing.T) {
	d, dir := newTestDetector(t, 10*time.Second)
	path := writeFile(t, dir, "a.wav", "audio-bytes")

	d.Mark(path)

	// Immediately after the event the file is not stable.
	assert.Empty(t, d.Claim(time.Now()))
	assert.Equal(t, 1, d.PendingCount())

	// Once the quiet interval has elapsed with no further events, exactly
	// one claim succeeds.
	future := time.Now().Add(11 * time.Second)
	claimed := d.Claim(future)
	require.Equal(t, []string{path}, claimed)
	assert.Zero(t, d.PendingCount())

	// The entry is gone; a second claim finds nothing.
	assert.Empty(t, d.Claim(future))
}

func TestMarkRefreshesTimestamp(t *testing.T) {
	d, dir := newTestDetector(t, 10*time.Second)
	path := writeFile(t, dir, "a.wav", "v1")

	d.Mark(path)
	base := time.Now()

	// A later event pushes stabilization out.
	time.Sleep(20 * time.Millisecond)
	writeFile(t, dir, "a.wav", "v1-longer")
	d.Mark(path)

	// Quiet interval measured from the first event has elapsed, but not
	// from the refreshed one.
	assert.Empty(t, d.Claim(base.Add(10*time.Second+10*time.Millisecond)))
	assert.Equal(t, []string{path}, d.Claim(base.Add(30*time.Second)))
}

func TestClaimDropsVanishedFile(t *testing.T) {
	d, dir := newTestDetector(t, time.Second)
	path := writeFile(t, dir, "gone.wav", "x")

	d.Mark(path)
	require.NoError(t, os.Remove(path))

	assert.Empty(t, d.Claim(time.Now().Add(2*time.Second)))
	assert.Zero(t, d.PendingCount(), "vanished file must leave the pending set")
}

func TestClaimDetectsSilentGrowth(t *testing.T) {
	d, dir := newTestDetector(t, time.Second)
	path := writeFile(t, dir, "grow.wav", "short")

	d.Mark(path)

	// Size changed without any event reaching us (coalescing). The claim
	// must refresh the entry instead of claiming a file mid-write.
	writeFile(t, dir, "grow.wav", "much longer content now")

	now := time.Now().Add(2 * time.Second)
	assert.Empty(t, d.Claim(now))
	assert.Equal(t, 1, d.PendingCount())

	// After another full quiet interval with the size unchanged it stabilizes.
	assert.Equal(t, []string{path}, d.Claim(now.Add(2*time.Second)))
}

func TestMarkIgnoresMissingPath(t *testing.T) {
	d, dir := newTestDetector(t, time.Second)

	d.Mark(filepath.Join(dir, "never-existed.wav"))
	assert.Zero(t, d.PendingCount())
}

func TestClaimIsExactlyOnceUnderConcurrency(t *testing.T) {
	d, dir := newTestDetector(t, time.Millisecond)

	const n = 50
	paths := make([]string, 0, n)
	for i := 0; i < n; i++ {
		paths = append(paths, writeFile(t, dir, fmt.Sprintf("f%03d.wav", i), "x"))
		d.Mark(paths[i])
	}

	extras := make([]string, 0, n)
	for i := 0; i < n; i++ {
		extras = append(extras, writeFile(t, dir, fmt.Sprintf("x%03d.wav", i), "y"))
	}

	future := time.Now().Add(time.Second)

	// Two concurrent claimers plus concurrent new events: every path must
	// be claimed by exactly one claimer, never both.
	var mu sync.Mutex
	seen := make(map[string]int)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, p := range d.Claim(future) {
				mu.Lock()
				seen[p]++
				mu.Unlock()
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for _, p := range extras {
			d.Mark(p) // racing events must not corrupt the claim
		}
	}()
	wg.Wait()

	for _, p := range paths {
		assert.Equalf(t, 1, seen[p], "path %s claimed %d times", p, seen[p])
	}
	for _, p := range extras {
		assert.LessOrEqualf(t, seen[p], 1, "path %s claimed %d times", p, seen[p])
	}
}

func TestClaimOrderIsDeterministic(t *testing.T) {
	d, dir := newTestDetector(t, time.Millisecond)

	pb := writeFile(t, dir, "b.wav", "x")
	pa := writeFile(t, dir, "a.wav", "x")
	d.Mark(pb)
	d.Mark(pa)

	claimed := d.Claim(time.Now().Add(time.Second))
	require.Equal(t, []string{pa, pb}, claimed)
}
