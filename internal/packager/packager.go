// Package packager is the terminal pipeline step: it bundles every
// completed item's artifacts into output/, sends the aggregate batch
// notification, preserves failed items' artifacts under failed/, and purges
// the transient stage directories.
package packager

import (
	"archive/zip"
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"

	"github.com/galencky/whisper-stt-project/internal/logger"
	"github.com/galencky/whisper-stt-project/internal/notifier"
	"github.com/galencky/whisper-stt-project/internal/pipeline"
	"github.com/galencky/whisper-stt-project/internal/uploader"
)

// Dirs names every directory the packager touches.
type Dirs struct {
	Inbox       string
	Processed   string
	Transcripts string
	Parsed      string
	Markdown    string
	Uploaded    string
	Output      string
	Failed      string

	// Transient directories whose contents are purged wholesale after
	// packaging. The directories themselves survive. The inbox never
	// belongs here: audio arriving mid-batch sits there unclaimed, and
	// deleting it would lose input no batch has seen. The packager removes
	// inbox leftovers per completed stem instead.
	Transient []string
}

// LinkSource yields the links published during the current batch.
type LinkSource func() []uploader.Link

type Packager struct {
	dirs       Dirs
	docx       bool
	notifier   notifier.Notifier
	links      LinkSource
	runLogPath string
	logger     logger.Logger
}

func New(dirs Dirs, docx bool, n notifier.Notifier, links LinkSource, runLogPath string, log logger.Logger) *Packager {
	return &Packager{
		dirs:       dirs,
		docx:       docx,
		notifier:   n,
		links:      links,
		runLogPath: runLogPath,
		logger:     log,
	}
}

// Finalize implements pipeline.Terminal. The purge at the end runs
// unconditionally once packaging happened, even when some items failed or
// were skipped; failed items' artifacts are moved to failed/ first so a
// mid-pipeline casualty is never silently lost.
func (p *Packager) Finalize(ctx context.Context, rec *pipeline.RunRecord) error {
	for _, stem := range rec.Completed {
		if err := p.Package(ctx, stem); err != nil {
			p.logger.Warn(ctx, "Skipping bundle for %s: %v", stem, err)
			continue
		}
		if p.docx {
			if err := p.renderDocx(ctx, stem); err != nil {
				p.logger.Warn(ctx, "Docx render failed for %s: %v", stem, err)
			}
		}
	}

	var links []uploader.Link
	if p.links != nil {
		links = p.links()
	}
	runLog := p.readRunLog(ctx)
	if p.notifier != nil {
		if err := p.notifier.Notify(ctx, links, runLog); err != nil {
			p.logger.Error(ctx, "Notification failed: %v", err)
		}
	}

	p.preserveFailed(ctx, rec.Failed())
	p.cleanInbox(ctx, rec.Completed)
	p.purge(ctx)
	p.resetRunLog(ctx)
	return nil
}

// Package bundles one completed item's artifacts into output/<stem>.zip.
// The archive is written to a temp file and renamed into place, so a
// re-run overwrites deterministically and a crash never leaves a partial
// archive under the final name.
func (p *Packager) Package(ctx context.Context, stem string) error {
	audio, err := p.findAudio(stem)
	if err != nil {
		return err
	}

	markdown := filepath.Join(p.dirs.Uploaded, stem+".md")
	if _, err := os.Stat(markdown); err != nil {
		markdown = filepath.Join(p.dirs.Markdown, stem+".md")
	}

	entries := []string{
		audio,
		filepath.Join(p.dirs.Transcripts, stem+".txt"),
		filepath.Join(p.dirs.Parsed, stem+"_parsed.txt"),
		markdown,
	}
	for _, path := range entries {
		if _, err := os.Stat(path); err != nil {
			return errors.Wrapf(err, "missing artifact for %s", stem)
		}
	}

	zipPath := filepath.Join(p.dirs.Output, stem+".zip")
	tmpPath := zipPath + ".tmp"
	if err := writeZip(tmpPath, entries); err != nil {
		os.Remove(tmpPath)
		return errors.Wrapf(err, "bundle %s", stem)
	}
	if err := os.Rename(tmpPath, zipPath); err != nil {
		os.Remove(tmpPath)
		return errors.Wrapf(err, "finalize bundle %s", stem)
	}

	p.logger.Info(ctx, "Bundled -> %s", filepath.Base(zipPath))
	return nil
}

func writeZip(path string, entries []string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	zw := zip.NewWriter(f)

	for _, entry := range entries {
		src, err := os.Open(entry)
		if err != nil {
			zw.Close()
			f.Close()
			return err
		}
		w, err := zw.Create(filepath.Base(entry))
		if err == nil {
			_, err = io.Copy(w, src)
		}
		src.Close()
		if err != nil {
			zw.Close()
			f.Close()
			return err
		}
	}

	if err := zw.Close(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// findAudio locates the stem's original audio in processed/.
func (p *Packager) findAudio(stem string) (string, error) {
	entries, err := os.ReadDir(p.dirs.Processed)
	if err != nil {
		return "", errors.Wrap(err, "read processed dir")
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if name[:len(name)-len(filepath.Ext(name))] == stem {
			return filepath.Join(p.dirs.Processed, name), nil
		}
	}
	return "", errors.Newf("audio for %s not found in processed", stem)
}

// preserveFailed moves every artifact belonging to a failed stem into
// failed/ before the purge discards the stage directories. The inbox is
// scanned too: an item that failed in transcription still has its audio
// there.
func (p *Packager) preserveFailed(ctx context.Context, stems []string) {
	scan := append([]string{p.dirs.Inbox}, p.dirs.Transient...)
	for _, stem := range stems {
		moved := 0
		for _, dir := range scan {
			entries, err := os.ReadDir(dir)
			if err != nil {
				continue
			}
			for _, e := range entries {
				if e.IsDir() {
					continue
				}
				name := e.Name()
				base := name[:len(name)-len(filepath.Ext(name))]
				if base != stem && base != stem+"_parsed" {
					continue
				}
				src := filepath.Join(dir, name)
				dst := filepath.Join(p.dirs.Failed, name)
				if err := os.Rename(src, dst); err != nil {
					p.logger.Warn(ctx, "Failed to preserve %s: %v", src, err)
					continue
				}
				moved++
			}
		}
		if moved > 0 {
			p.logger.Info(ctx, "Preserved %d artifact(s) for failed item %s in failed/", moved, stem)
		}
	}
}

// cleanInbox removes inbox leftovers belonging to completed stems, such
// as a dropped duplicate extension of a claimed file. Anything else in the
// inbox is audio the detector still tracks (or will on its next event) and
// must survive the batch untouched.
func (p *Packager) cleanInbox(ctx context.Context, stems []string) {
	if p.dirs.Inbox == "" || len(stems) == 0 {
		return
	}
	entries, err := os.ReadDir(p.dirs.Inbox)
	if err != nil {
		p.logger.Warn(ctx, "Cannot read inbox for cleanup: %v", err)
		return
	}
	completed := make(map[string]struct{}, len(stems))
	for _, stem := range stems {
		completed[stem] = struct{}{}
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		stem := name[:len(name)-len(filepath.Ext(name))]
		if _, ok := completed[stem]; !ok {
			continue
		}
		path := filepath.Join(p.dirs.Inbox, name)
		if err := os.Remove(path); err != nil {
			p.logger.Warn(ctx, "Cannot remove %s: %v", path, err)
		}
	}
}

// purge empties the transient stage directories, keeping the directories
// themselves. Inbox, output, failed, models and logs are never touched.
func (p *Packager) purge(ctx context.Context) {
	for _, dir := range p.dirs.Transient {
		entries, err := os.ReadDir(dir)
		if err != nil {
			p.logger.Warn(ctx, "Purge: cannot read %s: %v", dir, err)
			continue
		}
		for _, e := range entries {
			path := filepath.Join(dir, e.Name())
			if err := os.RemoveAll(path); err != nil {
				p.logger.Warn(ctx, "Purge: cannot remove %s: %v", path, err)
			}
		}
	}
	p.logger.Info(ctx, "Transient stage directories purged")
}

func (p *Packager) readRunLog(ctx context.Context) string {
	if p.runLogPath == "" {
		return ""
	}
	data, err := os.ReadFile(p.runLogPath)
	if err != nil {
		return ""
	}
	return string(data)
}

func (p *Packager) resetRunLog(ctx context.Context) {
	if p.runLogPath == "" {
		return
	}
	if err := os.Truncate(p.runLogPath, 0); err != nil && !os.IsNotExist(err) {
		p.logger.Warn(ctx, "Failed to reset run log: %v", err)
	}
}
