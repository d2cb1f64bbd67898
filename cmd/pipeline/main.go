package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/galencky/whisper-stt-project/internal/batch"
	"github.com/galencky/whisper-stt-project/internal/config"
	"github.com/galencky/whisper-stt-project/internal/logger"
	"github.com/galencky/whisper-stt-project/internal/notifier"
	"github.com/galencky/whisper-stt-project/internal/packager"
	"github.com/galencky/whisper-stt-project/internal/parser"
	"github.com/galencky/whisper-stt-project/internal/pipeline"
	"github.com/galencky/whisper-stt-project/internal/summarizer"
	"github.com/galencky/whisper-stt-project/internal/transcriber"
	"github.com/galencky/whisper-stt-project/internal/uploader"
	"github.com/galencky/whisper-stt-project/internal/watcher"
	"github.com/galencky/whisper-stt-project/pkg/executor"
)

var cfgPath string

func main() {
	root := &cobra.Command{
		Use:           "whisper-stt",
		Short:         "Watched-inbox audio transcription pipeline",
		Long:          "Watches an inbox for audio files, transcribes them with whisper.cpp,\nreformats and summarizes the transcripts, publishes the summaries to\nHackMD and emails the result links.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(cmd.Context())
		},
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "",
		"path to YAML config file (default: environment variables only)")

	root.AddCommand(
		stageCmd("transcribe", "Transcribe pending inbox audio and exit"),
		stageCmd("parse", "Reformat pending transcripts and exit"),
		stageCmd("summarize", "Summarize pending parsed transcripts and exit"),
		allCmd(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// stageCmd builds a one-shot subcommand running a single pipeline stage
// over whatever its input directory currently contains.
func stageCmd(name, short string) *cobra.Command {
	return &cobra.Command{
		Use:   name,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOneShot(cmd.Context(), func(ctx context.Context, coord *pipeline.Coordinator) (*pipeline.RunRecord, error) {
				return coord.RunStage(ctx, name)
			})
		},
	}
}

func allCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "all",
		Short: "Run the full chain once over the current inbox and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOneShot(cmd.Context(), func(ctx context.Context, coord *pipeline.Coordinator) (*pipeline.RunRecord, error) {
				return coord.RunAll(ctx)
			})
		},
	}
}

// app is the fully wired pipeline. Every stage and the detector share a
// single config and logger.
type app struct {
	cfg   *config.Config
	log   logger.Logger
	coord *pipeline.Coordinator
}

func setup(ctx context.Context) (*app, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.EnsureDirs(); err != nil {
		return nil, err
	}

	log, err := logger.New(cfg.Logging.Level, cfg.RunLogPath())
	if err != nil {
		return nil, err
	}

	coord, err := buildCoordinator(cfg, log)
	if err != nil {
		log.Sync()
		return nil, err
	}
	return &app{cfg: cfg, log: log, coord: coord}, nil
}

// buildCoordinator wires the four ordered stages and the packaging
// terminal. The summarizer is constructed only when Gemini keys exist;
// its stage probe rejects a daemon or full run without them, while the
// transcribe and parse one-shots stay usable.
func buildCoordinator(cfg *config.Config, log logger.Logger) (*pipeline.Coordinator, error) {
	trans := transcriber.New(transcriber.Options{
		BinaryPath: cfg.Whisper.BinaryPath,
		ModelPath:  cfg.Whisper.ModelPath,
		Language:   cfg.Whisper.Language,
		Threads:    cfg.Whisper.Threads,
	}, executor.New(), log)
	transcribeStage := transcriber.NewStage(trans,
		cfg.Paths.Inbox, cfg.Paths.Transcripts, cfg.Paths.Processed,
		cfg.Watcher.AudioExtensions, log)

	parseStage := parser.NewStage(cfg.Paths.Transcripts, cfg.Paths.Parsed, log)

	var summ summarizer.Summarizer
	if len(cfg.Gemini.APIKeys) > 0 {
		var err error
		summ, err = summarizer.New(summarizer.Options{
			APIKeys:    cfg.Gemini.APIKeys,
			Model:      cfg.Gemini.Model,
			PromptPath: cfg.Gemini.PromptPath,
		}, log)
		if err != nil {
			return nil, errors.Wrap(err, "init summarizer")
		}
	}
	summarizeStage := summarizer.NewStage(summ, cfg.Paths.Parsed, cfg.Paths.Markdown, log)

	publisher := uploader.NewHackMD(cfg.HackMD.Token, cfg.HackMD.APIURL, log)
	uploadStage := uploader.NewStage(publisher, cfg.HackMD.Token != "",
		cfg.Paths.Markdown, cfg.Paths.Uploaded, log)

	notif := notifier.New(notifier.Options{
		User: cfg.Email.User,
		Pass: cfg.Email.Pass,
		To:   cfg.Email.To,
		Host: cfg.Email.Host,
		Port: cfg.Email.Port,
	}, log)

	pack := packager.New(packager.Dirs{
		Inbox:       cfg.Paths.Inbox,
		Processed:   cfg.Paths.Processed,
		Transcripts: cfg.Paths.Transcripts,
		Parsed:      cfg.Paths.Parsed,
		Markdown:    cfg.Paths.Markdown,
		Uploaded:    cfg.Paths.Uploaded,
		Output:      cfg.Paths.Output,
		Failed:      cfg.Paths.Failed,
		Transient:   cfg.TransientDirs(),
	}, cfg.Output.Docx, notif, uploadStage.TakeLinks, cfg.RunLogPath(), log)

	stages := []pipeline.Stage{transcribeStage, parseStage, summarizeStage, uploadStage}
	return pipeline.NewCoordinator(stages, pack, log), nil
}

// runDaemon watches the inbox until interrupted. The detector and the
// batch assembler run concurrently; the assembler blocks on the main
// goroutine so a shutdown signal drains the in-flight batch before exit.
func runDaemon(ctx context.Context) error {
	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.log.Sync()

	a.log.Info(ctx, "========================================")
	a.log.Info(ctx, "Whisper STT Pipeline")
	a.log.Info(ctx, "========================================")
	a.log.Info(ctx, "Inbox: %s", a.cfg.Paths.Inbox)
	a.log.Info(ctx, "Output: %s", a.cfg.Paths.Output)
	a.log.Info(ctx, "Quiet interval: %s, poll: %s", a.cfg.StabiliseInterval(), a.cfg.PollInterval())

	if err := a.coord.Probe(ctx); err != nil {
		return errors.Wrap(err, "startup probe")
	}

	det, err := watcherFor(a.cfg, a.log)
	if err != nil {
		return err
	}
	defer det.Stop()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		if err := det.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			a.log.Error(ctx, "Watcher stopped: %v", err)
			cancel()
		}
	}()

	asm := batch.NewAssembler(det, a.cfg.PollInterval(), func(ctx context.Context, b *batch.Batch) error {
		_, err := a.coord.Run(ctx, b.Stems)
		return err
	}, a.log)

	a.log.Info(ctx, "Pipeline ready - press Ctrl+C to stop")
	if err := asm.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	a.log.Info(ctx, "Pipeline stopped")
	return nil
}

// runOneShot wraps the single-pass subcommands: wire everything, invoke,
// report, exit non-zero when any item failed.
func runOneShot(ctx context.Context, invoke func(context.Context, *pipeline.Coordinator) (*pipeline.RunRecord, error)) error {
	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.log.Sync()

	rec, err := invoke(ctx, a.coord)
	if err != nil {
		return err
	}

	a.log.Info(ctx, "Done: %d item(s) completed", len(rec.Completed))
	if len(rec.Failures) > 0 {
		return errors.Newf("%d item(s) failed", len(rec.Failures))
	}
	return nil
}

func watcherFor(cfg *config.Config, log logger.Logger) (watcher.Detector, error) {
	return watcher.New(watcher.Options{
		InboxDir:      cfg.Paths.Inbox,
		QuietInterval: cfg.StabiliseInterval(),
		Extensions:    cfg.Watcher.AudioExtensions,
	}, log)
}
