package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Paths   PathsConfig   `yaml:"paths"`
	Watcher WatcherConfig `yaml:"watcher"`
	Whisper WhisperConfig `yaml:"whisper"`
	Gemini  GeminiConfig  `yaml:"gemini"`
	HackMD  HackMDConfig  `yaml:"hackmd"`
	Email   EmailConfig   `yaml:"email"`
	Output  OutputConfig  `yaml:"output"`
	Logging LoggingConfig `yaml:"logging"`
}

type PathsConfig struct {
	Base        string `yaml:"base"`
	Inbox       string `yaml:"inbox"`
	Processed   string `yaml:"processed"`
	Transcripts string `yaml:"transcripts"`
	Parsed      string `yaml:"parsed"`
	Markdown    string `yaml:"markdown"`
	Uploaded    string `yaml:"uploaded"`
	Output      string `yaml:"output"`
	Failed      string `yaml:"failed"`
	Models      string `yaml:"models"`
	Logs        string `yaml:"logs"`
}

type WatcherConfig struct {
	StabiliseSec    int      `yaml:"stabilise_sec"`
	PollIntervalSec int      `yaml:"poll_interval_sec"`
	AudioExtensions []string `yaml:"audio_extensions"`
}

type WhisperConfig struct {
	BinaryPath string `yaml:"binary_path"`
	ModelPath  string `yaml:"model_path"`
	Language   string `yaml:"language"` // empty = autodetect
	Threads    int    `yaml:"threads"`
}

type GeminiConfig struct {
	APIKeys    []string `yaml:"api_keys"`
	Model      string   `yaml:"model"`
	PromptPath string   `yaml:"prompt_path"`
}

type HackMDConfig struct {
	Token  string `yaml:"token"`
	APIURL string `yaml:"api_url"`
}

type EmailConfig struct {
	User string `yaml:"user"`
	Pass string `yaml:"pass"`
	To   string `yaml:"to"`
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type OutputConfig struct {
	Docx bool `yaml:"docx"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Load reads the YAML config at path, applies environment overrides and
// fills in defaults. An empty path skips the file entirely: the config is
// then built from environment variables and defaults alone.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv lets deployment environments override file settings without
// touching the YAML.
func (c *Config) applyEnv() {
	if v := os.Getenv("BASE_DIR"); v != "" {
		c.Paths.Base = v
	}
	for _, dir := range []struct {
		env    string
		target *string
	}{
		{"INBOX_DIR", &c.Paths.Inbox},
		{"PROCESSED_DIR", &c.Paths.Processed},
		{"TRANSCRIPTS_DIR", &c.Paths.Transcripts},
		{"PARSED_DIR", &c.Paths.Parsed},
		{"MARKDOWN_DIR", &c.Paths.Markdown},
		{"UPLOADED_DIR", &c.Paths.Uploaded},
		{"OUTPUT_DIR", &c.Paths.Output},
		{"MODEL_CACHE_DIR", &c.Paths.Models},
	} {
		if v := os.Getenv(dir.env); v != "" {
			*dir.target = v
		}
	}
	if v := os.Getenv("STABILISE_SEC"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Watcher.StabiliseSec = n
		}
	}
	if v, ok := os.LookupEnv("PREFERRED_LANG"); ok {
		c.Whisper.Language = v
	}
	if v := os.Getenv("WHISPER_BIN"); v != "" {
		c.Whisper.BinaryPath = v
	}
	if v := os.Getenv("WHISPER_MODEL"); v != "" {
		c.Whisper.ModelPath = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		c.Gemini.APIKeys = strings.Split(v, ",")
	}
	if v := os.Getenv("HACKMD_TOKEN"); v != "" {
		c.HackMD.Token = v
	}
	if v := os.Getenv("EMAIL_USER"); v != "" {
		c.Email.User = v
	}
	if v := os.Getenv("EMAIL_PASS"); v != "" {
		c.Email.Pass = v
	}
	if v := os.Getenv("EMAIL_TO"); v != "" {
		c.Email.To = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
}

func (c *Config) Validate() error {
	if c.Paths.Base == "" {
		c.Paths.Base = "data"
	}

	sub := func(current, name string) string {
		if current != "" {
			return current
		}
		return filepath.Join(c.Paths.Base, name)
	}
	c.Paths.Inbox = sub(c.Paths.Inbox, "inbox")
	c.Paths.Processed = sub(c.Paths.Processed, "processed")
	c.Paths.Transcripts = sub(c.Paths.Transcripts, "transcripts")
	c.Paths.Parsed = sub(c.Paths.Parsed, "parsed")
	c.Paths.Markdown = sub(c.Paths.Markdown, "markdown")
	c.Paths.Uploaded = sub(c.Paths.Uploaded, "uploaded")
	c.Paths.Output = sub(c.Paths.Output, "output")
	c.Paths.Failed = sub(c.Paths.Failed, "failed")
	c.Paths.Models = sub(c.Paths.Models, "models")
	c.Paths.Logs = sub(c.Paths.Logs, "logs")

	if c.Watcher.StabiliseSec <= 0 {
		c.Watcher.StabiliseSec = 15
	}
	if c.Watcher.PollIntervalSec <= 0 {
		c.Watcher.PollIntervalSec = 1
	}
	if c.Watcher.PollIntervalSec >= c.Watcher.StabiliseSec {
		return fmt.Errorf("watcher.poll_interval_sec (%d) must be shorter than watcher.stabilise_sec (%d)",
			c.Watcher.PollIntervalSec, c.Watcher.StabiliseSec)
	}
	if len(c.Watcher.AudioExtensions) == 0 {
		c.Watcher.AudioExtensions = []string{".wav", ".mp3", ".m4a", ".flac", ".ogg", ".webm"}
	}
	for i, ext := range c.Watcher.AudioExtensions {
		ext = strings.ToLower(ext)
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		c.Watcher.AudioExtensions[i] = ext
	}

	if c.Whisper.BinaryPath == "" {
		c.Whisper.BinaryPath = "whisper-cli"
	}
	if c.Whisper.ModelPath == "" {
		c.Whisper.ModelPath = filepath.Join(c.Paths.Models, "ggml-large-v3.bin")
	}
	if c.Whisper.Threads <= 0 {
		c.Whisper.Threads = 4
	}

	if c.Gemini.Model == "" {
		c.Gemini.Model = "gemini-2.5-flash"
	}
	if c.HackMD.APIURL == "" {
		c.HackMD.APIURL = "https://api.hackmd.io/v1/notes"
	}
	if c.Email.Host == "" {
		c.Email.Host = "smtp.gmail.com"
	}
	if c.Email.Port == 0 {
		c.Email.Port = 465
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}

	return nil
}

// StabiliseInterval is the quiet interval a file must survive without a
// size change before it is considered stable.
func (c *Config) StabiliseInterval() time.Duration {
	return time.Duration(c.Watcher.StabiliseSec) * time.Second
}

// PollInterval is the batch assembler's claim tick.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Watcher.PollIntervalSec) * time.Second
}

// RunLogPath is the append-mode batch log consumed by the notification step
// and truncated after packaging.
func (c *Config) RunLogPath() string {
	return filepath.Join(c.Paths.Logs, "run.log")
}

// TransientDirs are the stage directories purged wholesale after
// packaging. The inbox is not among them: it may hold audio that arrived
// mid-batch and has not been claimed yet, so the packager cleans it per
// stem instead. Output, failed, models and logs are also excluded.
func (c *Config) TransientDirs() []string {
	return []string{
		c.Paths.Processed,
		c.Paths.Transcripts,
		c.Paths.Parsed,
		c.Paths.Markdown,
		c.Paths.Uploaded,
	}
}

// AllDirs lists every directory the pipeline needs at startup.
func (c *Config) AllDirs() []string {
	return []string{
		c.Paths.Inbox,
		c.Paths.Processed,
		c.Paths.Transcripts,
		c.Paths.Parsed,
		c.Paths.Markdown,
		c.Paths.Uploaded,
		c.Paths.Output,
		c.Paths.Failed,
		c.Paths.Models,
		c.Paths.Logs,
	}
}

// EnsureDirs creates every required directory if missing.
func (c *Config) EnsureDirs() error {
	for _, dir := range c.AllDirs() {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// IsAudioPath reports whether path carries one of the configured audio
// extensions.
func (c *Config) IsAudioPath(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, want := range c.Watcher.AudioExtensions {
		if ext == want {
			return true
		}
	}
	return false
}
