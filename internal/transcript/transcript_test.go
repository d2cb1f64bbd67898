package transcript

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestFormatTimestamp(t *testing.T) {
	tests := []struct {
		name string
		d    time.Duration
		want string
	}{
		{"zero", 0, "00:00:00.000"},
		{"sub-second", 579 * time.Millisecond, "00:00:00.579"},
		{"minutes", 5*time.Minute + 1*time.Second, "00:05:01.000"},
		{"hours", 2*time.Hour + 3*time.Minute + 4*time.Second + 5*time.Millisecond, "02:03:04.005"},
		{"negative clamps", -time.Second, "00:00:00.000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatTimestamp(tt.d); got != tt.want {
				t.Errorf("FormatTimestamp(%v) = %q, want %q", tt.d, got, tt.want)
			}
		})
	}
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		name    string
		ts      string
		want    time.Duration
		wantErr bool
	}{
		{"zero", "00:00:00.000", 0, false},
		{"millis", "00:00:00.579", 579 * time.Millisecond, false},
		{"full", "01:02:03.004", time.Hour + 2*time.Minute + 3*time.Second + 4*time.Millisecond, false},
		{"no millis", "00:00:01", 0, true},
		{"garbage", "abc", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTimestamp(tt.ts)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseTimestamp(%q) error = %v, wantErr %v", tt.ts, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseTimestamp(%q) = %v, want %v", tt.ts, got, tt.want)
			}
		})
	}
}

func TestWriteParseRoundTrip(t *testing.T) {
	segments := []Segment{
		{Start: 579 * time.Millisecond, End: 1399 * time.Millisecond, Text: "hello there"},
		{Start: 2 * time.Second, End: 4 * time.Second, Text: "second segment"},
		{Start: 6*time.Minute + 12*time.Second, End: 6*time.Minute + 15*time.Second, Text: "later on"},
	}

	var buf bytes.Buffer
	if err := Write(&buf, segments); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != len(segments) {
		t.Fatalf("wrote %d lines, want %d", len(lines), len(segments))
	}
	if lines[0] != "[00:00:00.579 → 00:00:01.399] hello there" {
		t.Errorf("unexpected first line: %q", lines[0])
	}

	parsed, err := Parse(&buf)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(parsed) != len(segments) {
		t.Fatalf("parsed %d segments, want %d", len(parsed), len(segments))
	}
	for i := range segments {
		if parsed[i] != segments[i] {
			t.Errorf("segment %d = %+v, want %+v", i, parsed[i], segments[i])
		}
	}
}

func TestParseIgnoresNonMatchingLines(t *testing.T) {
	in := strings.NewReader(
		"some header\n" +
			"[00:00:01.000 → 00:00:02.000] real line\n" +
			"\n" +
			"not a timestamp\n",
	)
	segments, err := Parse(in)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(segments) != 1 {
		t.Fatalf("parsed %d segments, want 1", len(segments))
	}
	if segments[0].Text != "real line" {
		t.Errorf("Text = %q, want %q", segments[0].Text, "real line")
	}
}
