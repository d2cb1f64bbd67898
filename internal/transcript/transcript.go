package transcript

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

// Segment is one timed span of recognized speech.
type Segment struct {
	Start time.Duration
	End   time.Duration
	Text  string
}

// lineRE matches transcript lines like:
// [00:00:00.579 → 00:00:01.399] some text
var lineRE = regexp.MustCompile(
	`^\[(\d{2}:\d{2}:\d{2}\.\d{3})\s*→\s*(\d{2}:\d{2}:\d{2}\.\d{3})\]\s*(.*)$`,
)

// FormatTimestamp renders a duration as HH:MM:SS.mmm.
func FormatTimestamp(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	ms := int64(d/time.Millisecond) % 1000
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	return fmt.Sprintf("%02d:%02d:%02d.%03d", h, m, s, ms)
}

// ParseTimestamp parses HH:MM:SS.mmm back into a duration.
func ParseTimestamp(ts string) (time.Duration, error) {
	main, msPart, ok := strings.Cut(ts, ".")
	if !ok {
		return 0, errors.Newf("timestamp %q missing millisecond part", ts)
	}
	parts := strings.Split(main, ":")
	if len(parts) != 3 {
		return 0, errors.Newf("timestamp %q is not HH:MM:SS.mmm", ts)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, errors.Wrapf(err, "timestamp %q hours", ts)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, errors.Wrapf(err, "timestamp %q minutes", ts)
	}
	s, err := strconv.Atoi(parts[2])
	if err != nil {
		return 0, errors.Wrapf(err, "timestamp %q seconds", ts)
	}
	ms, err := strconv.Atoi(msPart)
	if err != nil {
		return 0, errors.Wrapf(err, "timestamp %q milliseconds", ts)
	}
	return time.Duration(h)*time.Hour +
		time.Duration(m)*time.Minute +
		time.Duration(s)*time.Second +
		time.Duration(ms)*time.Millisecond, nil
}

// Write renders segments one per line in the durable transcript format.
func Write(w io.Writer, segments []Segment) error {
	bw := bufio.NewWriter(w)
	for _, seg := range segments {
		_, err := fmt.Fprintf(bw, "[%s → %s] %s\n",
			FormatTimestamp(seg.Start),
			FormatTimestamp(seg.End),
			strings.TrimSpace(seg.Text),
		)
		if err != nil {
			return errors.Wrap(err, "write segment")
		}
	}
	return bw.Flush()
}

// WriteFile writes segments to path, creating or truncating it.
func WriteFile(path string, segments []Segment) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "create transcript")
	}
	if err := Write(f, segments); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Parse reads transcript lines back into segments. Lines that do not match
// the timestamped format are ignored, matching the reformatter's tolerance
// for headers or junk lines.
func Parse(r io.Reader) ([]Segment, error) {
	var segments []Segment
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		m := lineRE.FindStringSubmatch(sc.Text())
		if m == nil {
			continue
		}
		start, err := ParseTimestamp(m[1])
		if err != nil {
			return nil, err
		}
		end, err := ParseTimestamp(m[2])
		if err != nil {
			return nil, err
		}
		segments = append(segments, Segment{
			Start: start,
			End:   end,
			Text:  strings.TrimSpace(m[3]),
		})
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(err, "scan transcript")
	}
	return segments, nil
}

// ParseFile reads and parses the transcript at path.
func ParseFile(path string) ([]Segment, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open transcript")
	}
	defer f.Close()
	return Parse(f)
}

// StartString is the marker form of a segment's start time, as used by the
// parsed-output block headers.
func (s Segment) StartString() string {
	return FormatTimestamp(s.Start)
}
