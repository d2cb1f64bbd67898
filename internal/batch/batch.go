package batch

import (
	"path/filepath"
	"strings"
	"time"
)

// Batch is the set of items claimed together at one scheduling instant.
// Items are identified by stem (base filename without extension) across
// every stage; Paths keeps the original audio path per stem.
type Batch struct {
	Stems     []string
	Paths     map[string]string
	ClaimedAt time.Time
}

// Stem derives the cross-stage item identifier from a path.
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Size is the number of items in the batch.
func (b *Batch) Size() int {
	return len(b.Stems)
}
