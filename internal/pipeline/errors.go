package pipeline

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// ErrSkipped marks a stage invocation that could not run because optional
// configuration (publish token, mail credentials) is absent. A skipped item
// stays alive and still reaches packaging.
var ErrSkipped = errors.New("skipped: configuration missing")

// ItemFailure records one item's terminal failure: the stage it died in and
// the cause. The item advances no further in this run.
type ItemFailure struct {
	Stem  string
	Stage string
	Err   error
}

func (f ItemFailure) Error() string {
	return fmt.Sprintf("%s failed at stage %s: %v", f.Stem, f.Stage, f.Err)
}

func (f ItemFailure) Unwrap() error {
	return f.Err
}
