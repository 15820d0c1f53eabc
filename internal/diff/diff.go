// Package diff produces compact line-level change summaries for
// notifications. It never participates in change detection; fingerprints
// decide that.
package diff

import (
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Stats counts line-level insertions and deletions between two bodies.
type Stats struct {
	LinesAdded   int
	LinesDeleted int
}

// Summarize computes line diff stats between old and new content.
func Summarize(oldContent, newContent []byte) Stats {
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(string(oldContent), string(newContent))
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	var st Stats
	for _, d := range diffs {
		n := countLines(d.Text)
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			st.LinesAdded += n
		case diffmatchpatch.DiffDelete:
			st.LinesDeleted += n
		}
	}
	return st
}

// String renders the stats the way they appear in a notification, e.g. "+3/-1 lines".
func (s Stats) String() string {
	return fmt.Sprintf("+%d/-%d lines", s.LinesAdded, s.LinesDeleted)
}

func (s Stats) IsZero() bool { return s.LinesAdded == 0 && s.LinesDeleted == 0 }

func countLines(text string) int {
	if text == "" {
		return 0
	}
	n := strings.Count(text, "\n")
	if !strings.HasSuffix(text, "\n") {
		n++
	}
	return n
}
