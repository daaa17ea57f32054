package output

import (
	"bytes"
	"fmt"

	"github.com/jamesainslie/fimcheck/pkg/fimcheck/types"
)

// Messages printed by the text formatter and the interactive session.
const (
	ResultsHeader    = "File Integrity Check Results:"
	ResultsRule      = "============================"
	NoChangesMessage = "No changes detected. All files match the baseline."
)

// TextFormatter prints the classic line-per-change report.
type TextFormatter struct{}

// Format writes the formatted report to the buffer.
func (f *TextFormatter) Format(w *bytes.Buffer, r *Report) error {
	for _, e := range r.Skipped {
		fmt.Fprintf(w, "Error reading %s: %s\n", e.Path, e.Error)
	}
	for _, warning := range r.Warnings {
		fmt.Fprintf(w, "Warning: %s\n", warning)
	}

	w.WriteString("\n" + ResultsHeader + "\n")
	w.WriteString(ResultsRule + "\n")

	changes := orderedChanges(r.Changes)
	if len(changes) == 0 {
		w.WriteString(NoChangesMessage + "\n")
		return nil
	}

	for _, c := range changes {
		switch c.kind {
		case types.ChangeAdded:
			fmt.Fprintf(w, "NEW FILE DETECTED: %s\n", c.path)
		case types.ChangeModified:
			fmt.Fprintf(w, "MODIFIED FILE: %s\n", c.path)
			fmt.Fprintf(w, "Old hash: %s\n", c.mod.Old.Digest)
			fmt.Fprintf(w, "New hash: %s\n", c.mod.New.Digest)
		case types.ChangeRemoved:
			fmt.Fprintf(w, "DELETED FILE: %s\n", c.path)
		}
	}
	return nil
}

func init() {
	Register("text", func() Formatter {
		return &TextFormatter{}
	})
}

// Ensure TextFormatter implements Formatter.
var _ Formatter = (*TextFormatter)(nil)
