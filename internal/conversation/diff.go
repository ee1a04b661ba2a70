package conversation

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/bizmatters/agent-builder/code-editor/internal/models"
)

const maxDiffChars = 4000

// attachDiffs fills Diff on update records from the current store content
func attachDiffs(changes []models.ChangeRecord, current func(path string) (string, bool)) {
	for i := range changes {
		if changes[i].Action != models.ChangeActionUpdate {
			continue
		}
		old, ok := current(changes[i].Path)
		if !ok {
			continue
		}
		changes[i].Diff = lineDiff(old, changes[i].Content)
	}
}

// lineDiff renders a line-level diff with +/- prefixes
func lineDiff(before, after string) string {
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	var sb strings.Builder
	for _, d := range diffs {
		prefix := " "
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			prefix = "+"
		case diffmatchpatch.DiffDelete:
			prefix = "-"
		}
		for _, line := range strings.SplitAfter(d.Text, "\n") {
			if line == "" {
				continue
			}
			sb.WriteString(prefix)
			sb.WriteString(line)
			if !strings.HasSuffix(line, "\n") {
				sb.WriteString("\n")
			}
		}
		if sb.Len() > maxDiffChars {
			break
		}
	}

	out := sb.String()
	if len(out) > maxDiffChars {
		cut := strings.LastIndex(out[:maxDiffChars], "\n")
		if cut < 0 {
			cut = 0
		}
		out = out[:cut] + "\n... (diff truncated)"
	}
	return out
}
