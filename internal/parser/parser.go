// Package parser turns raw model output into file change records.
//
// A response carries its edits between FILE_CHANGES_START and FILE_CHANGES_END
// as fenced blocks whose info string is "filepath:<path>". Responses without
// the start marker are scanned with progressively looser fence patterns.
package parser

import (
	"regexp"
	"strings"

	"github.com/bizmatters/agent-builder/code-editor/internal/models"
)

// Protocol markers
const (
	StartMarker = "FILE_CHANGES_START"
	EndMarker   = "FILE_CHANGES_END"
)

const maxFallbackPathLength = 100

var permissionPhrases = []string{
	"Should I proceed",
	"Shall I",
	"Would you like me to",
}

var markerBlockPattern = regexp.MustCompile("(?s)```filepath:([^\n]*)\n(.*?)```")

// Checked in order; the first pattern with an accepted candidate wins.
var fallbackPatterns = []*regexp.Regexp{
	regexp.MustCompile("(?s)```filepath:([^\n]+)\n(.*?)```"),
	regexp.MustCompile("(?s)```[A-Za-z0-9_+-]*:([^\n]+)\n(.*?)```"),
	regexp.MustCompile("(?s)```([^\n`]+)\n(.*?)```"),
}

// Result is the structured form of a model response
type Result struct {
	Explanation     string                `json:"explanation"`
	Changes         []models.ChangeRecord `json:"changes"`
	HasChanges      bool                  `json:"has_changes"`
	NeedsPermission bool                  `json:"needs_permission"`
}

// Parse extracts the explanation and file changes from raw. Paths found in
// existing are labelled as updates, all others as creates.
func Parse(raw string, existing map[string]struct{}) Result {
	var (
		explanation string
		changes     []models.ChangeRecord
	)

	if start := strings.Index(raw, StartMarker); start >= 0 {
		explanation = strings.TrimSpace(raw[:start])

		section := raw[start+len(StartMarker):]
		if end := strings.Index(section, EndMarker); end >= 0 {
			section = section[:end]
		}

		for _, m := range markerBlockPattern.FindAllStringSubmatch(section, -1) {
			changes = append(changes, newChange(m[1], m[2], existing))
		}
	} else {
		explanation = strings.TrimSpace(raw)
		changes = parseFallback(raw, existing)
	}

	return Result{
		Explanation:     explanation,
		Changes:         changes,
		HasChanges:      len(changes) > 0,
		NeedsPermission: NeedsPermission(raw),
	}
}

// NeedsPermission reports whether the text asks the user before applying changes
func NeedsPermission(raw string) bool {
	for _, phrase := range permissionPhrases {
		if strings.Contains(raw, phrase) {
			return true
		}
	}
	return false
}

func parseFallback(raw string, existing map[string]struct{}) []models.ChangeRecord {
	for _, pattern := range fallbackPatterns {
		var changes []models.ChangeRecord
		for _, m := range pattern.FindAllStringSubmatch(raw, -1) {
			path := strings.TrimSpace(m[1])
			if !looksLikeFilename(path) {
				continue
			}
			changes = append(changes, newChange(path, m[2], existing))
		}
		if len(changes) > 0 {
			return changes
		}
	}
	return nil
}

func looksLikeFilename(path string) bool {
	return path != "" &&
		!strings.Contains(path, " ") &&
		len(path) <= maxFallbackPathLength &&
		strings.Contains(path, ".")
}

func newChange(path, content string, existing map[string]struct{}) models.ChangeRecord {
	path = strings.TrimSpace(path)
	action := models.ChangeActionCreate
	if _, ok := existing[path]; ok {
		action = models.ChangeActionUpdate
	}
	return models.ChangeRecord{
		Path:    path,
		Content: strings.TrimSpace(content),
		Action:  action,
	}
}

// RenderMarkerProtocol encodes changes in the marker protocol, the inverse of Parse
func RenderMarkerProtocol(explanation string, changes []models.ChangeRecord) string {
	var b strings.Builder
	if explanation != "" {
		b.WriteString(explanation)
		b.WriteString("\n")
	}
	b.WriteString(StartMarker)
	b.WriteString("\n")
	for _, c := range changes {
		b.WriteString("```filepath:")
		b.WriteString(c.Path)
		b.WriteString("\n")
		b.WriteString(c.Content)
		b.WriteString("\n```\n")
	}
	b.WriteString(EndMarker)
	return b.String()
}
