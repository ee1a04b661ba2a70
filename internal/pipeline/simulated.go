package pipeline

import (
	"context"
	"fmt"
	"html"
	"regexp"
	"strings"
	"time"

	"github.com/bizmatters/agent-builder/code-editor/internal/analysis"
	"github.com/bizmatters/agent-builder/code-editor/internal/models"
)

var headClosePattern = regexp.MustCompile(`(?i)</head\s*>`)

// DefaultSteps is the step list shown by the simulated build
var DefaultSteps = []string{"install", "build", "start"}

// SimulatedPipeline walks a fixed list of fake steps and renders static HTML
type SimulatedPipeline struct {
	steps     []string
	stepDelay time.Duration
}

// NewSimulated creates the simulated strategy. An empty step list uses DefaultSteps.
func NewSimulated(steps []string, stepDelay time.Duration) *SimulatedPipeline {
	if len(steps) == 0 {
		steps = DefaultSteps
	}
	return &SimulatedPipeline{steps: append([]string(nil), steps...), stepDelay: stepDelay}
}

// Mode implements Strategy
func (s *SimulatedPipeline) Mode() string {
	return ModeSimulated
}

// Run implements Strategy
func (s *SimulatedPipeline) Run(ctx context.Context, req Request, onLog LogFunc) (*PreviewResult, error) {
	started := time.Now()
	for i, step := range s.steps {
		emit(onLog, models.LogLevelInfo, ModeSimulated, fmt.Sprintf("[%d/%d] %s", i+1, len(s.steps), step))
		if err := wait(ctx, s.stepDelay); err != nil {
			emit(onLog, models.LogLevelError, ModeSimulated, fmt.Sprintf("%s interrupted: %v", step, err))
			return nil, fmt.Errorf("failed to run step %s: %w", step, err)
		}
	}
	emit(onLog, models.LogLevelInfo, ModeSimulated, "Preview ready")

	return &PreviewResult{
		Mode:     ModeSimulated,
		Steps:    append([]string(nil), s.steps...),
		HTML:     RenderHTML(req.Files),
		Duration: time.Since(started),
	}, nil
}

// RenderHTML returns index.html with every stylesheet inlined, or a generated
// overview page when the project has no index.html.
func RenderHTML(files FileSource) string {
	var styles strings.Builder
	for _, p := range files.Keys() {
		if !strings.HasSuffix(p, ".css") {
			continue
		}
		rec, _ := files.Get(p)
		fmt.Fprintf(&styles, "<style data-path=\"%s\">\n%s\n</style>\n", html.EscapeString(p), rec.Content)
	}

	if index, ok := files.Get("index.html"); ok {
		page := index.Content
		if styles.Len() == 0 {
			return page
		}
		if loc := headClosePattern.FindStringIndex(page); loc != nil {
			return page[:loc[0]] + styles.String() + page[loc[0]:]
		}
		return styles.String() + page
	}

	snap := analysis.Analyze(files)
	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n<title>Project preview</title>\n")
	b.WriteString(styles.String())
	b.WriteString("</head>\n<body>\n")
	fmt.Fprintf(&b, "<h1>%s project</h1>\n", html.EscapeString(snap.Framework))
	fmt.Fprintf(&b, "<p>%d files, %d lines</p>\n<ul>\n", snap.TotalFiles, snap.TotalLines)
	for _, p := range files.Keys() {
		fmt.Fprintf(&b, "<li>%s</li>\n", html.EscapeString(p))
	}
	b.WriteString("</ul>\n</body>\n</html>\n")
	return b.String()
}
