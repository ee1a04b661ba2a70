package analysis

import (
	"sync"

	"github.com/bizmatters/agent-builder/code-editor/internal/models"
)

// Default selection limits
const (
	DefaultMaxFiles = 12
	DefaultMaxChars = 1500
)

// TruncationMarker is appended to file content cut to the character budget
const TruncationMarker = "\n... (truncated)"

// FileSource is the read side of a project file store
type FileSource interface {
	Get(path string) (models.FileRecord, bool)
	Keys() []string
}

type fingerprinter interface {
	Fingerprint() uint64
}

// Builder derives analysis snapshots and prompt context from a file store
type Builder struct {
	maxFiles int
	maxChars int

	mu       sync.Mutex
	lastKey  uint64
	lastSnap *models.AnalysisSnapshot
}

// NewBuilder creates a builder. Non-positive limits fall back to the defaults.
func NewBuilder(maxFiles, maxChars int) *Builder {
	if maxFiles <= 0 {
		maxFiles = DefaultMaxFiles
	}
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	return &Builder{maxFiles: maxFiles, maxChars: maxChars}
}

// Analyze returns the snapshot for files, reusing the previous one when the
// source reports an unchanged fingerprint.
func (b *Builder) Analyze(files FileSource) models.AnalysisSnapshot {
	fp, ok := files.(fingerprinter)
	if !ok {
		return Analyze(files)
	}

	key := fp.Fingerprint()
	b.mu.Lock()
	if b.lastSnap != nil && b.lastKey == key {
		snap := *b.lastSnap
		b.mu.Unlock()
		return snap
	}
	b.mu.Unlock()

	snap := Analyze(files)

	b.mu.Lock()
	b.lastKey = key
	b.lastSnap = &snap
	b.mu.Unlock()
	return snap
}

// SelectRelevantFiles applies the builder's limits; maxFiles <= 0 uses the builder default
func (b *Builder) SelectRelevantFiles(files FileSource, request string, maxFiles int) []models.RelevantFile {
	if maxFiles <= 0 {
		maxFiles = b.maxFiles
	}
	return SelectRelevantFiles(files, request, maxFiles, b.maxChars)
}
