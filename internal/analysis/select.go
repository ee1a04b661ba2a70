package analysis

import (
	"strings"
	"unicode/utf8"

	"github.com/bizmatters/agent-builder/code-editor/internal/models"
)

// Entry points, manifest and build config, always offered first in this order.
var architecturalPaths = []string{
	"package.json",
	"index.html",
	"src/main.jsx",
	"src/main.tsx",
	"src/main.js",
	"src/index.jsx",
	"src/index.tsx",
	"src/index.js",
	"src/App.jsx",
	"src/App.tsx",
	"src/App.js",
	"vite.config.js",
	"vite.config.ts",
	"webpack.config.js",
	"tsconfig.json",
}

type keywordCategory struct {
	keywords []string
	needles  []string
}

var keywordCategories = []keywordCategory{
	{keywords: []string{"auth", "login", "user"}, needles: []string{"context", "auth", "login", "user"}},
	{keywords: []string{"style", "css", "color", "theme", "design"}, needles: []string{".css", "style", "theme"}},
	{keywords: []string{"api", "fetch", "data", "backend"}, needles: []string{"api", "service", "fetch", "hook"}},
	{keywords: []string{"route", "page", "navigation"}, needles: []string{"route", "router", "page", "nav"}},
	{keywords: []string{"component", "button", "form", "modal"}, needles: []string{"component"}},
	{keywords: []string{"state", "store", "redux"}, needles: []string{"store", "context", "reducer", "slice"}},
	{keywords: []string{"test"}, needles: []string{"test", "spec"}},
	{keywords: []string{"config", "build"}, needles: []string{"config"}},
}

// SelectRelevantFiles picks architectural files, then files whose path matches a
// category named in request, in store order, up to maxFiles. Content longer than
// maxChars is cut and marked.
func SelectRelevantFiles(files FileSource, request string, maxFiles, maxChars int) []models.RelevantFile {
	if maxFiles <= 0 {
		maxFiles = DefaultMaxFiles
	}
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}

	selected := make([]models.RelevantFile, 0, maxFiles)
	seen := make(map[string]bool)
	add := func(p string) bool {
		if len(selected) >= maxFiles {
			return false
		}
		if seen[p] {
			return true
		}
		rec, ok := files.Get(p)
		if !ok {
			return true
		}
		seen[p] = true
		selected = append(selected, truncate(p, rec.Content, maxChars))
		return true
	}

	for _, p := range architecturalPaths {
		if !add(p) {
			return selected
		}
	}

	req := strings.ToLower(request)
	keys := files.Keys()
	for _, cat := range keywordCategories {
		if !containsAny(req, cat.keywords) {
			continue
		}
		for _, p := range keys {
			if seen[p] || !containsAny(strings.ToLower(p), cat.needles) {
				continue
			}
			if !add(p) {
				return selected
			}
		}
	}
	return selected
}

func truncate(p, content string, maxChars int) models.RelevantFile {
	if utf8.RuneCountInString(content) <= maxChars {
		return models.RelevantFile{Path: p, Content: content}
	}
	runes := []rune(content)
	return models.RelevantFile{
		Path:      p,
		Content:   string(runes[:maxChars]) + TruncationMarker,
		Truncated: true,
	}
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
