package analysis

import (
	"encoding/json"
	"fmt"
	"log"
	"path"
	"sort"
	"strings"

	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/bmatcuk/doublestar/v4"

	"github.com/bizmatters/agent-builder/code-editor/internal/models"
)

const (
	manifestPath = "package.json"
	unknown      = "unknown"

	typeCheckThreshold       = 5
	stateManagementThreshold = 10
	largeFileLines           = 300
)

type dependencyRule struct {
	dep  string
	name string
}

// First match wins: meta-frameworks are checked before the libraries they build on.
var frameworkRules = []dependencyRule{
	{"next", "next"},
	{"nuxt", "nuxt"},
	{"@angular/core", "angular"},
	{"svelte", "svelte"},
	{"vue", "vue"},
	{"react", "react"},
}

var buildToolRules = []dependencyRule{
	{"vite", "vite"},
	{"webpack", "webpack"},
	{"rollup", "rollup"},
	{"parcel", "parcel"},
}

var stateManagementDeps = []string{
	"redux", "@reduxjs/toolkit", "zustand", "mobx", "recoil", "jotai", "vuex", "pinia", "@ngrx/store",
}

var uiExtensions = map[string]bool{
	".jsx":    true,
	".tsx":    true,
	".vue":    true,
	".svelte": true,
}

var testPatterns = []string{
	"**/*.test.*",
	"**/*.spec.*",
	"**/__tests__/**",
}

type fileCheck struct {
	match      func(content string, lines int) bool
	issue      string
	suggestion string
}

var fileChecks = []fileCheck{
	{
		match:      func(c string, _ int) bool { return strings.Contains(c, "console.log") },
		issue:      "Contains console.log statements",
		suggestion: "Remove debug logging or use a logger",
	},
	{
		match:      func(c string, _ int) bool { return strings.Contains(c, "var ") },
		issue:      "Uses var declarations",
		suggestion: "Use let or const instead of var",
	},
	{
		match:      func(c string, _ int) bool { return strings.Contains(c, "TODO") || strings.Contains(c, "FIXME") },
		issue:      "Has unresolved TODO/FIXME comments",
		suggestion: "Resolve or track outstanding TODO items",
	},
	{
		match:      func(_ string, n int) bool { return n > largeFileLines },
		issue:      fmt.Sprintf("Large file (over %d lines)", largeFileLines),
		suggestion: "Split into smaller modules",
	},
}

type manifest struct {
	Dependencies    map[string]string `json:"dependencies"`
	DevDependencies map[string]string `json:"devDependencies"`
}

// Analyze inspects every file and returns a heuristic project summary.
// All checks are substring and extension tests.
func Analyze(files FileSource) models.AnalysisSnapshot {
	snap := models.AnalysisSnapshot{
		Framework:     unknown,
		BuildTool:     unknown,
		FileTypes:     make(map[string]int),
		Languages:     make(map[string]int),
		Issues:        []models.FileIssue{},
		TechnicalDebt: []string{},
	}

	m := readManifest(files)
	snap.Dependencies = sortedKeys(m.Dependencies)
	snap.DevDependencies = sortedKeys(m.DevDependencies)
	hasDep := func(name string) bool {
		_, ok := m.Dependencies[name]
		if !ok {
			_, ok = m.DevDependencies[name]
		}
		return ok
	}

	for _, r := range frameworkRules {
		if hasDep(r.dep) {
			snap.Framework = r.name
			break
		}
	}
	for _, r := range buildToolRules {
		if hasDep(r.dep) {
			snap.BuildTool = r.name
			break
		}
	}
	for _, dep := range stateManagementDeps {
		if hasDep(dep) {
			snap.StateManagement = dep
			break
		}
	}
	snap.HasTypeScript = hasDep("typescript")

	issueCount := 0
	for _, p := range files.Keys() {
		rec, ok := files.Get(p)
		if !ok {
			continue
		}

		ext := strings.ToLower(path.Ext(p))
		if ext == "" {
			ext = "(none)"
		}
		snap.FileTypes[ext]++
		snap.Languages[languageOf(p)]++
		snap.TotalFiles++

		lines := strings.Count(rec.Content, "\n") + 1
		if rec.Content == "" {
			lines = 0
		}
		snap.TotalLines += lines

		if uiExtensions[ext] {
			snap.UIFiles++
		}
		if ext == ".ts" || ext == ".tsx" {
			snap.HasTypeScript = true
		}
		if isTestFile(p) {
			snap.HasTests = true
		}

		if issue, ok := checkFile(p, rec.Content, lines); ok {
			snap.Issues = append(snap.Issues, issue)
			issueCount += len(issue.Issues)
		}
	}

	if !snap.HasTypeScript && snap.UIFiles > typeCheckThreshold {
		snap.TechnicalDebt = append(snap.TechnicalDebt, "No TypeScript detected in a project with many UI components")
	}
	if !snap.HasTests && snap.TotalFiles > 0 {
		snap.TechnicalDebt = append(snap.TechnicalDebt, "No test files found")
	}
	if snap.StateManagement == "" && snap.UIFiles > stateManagementThreshold {
		snap.TechnicalDebt = append(snap.TechnicalDebt, "No state management library despite a large component tree")
	}

	snap.ComplexityScore = min(100, snap.TotalLines/10+snap.UIFiles)
	snap.QualityScore = max(0, 100-5*issueCount-10*len(snap.TechnicalDebt))
	return snap
}

func readManifest(files FileSource) manifest {
	var m manifest
	rec, ok := files.Get(manifestPath)
	if !ok {
		return m
	}
	if err := json.Unmarshal([]byte(rec.Content), &m); err != nil {
		log.Printf(`{"level":"warn","message":"Invalid package.json, using defaults","error":"%v"}`, err)
		return manifest{}
	}
	return m
}

func checkFile(p, content string, lines int) (models.FileIssue, bool) {
	issue := models.FileIssue{Path: p}
	for _, c := range fileChecks {
		if c.match(content, lines) {
			issue.Issues = append(issue.Issues, c.issue)
			issue.Suggestions = append(issue.Suggestions, c.suggestion)
		}
	}
	return issue, len(issue.Issues) > 0
}

func isTestFile(p string) bool {
	for _, pattern := range testPatterns {
		if ok, _ := doublestar.Match(pattern, p); ok {
			return true
		}
	}
	return false
}

func languageOf(p string) string {
	lexer := lexers.Match(path.Base(p))
	if lexer == nil {
		return "Other"
	}
	return lexer.Config().Name
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
