package models

// FileIssue lists shallow heuristic findings for one file
type FileIssue struct {
	Path        string   `json:"path"`
	Issues      []string `json:"issues"`
	Suggestions []string `json:"suggestions"`
}

// AnalysisSnapshot is a derived summary of the project files
type AnalysisSnapshot struct {
	Framework       string         `json:"framework"`
	BuildTool       string         `json:"build_tool"`
	Dependencies    []string       `json:"dependencies"`
	DevDependencies []string       `json:"dev_dependencies"`
	FileTypes       map[string]int `json:"file_types"`
	Languages       map[string]int `json:"languages"`
	TotalFiles      int            `json:"total_files"`
	TotalLines      int            `json:"total_lines"`
	UIFiles         int            `json:"ui_files"`
	HasTypeScript   bool           `json:"has_typescript"`
	HasTests        bool           `json:"has_tests"`
	StateManagement string         `json:"state_management,omitempty"`
	Issues          []FileIssue    `json:"issues"`
	TechnicalDebt   []string       `json:"technical_debt"`
	ComplexityScore int            `json:"complexity_score"`
	QualityScore    int            `json:"quality_score"`
}
