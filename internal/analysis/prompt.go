package analysis

import (
	"fmt"
	"strings"

	"github.com/bizmatters/agent-builder/code-editor/internal/models"
)

const systemInstructions = `You are an expert software engineer working inside a browser-based code editor.
You can read the project files provided below and propose edits to them.

When you change or create files, first give a short explanation, then list every file in this exact format:

FILE_CHANGES_START
` + "```" + `filepath:relative/path/to/file.ext
<complete file content>
` + "```" + `
FILE_CHANGES_END

Always output the complete content of each file, never a partial snippet.
If the request is ambiguous or the change is large or destructive, explain the plan and ask "Would you like me to proceed?" before the changes.
If no file changes are needed, answer normally without the markers.`

// BuildPrompt assembles the chat messages for one turn: instructions and
// project summary, recent conversation, then the request with file context.
func BuildPrompt(snap models.AnalysisSnapshot, files []models.RelevantFile, history []models.ConversationMessage, request string) []models.ChatMessage {
	messages := []models.ChatMessage{{
		Role:    models.RoleSystem,
		Content: systemInstructions + "\n\n" + summarize(snap),
	}}

	for _, m := range history {
		if m.IsError || m.IsProgress || m.Role == models.RoleSystem {
			continue
		}
		messages = append(messages, models.ChatMessage{Role: m.Role, Content: m.Content})
	}

	var b strings.Builder
	if len(files) > 0 {
		b.WriteString("Relevant project files:\n\n")
		for _, f := range files {
			fmt.Fprintf(&b, "--- %s ---\n%s\n\n", f.Path, f.Content)
		}
	}
	b.WriteString("Request: ")
	b.WriteString(request)

	return append(messages, models.ChatMessage{Role: models.RoleUser, Content: b.String()})
}

func summarize(snap models.AnalysisSnapshot) string {
	var b strings.Builder
	b.WriteString("Project summary:\n")
	fmt.Fprintf(&b, "- Framework: %s\n", snap.Framework)
	fmt.Fprintf(&b, "- Build tool: %s\n", snap.BuildTool)
	fmt.Fprintf(&b, "- Files: %d (%d lines, %d UI components)\n", snap.TotalFiles, snap.TotalLines, snap.UIFiles)
	if len(snap.Dependencies) > 0 {
		fmt.Fprintf(&b, "- Dependencies: %s\n", strings.Join(snap.Dependencies, ", "))
	}
	if snap.StateManagement != "" {
		fmt.Fprintf(&b, "- State management: %s\n", snap.StateManagement)
	}
	for _, d := range snap.TechnicalDebt {
		fmt.Fprintf(&b, "- Note: %s\n", d)
	}
	return strings.TrimRight(b.String(), "\n")
}
