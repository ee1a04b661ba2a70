// Command parse-response prints the file changes found in a saved model response.
//
//	parse-response -input reply.txt -project ./my-app
//
// Paths that exist under -project are reported as updates, all others as creates.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/bizmatters/agent-builder/code-editor/internal/parser"
)

func main() {
	input := flag.String("input", "-", "File holding the raw model response, - for stdin")
	project := flag.String("project", "", "Project directory used to label changes as create or update")
	withContent := flag.Bool("content", false, "Include file contents in the output")
	flag.Parse()

	raw, err := readInput(*input)
	if err != nil {
		log.Fatalf("Failed to read response: %v", err)
	}

	existing := map[string]struct{}{}
	if *project != "" {
		existing, err = projectPaths(os.DirFS(*project))
		if err != nil {
			log.Fatalf("Failed to list project files: %v", err)
		}
	}

	result := parser.Parse(raw, existing)
	if !*withContent {
		for i := range result.Changes {
			result.Changes[i].Content = fmt.Sprintf("(%d bytes)", len(result.Changes[i].Content))
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		log.Fatalf("Failed to write result: %v", err)
	}
}

func readInput(name string) (string, error) {
	var r io.Reader = os.Stdin
	if name != "-" {
		f, err := os.Open(name)
		if err != nil {
			return "", err
		}
		defer f.Close()
		r = f
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// projectPaths lists every regular file under fsys, skipping dependency and VCS directories
func projectPaths(fsys fs.FS) (map[string]struct{}, error) {
	paths := map[string]struct{}{}
	err := doublestar.GlobWalk(fsys, "**", func(p string, d fs.DirEntry) error {
		if d.IsDir() {
			switch d.Name() {
			case "node_modules", ".git", "dist", "build":
				return fs.SkipDir
			}
			return nil
		}
		paths[p] = struct{}{}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return paths, nil
}
