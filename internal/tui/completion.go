package tui

import (
	"io"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"coder/internal/editor"
	"coder/internal/security"
)

// slashCommands mirrors the REPL command table (cmd/agent/commands.go) so
// the editor's slash-completion has the same surface the non-TUI REPL
// accepts.
var slashCommands = []editor.Item{
	{Label: "/help", Description: "show available commands"},
	{Label: "/exit", Description: "quit the session"},
	{Label: "/quit", Description: "quit the session"},
	{Label: "/new", Description: "start a new session"},
	{Label: "/sessions", Description: "list saved sessions"},
	{Label: "/use", Description: "switch to a saved session"},
	{Label: "/fork", Description: "fork a saved session"},
	{Label: "/revert", Description: "revert the session to N messages"},
	{Label: "/agent", Description: "switch the active agent"},
	{Label: "/models", Description: "list or switch models"},
	{Label: "/context", Description: "show context usage"},
	{Label: "/tools", Description: "list tool enablement"},
	{Label: "/skills", Description: "list discovered skills"},
	{Label: "/todo", Description: "show the session todo list"},
	{Label: "/summarize", Description: "summarize the session history"},
	{Label: "/compact", Description: "compact the context now"},
	{Label: "/config", Description: "show the effective config"},
	{Label: "/mcp", Description: "list MCP servers"},
}

const maxFileCompletionResults = 20

// completionProvider implements editor.AutocompleteProvider, bridging the
// slash-command table and a workspace-scoped file listing into the
// editor's generic overlay (spec 2 "External collaborators").
type completionProvider struct {
	ws *security.Workspace
}

func newCompletionProvider(ws *security.Workspace) *completionProvider {
	return &completionProvider{ws: ws}
}

func (p *completionProvider) Suggestions(lines []string, cur editor.Cursor, source editor.SourceKind, prefix string) (editor.Suggestions, bool) {
	switch source {
	case editor.SourceSlash:
		return matchSlashCommands(prefix), true
	case editor.SourceFileRef, editor.SourceForcedFile:
		return p.matchFiles(strings.TrimPrefix(prefix, "@")), true
	default:
		return editor.Suggestions{}, false
	}
}

func (p *completionProvider) Apply(lines []string, cur editor.Cursor, item editor.Item, prefix string, source editor.SourceKind) ([]string, int, int) {
	line := lines[cur.Line]
	start := cur.Col - len(prefix)
	if start < 0 {
		start = 0
	}

	replacement := item.Label
	if source == editor.SourceFileRef || source == editor.SourceForcedFile {
		replacement = "@" + item.Value + " "
	} else {
		replacement += " "
	}

	newLine := line[:start] + replacement + line[cur.Col:]
	out := append([]string(nil), lines...)
	out[cur.Line] = newLine
	return out, cur.Line, start + len(replacement)
}

// ShouldTriggerFileCompletion backs the forced (Tab) file-completion path
// (spec 4.5 bullet 3): trigger when the token under the cursor looks like
// a path fragment rather than a whole word.
func (p *completionProvider) ShouldTriggerFileCompletion(lines []string, cur editor.Cursor) bool {
	line := lines[cur.Line]
	if cur.Col > len(line) {
		return false
	}
	before := line[:cur.Col]
	i := strings.LastIndexAny(before, " \t")
	token := before[i+1:]
	return token != "" && !strings.HasPrefix(token, "/")
}

func matchSlashCommands(prefix string) editor.Suggestions {
	var out []editor.Item
	for _, c := range slashCommands {
		if strings.HasPrefix(c.Label, prefix) {
			out = append(out, c)
		}
	}
	return editor.Suggestions{Items: out}
}

// matchFiles walks the workspace looking for paths whose relative form
// starts with prefix, the same path-resolution root the grep and read
// tools use.
func (p *completionProvider) matchFiles(prefix string) editor.Suggestions {
	if p.ws == nil {
		return editor.Suggestions{}
	}
	root := p.ws.Root()
	var matches []editor.Item

	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if path == root {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		if d.IsDir() && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if !strings.HasPrefix(rel, prefix) {
			if d.IsDir() && !strings.HasPrefix(prefix, rel) {
				return nil
			}
			return nil
		}
		label := rel
		if d.IsDir() {
			label += "/"
		}
		matches = append(matches, editor.Item{Label: label, Value: rel})
		if len(matches) >= maxFileCompletionResults {
			return io.EOF
		}
		return nil
	})
	_ = walkErr

	sort.Slice(matches, func(i, j int) bool { return matches[i].Label < matches[j].Label })
	return editor.Suggestions{Items: matches}
}
