package llm

import (
	"embed"
	"fmt"
	"strings"
	"text/template"
)

//go:embed prompts/extraction.tmpl prompts/reply.tmpl prompts/summary.tmpl prompts/system.txt
var promptFS embed.FS

// PromptSet holds the parsed prompt templates and the fixed system prompt.
// Templates are validated at load time so a missing placeholder fails fast
// at startup instead of mid-conversation.
type PromptSet struct {
	extraction *template.Template
	reply      *template.Template
	summary    *template.Template
	system     string
}

// promptVars lists every placeholder each template may reference. Used to
// verify templates render cleanly before the first request.
var promptVars = map[string][]string{
	"extraction": {"conversation_history", "sender", "message"},
	"reply":      {"lead_status", "info_summary", "conversation_history", "message"},
	"summary":    {"extracted_data", "conversation_history"},
}

// LoadPrompts parses and validates the embedded prompt templates.
func LoadPrompts() (*PromptSet, error) {
	ps := &PromptSet{}

	var err error
	if ps.extraction, err = loadTemplate("extraction", "prompts/extraction.tmpl"); err != nil {
		return nil, err
	}
	if ps.reply, err = loadTemplate("reply", "prompts/reply.tmpl"); err != nil {
		return nil, err
	}
	if ps.summary, err = loadTemplate("summary", "prompts/summary.tmpl"); err != nil {
		return nil, err
	}

	system, err := promptFS.ReadFile("prompts/system.txt")
	if err != nil {
		return nil, fmt.Errorf("failed to read system prompt: %w", err)
	}
	ps.system = strings.TrimSpace(string(system))

	return ps, nil
}

func loadTemplate(name, path string) (*template.Template, error) {
	raw, err := promptFS.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s template: %w", name, err)
	}
	return newValidatedTemplate(name, string(raw), promptVars[name])
}

// newValidatedTemplate parses a template and renders it once with every
// declared placeholder populated. A template referencing an undeclared
// variable fails here, at load time.
func newValidatedTemplate(name, body string, vars []string) (*template.Template, error) {
	tmpl, err := template.New(name).Option("missingkey=error").Parse(body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s template: %w", name, err)
	}

	dummy := make(map[string]any, len(vars))
	for _, v := range vars {
		dummy[v] = "placeholder"
	}
	if err := tmpl.Execute(&strings.Builder{}, dummy); err != nil {
		return nil, fmt.Errorf("%s template references an unknown placeholder: %w", name, err)
	}
	return tmpl, nil
}

// render executes a template, substituting "not provided" for empty values.
func render(tmpl *template.Template, vars map[string]any) (string, error) {
	for k, v := range vars {
		if s, ok := v.(string); ok && s == "" {
			vars[k] = "not provided"
		}
	}
	var buf strings.Builder
	if err := tmpl.Execute(&buf, vars); err != nil {
		return "", fmt.Errorf("failed to render %s prompt: %w", tmpl.Name(), err)
	}
	return buf.String(), nil
}

// Extraction renders the extraction prompt.
func (ps *PromptSet) Extraction(history, sender, message string) (string, error) {
	return render(ps.extraction, map[string]any{
		"conversation_history": history,
		"sender":               sender,
		"message":              message,
	})
}

// Reply renders the conversational reply prompt.
func (ps *PromptSet) Reply(leadStatus, infoSummary, history, message string) (string, error) {
	return render(ps.reply, map[string]any{
		"lead_status":          leadStatus,
		"info_summary":         infoSummary,
		"conversation_history": history,
		"message":              message,
	})
}

// Summary renders the lead summary prompt.
func (ps *PromptSet) Summary(extractedData, history string) (string, error) {
	return render(ps.summary, map[string]any{
		"extracted_data":       extractedData,
		"conversation_history": history,
	})
}

// System returns the fixed system prompt used for reply generation.
func (ps *PromptSet) System() string {
	return ps.system
}
