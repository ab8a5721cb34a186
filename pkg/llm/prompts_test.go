package llm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadPrompts(t *testing.T) {
	ps, err := LoadPrompts()
	require.NoError(t, err)
	assert.NotEmpty(t, ps.System())
	assert.Contains(t, ps.System(), "Jumla-bot")
}

func TestExtractionPromptRender(t *testing.T) {
	ps, err := LoadPrompts()
	require.NoError(t, err)

	prompt, err := ps.Extraction("user: hello", "+15551234567", "I want to sell my house")
	require.NoError(t, err)
	assert.Contains(t, prompt, "user: hello")
	assert.Contains(t, prompt, "From: +15551234567")
	assert.Contains(t, prompt, "I want to sell my house")
	assert.Contains(t, prompt, "ONLY the JSON object")
}

func TestReplyPromptRender(t *testing.T) {
	ps, err := LoadPrompts()
	require.NoError(t, err)

	prompt, err := ps.Reply("new", "Bedrooms: 3", "user: hi", "It has 3 bedrooms")
	require.NoError(t, err)
	assert.Contains(t, prompt, "Lead Status: new")
	assert.Contains(t, prompt, "Information Gathered: Bedrooms: 3")
	assert.Contains(t, prompt, `"It has 3 bedrooms"`)
}

func TestRenderSubstitutesEmptyValues(t *testing.T) {
	ps, err := LoadPrompts()
	require.NoError(t, err)

	prompt, err := ps.Reply("", "", "user: hi", "hello")
	require.NoError(t, err)
	assert.Contains(t, prompt, "Lead Status: not provided")
	assert.Contains(t, prompt, "Information Gathered: not provided")
}

func TestTemplateValidationCatchesUnknownPlaceholder(t *testing.T) {
	_, err := parseAndValidate(t, "bad", "Hello {{.message}} and {{.unknown_var}}", []string{"message"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown placeholder")
}

// parseAndValidate mirrors loadTemplate's validation for an inline template.
func parseAndValidate(t *testing.T, name, body string, vars []string) (string, error) {
	t.Helper()
	tmpl, err := newValidatedTemplate(name, body, vars)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	data := map[string]any{}
	for _, v := range vars {
		data[v] = "x"
	}
	err = tmpl.Execute(&sb, data)
	return sb.String(), err
}
