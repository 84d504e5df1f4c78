package conversation

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig"

	"github.com/comigor/chatlog-go/internal/history"
)

var defaultPersonas = map[string]string{
	Onboarding: `You are Ava, a warm onboarding guide for a sales-automation platform. Help new users get set up step by step and keep answers short.
{{- if .Summary }}

Conversation so far:
{{ .Summary }}
{{- end }}`,
	Support: `You are Elijah, a patient customer-support agent. Diagnose the user's problem, ask one clarifying question at a time and never invent account details.
{{- if .Summary }}

Conversation so far:
{{ .Summary }}
{{- end }}`,
	Marketing: `You are Lucas, an upbeat marketing assistant. Suggest campaigns, messaging and next steps that fit the user's goals.
{{- if .Summary }}

Conversation so far:
{{ .Summary }}
{{- end }}`,
}

const genericPersona = `You are a helpful AI assistant for the {{ .Context }} team. Please respond to the user's request accurately and concisely.
{{- if .Summary }}

Conversation so far:
{{ .Summary }}
{{- end }}`

const summaryTemplate = `{{- range .Turns }}{{ .Role }}: {{ .Content | replace "\n" " " | trunc 200 }}
{{ end -}}`

type promptData struct {
	Context string
	Summary string
	Turns   []history.Message
}

// Prompter renders the system message for a context.
type Prompter struct {
	personas map[string]*template.Template
	generic  *template.Template
	summary  *template.Template
}

// NewPrompter parses the built-in personas, replacing any whose context
// appears (case-insensitively) in overrides. The "default" key replaces the
// generic persona.
func NewPrompter(overrides map[string]string) (*Prompter, error) {
	sources := make(map[string]string, len(defaultPersonas))
	for name, src := range defaultPersonas {
		sources[strings.ToLower(name)] = src
	}
	generic := genericPersona
	for name, src := range overrides {
		key := strings.ToLower(strings.TrimSpace(name))
		if key == "default" {
			generic = src
			continue
		}
		sources[key] = src
	}

	p := &Prompter{personas: make(map[string]*template.Template, len(sources))}
	var err error
	for key, src := range sources {
		if p.personas[key], err = parse(key, src); err != nil {
			return nil, err
		}
	}
	if p.generic, err = parse("default", generic); err != nil {
		return nil, err
	}
	if p.summary, err = parse("summary", summaryTemplate); err != nil {
		return nil, err
	}
	return p, nil
}

func parse(name, src string) (*template.Template, error) {
	t, err := template.New(name).Funcs(sprig.TxtFuncMap()).Parse(src)
	if err != nil {
		return nil, fmt.Errorf("persona %q: %w", name, err)
	}
	return t, nil
}

// System renders the persona for context with the given chronological history.
func (p *Prompter) System(context string, turns []history.Message) (string, error) {
	data := promptData{Context: context, Turns: turns}

	var buf bytes.Buffer
	if err := p.summary.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render summary: %w", err)
	}
	data.Summary = strings.TrimSpace(buf.String())

	tpl, ok := p.personas[strings.ToLower(context)]
	if !ok {
		tpl = p.generic
	}
	buf.Reset()
	if err := tpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render persona %q: %w", context, err)
	}
	return strings.TrimSpace(buf.String()), nil
}
