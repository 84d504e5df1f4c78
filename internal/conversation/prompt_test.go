package conversation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/comigor/chatlog-go/internal/history"
)

func TestPrompter_BuiltInPersonas(t *testing.T) {
	p, err := NewPrompter(nil)
	require.NoError(t, err)

	out, err := p.System(Support, nil)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(out, "You are Elijah"))
	require.NotContains(t, out, "Conversation so far")

	out, err = p.System("Sales", nil)
	require.NoError(t, err)
	require.Contains(t, out, "Sales team")
}

func TestPrompter_SummaryInterpolated(t *testing.T) {
	p, err := NewPrompter(nil)
	require.NoError(t, err)

	turns := []history.Message{
		{Role: history.RoleUser, Content: "line one\nline two"},
		{Role: history.RoleAssistant, Content: strings.Repeat("x", 300)},
	}
	out, err := p.System(Onboarding, turns)
	require.NoError(t, err)
	require.Contains(t, out, "Conversation so far:\nuser: line one line two\nassistant: ")
	require.Contains(t, out, strings.Repeat("x", 200))
	require.NotContains(t, out, strings.Repeat("x", 201))
}

func TestPrompter_Overrides(t *testing.T) {
	p, err := NewPrompter(map[string]string{
		"support": "Custom {{ .Context | upper }} persona. {{ .Summary }}",
		"default": "Fallback persona for {{ .Context }}.",
	})
	require.NoError(t, err)

	out, err := p.System(Support, []history.Message{{Role: history.RoleUser, Content: "hi"}})
	require.NoError(t, err)
	require.Equal(t, "Custom SUPPORT persona. user: hi", out)

	out, err = p.System("Sales", nil)
	require.NoError(t, err)
	require.Equal(t, "Fallback persona for Sales.", out)

	out, err = p.System(Marketing, nil)
	require.NoError(t, err)
	require.Contains(t, out, "Lucas")
}

func TestPrompter_BadTemplate(t *testing.T) {
	_, err := NewPrompter(map[string]string{"support": "{{ .Broken "})
	require.Error(t, err)
}
