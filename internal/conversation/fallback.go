package conversation

import "strings"

// Known contexts. Any other non-empty name is accepted and gets the generic
// persona and fallback.
const (
	Onboarding = "Onboarding"
	Support    = "Support"
	Marketing  = "Marketing"
)

// DefaultContext is used when a caller sends no context.
const DefaultContext = Onboarding

var knownContexts = []string{Onboarding, Support, Marketing}

// NormalizeContext trims name, maps known contexts case-insensitively to
// their canonical spelling and substitutes DefaultContext for empty input.
func NormalizeContext(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return DefaultContext
	}
	for _, known := range knownContexts {
		if strings.EqualFold(name, known) {
			return known
		}
	}
	return name
}

type fallbackRule struct {
	keyword string
	reply   string
}

// first matching keyword wins
var fallbackRules = map[string][]fallbackRule{
	Onboarding: {
		{"help", "I'm here to help you get set up! Tell me which step you're on and I'll walk you through it."},
		{"features", "Our platform helps you manage leads, automate follow-ups and write outreach emails. Which of these would you like to explore first?"},
		{"start", "Let's get started! First, complete your profile, then connect your email so we can personalize your workspace."},
	},
	Support: {
		{"issue", "I'm sorry you're running into an issue. Our support team has been notified and will get back to you shortly. Could you share any error messages you've seen?"},
		{"help", "I'm here to help. Please describe the problem in a few words and I'll point you in the right direction."},
		{"refund", "I understand you'd like a refund. I've flagged your request for our billing team, who will contact you within two business days."},
	},
	Marketing: {
		{"features", "Our marketing features include campaign automation, audience segmentation and performance analytics. Want a quick demo of any of them?"},
		{"campaign", "Great, let's plan a campaign! Who is your target audience and what's the main goal?"},
		{"pricing", "We offer flexible plans for teams of every size. I can connect you with our sales team for a tailored quote."},
	},
}

var fallbackDefaults = map[string]string{
	Onboarding: "Welcome aboard! I'm having trouble reaching my brain right now, but I'll be able to guide you through onboarding in just a moment.",
	Support:    "Thanks for reaching out to support. I can't process your request right now, but your message has been saved and we'll follow up soon.",
	Marketing:  "Thanks for your interest! I can't generate a full answer right now, but I'd love to tell you more about our marketing tools shortly.",
}

const genericFallback = "I'm sorry, I can't process your request right now. Please try again in a moment."

// Fallback returns the canned reply used when the completion service fails.
// It is deterministic in (content, context). context is normalized first.
func Fallback(content, context string) string {
	context = NormalizeContext(context)
	rules, ok := fallbackRules[context]
	if !ok {
		return genericFallback
	}
	lower := strings.ToLower(content)
	for _, r := range rules {
		if strings.Contains(lower, r.keyword) {
			return r.reply
		}
	}
	return fallbackDefaults[context]
}
