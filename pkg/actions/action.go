package actions

// Action is a one-click request: a canned instruction sent to the model in
// place of user input.
type Action struct {
	Type        string
	Description string
	Instruction string
}

const (
	CreateLead            = "create_lead"
	ScheduleFollowUp      = "schedule_follow_up"
	GenerateEmailTemplate = "generate_email_template"
	SummarizeConversation = "summarize_conversation"
	ProductTour           = "product_tour"
)

// Defaults is the built-in action set.
func Defaults() []Action {
	return []Action{
		{
			Type:        CreateLead,
			Description: "Draft a new sales lead",
			Instruction: "Create a new sales lead record from what is known about the user so far. List name, company, need and next step as short bullet points, and ask for any missing field.",
		},
		{
			Type:        ScheduleFollowUp,
			Description: "Propose a follow-up",
			Instruction: "Propose a follow-up meeting with the user. Suggest two concrete time slots within the next week and a one-line agenda.",
		},
		{
			Type:        GenerateEmailTemplate,
			Description: "Write an outreach email",
			Instruction: "Write a short, friendly email template the user can send to a prospect. Include a subject line and keep the body under 120 words.",
		},
		{
			Type:        SummarizeConversation,
			Description: "Summarize the chat so far",
			Instruction: "Summarize the conversation so far in three bullet points and name one open question.",
		},
		{
			Type:        ProductTour,
			Description: "Walk through the main features",
			Instruction: "Give the user a quick tour of the product's main features, one sentence each, and ask which one they want to try first.",
		},
	}
}
