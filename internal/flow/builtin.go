package flow

// Builtin returns the stock post-discharge follow-up interview used when
// no generated script is supplied. Kept deliberately short: the script is
// meant to be followed turn by turn without interruption.
func Builtin() FlowMap {
	return FlowMap{
		Title: "Post-Discharge Follow-Up",
		Steps: []FlowStep{
			{
				ID:       "intro",
				Label:    "Introduction",
				Type:     StepStatement,
				Question: "Hello, this is the care team calling to check in after your recent visit. This will only take a couple of minutes.",
				Options: []FlowOption{
					{Label: "Continue", Next: "identity"},
				},
			},
			{
				ID:       "identity",
				Label:    "Identity check",
				Question: "Am I speaking with the patient? Please say yes or no.",
				Options: []FlowOption{
					{Label: "Yes", Keywords: []string{"yes", "yeah", "speaking", "this is", "correct", "sí", "si"}, Next: "general_status"},
					{Label: "No", Keywords: []string{"no", "wrong number", "not here", "nobody"}, Next: "wrong_number"},
				},
			},
			{
				ID:       "general_status",
				Label:    "General status",
				Info:     "Open question; listen for any concern, not just the matched option.",
				Question: "How have you been feeling since you got home? Better, worse, or about the same?",
				Options: []FlowOption{
					{Label: "Better", Next: "medication"},
					{Label: "Same", Next: "medication"},
					{Label: "Worse", Next: "symptoms", TriggersCallback: true},
				},
			},
			{
				ID:       "symptoms",
				Label:    "Symptoms",
				Question: "I'm sorry to hear that. Are you having any pain, fever, or new symptoms?",
				Options: []FlowOption{
					{Label: "Yes", Keywords: []string{"yes", "yeah", "pain", "fever", "dolor"}, Next: "medication", TriggersCallback: true},
					{Label: "No", Next: "medication"},
				},
			},
			{
				ID:       "medication",
				Label:    "Medication",
				Question: "Have you been able to take your medication as prescribed?",
				Options: []FlowOption{
					{Label: "Yes", Next: "questions"},
					{Label: "No", Next: "questions", TriggersCallback: true},
				},
			},
			{
				ID:       "questions",
				Label:    "Open questions",
				Question: "Do you have any questions or concerns for the care team?",
				Options: []FlowOption{
					{Label: "Yes", Next: "closing", TriggersCallback: true},
					{Label: "No", Next: "closing"},
				},
			},
			{
				ID:       "wrong_number",
				Label:    "Wrong number",
				Type:     StepStatement,
				Question: "I apologize for the confusion. Thank you for your time, goodbye.",
				Options: []FlowOption{
					{Label: "End", Next: NextEndCall},
				},
			},
			{
				ID:       "closing",
				Label:    "Closing",
				Type:     StepStatement,
				Question: "Thank you for your time. If anything changes, please call the clinic. Take care, goodbye.",
				Options: []FlowOption{
					{Label: "End", Next: NextEndCall},
				},
			},
		},
	}
}
