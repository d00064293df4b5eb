package domain

// ActionType identifies an auto-action variant.
type ActionType string

const (
	ActionAddReaction   ActionType = "add_reaction"
	ActionSendMessage   ActionType = "send_message"
	ActionTimeoutUser   ActionType = "timeout_user"
	ActionUntimeoutUser ActionType = "untimeout_user"
)

// AutoAction is one action proposed by the oracle. Only the fields of its
// Type variant are meaningful:
//
//	add_reaction:   MessageID, Emoji
//	send_message:   Content
//	timeout_user:   UserID, Minutes, Reason
//	untimeout_user: UserID, Reason (optional)
type AutoAction struct {
	Type      ActionType
	MessageID string
	Emoji     string
	Content   string
	UserID    string
	Minutes   int
	Reason    string
}

// AutoActionPlan is the validated result of one planning cycle.
// Summary is carried forward across cycles; Actions live only for the cycle.
type AutoActionPlan struct {
	Summary string
	Actions []AutoAction
}
