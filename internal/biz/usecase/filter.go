package usecase

import (
	"regexp"

	"github.com/anthropics/discord-gemini-bot/internal/biz/domain"
)

var (
	// Recap/summary request phrasing, French and English.
	summaryRequestRegex = regexp.MustCompile(`(?i)\b(r[eé]sum[eé]r?|r[eé]cap(?:itulatif)?|recap|summary|tl;?dr|synth[eè]se)\b`)

	// Broadcast mention tokens, never allowed in outgoing text.
	massPingRegex = regexp.MustCompile(`(?i)@everyone|@here`)

	// Explicit user mention tokens: <@id> and <@!id>.
	mentionRegex = regexp.MustCompile(`<@!?(\d+)>`)
)

// HasSummaryRequest reports whether any message in the snapshot asks for a
// recap. This is a plain lexical match, on purpose: the decision of whether
// a recap was requested must not be delegated to the oracle.
func HasSummaryRequest(messages []domain.ChatMessage) bool {
	for _, msg := range messages {
		if summaryRequestRegex.MatchString(msg.Content) {
			return true
		}
	}
	return false
}

// LooksLikeSummary reports whether outgoing content reads as a recap.
func LooksLikeSummary(content string) bool {
	return summaryRequestRegex.MatchString(content)
}

// ExtractMentionIDs returns the user ids of all explicit mention tokens in
// content, in order of appearance.
func ExtractMentionIDs(content string) []string {
	matches := mentionRegex.FindAllStringSubmatch(content, -1)
	if len(matches) == 0 {
		return nil
	}
	ids := make([]string, 0, len(matches))
	for _, m := range matches {
		ids = append(ids, m[1])
	}
	return ids
}

// FilterActions enforces the trust boundary between the oracle and the
// platform. The whitelists are derived strictly from the snapshot the oracle
// was shown, so it can only act on entities it observed:
//
//   - add_reaction survives only when its message id is in the snapshot;
//   - timeout_user/untimeout_user survive only when the user id is a
//     snapshot author;
//   - send_message is dropped when it reads as a recap nobody asked for,
//     contains a broadcast mention, or mentions a user outside the snapshot.
//
// Pure function; the input slice is not modified.
func FilterActions(
	actions []domain.AutoAction,
	allowedMessageIDs map[string]struct{},
	allowedUserIDs map[string]struct{},
	summaryRequested bool,
) []domain.AutoAction {
	var kept []domain.AutoAction

	for _, action := range actions {
		switch action.Type {
		case domain.ActionAddReaction:
			if _, ok := allowedMessageIDs[action.MessageID]; !ok {
				continue
			}
			kept = append(kept, action)

		case domain.ActionTimeoutUser, domain.ActionUntimeoutUser:
			if _, ok := allowedUserIDs[action.UserID]; !ok {
				continue
			}
			kept = append(kept, action)

		case domain.ActionSendMessage:
			if !summaryRequested && LooksLikeSummary(action.Content) {
				continue
			}
			if massPingRegex.MatchString(action.Content) {
				continue
			}
			if mentionsUnknownUser(action.Content, allowedUserIDs) {
				continue
			}
			kept = append(kept, action)
		}
	}

	return kept
}

func mentionsUnknownUser(content string, allowedUserIDs map[string]struct{}) bool {
	for _, id := range ExtractMentionIDs(content) {
		if _, ok := allowedUserIDs[id]; !ok {
			return true
		}
	}
	return false
}
