package handlers

import (
	"fmt"
	"strings"

	"github.com/2lu3/tetsumon-dayori/internal/domain"
	"github.com/2lu3/tetsumon-dayori/internal/slack"
)

// maxMentions is how many users a message mentions by name.
const maxMentions = 3

// Mentions renders the users a message is addressed to: the assignee alone
// when one is known, otherwise the first three reactors and a count of the
// rest.
func Mentions(assignee string, reactors []string) string {
	if assignee != "" {
		return mention(assignee)
	}
	if len(reactors) == 0 {
		return ""
	}
	shown := reactors
	if len(shown) > maxMentions {
		shown = shown[:maxMentions]
	}
	parts := make([]string, len(shown))
	for i, u := range shown {
		parts[i] = mention(u)
	}
	text := strings.Join(parts, " ")
	if rest := len(reactors) - len(shown); rest > 0 {
		text += fmt.Sprintf(" and %d others", rest)
	}
	return text
}

func mention(user string) string { return "<@" + user + ">" }

func withMentions(mentions, body string) string {
	if mentions == "" {
		return body
	}
	return mentions + "\n" + body
}

// CreatedReplyText is posted in the source thread once a task exists.
func CreatedReplyText(mentions, trackingLink string) string {
	body := "Created a task in the task channel."
	if trackingLink != "" {
		body = "Created a task in the task channel: " + trackingLink
	}
	return withMentions(mentions, body)
}

// ReminderText is the reminder reply for a remind kind.
func ReminderText(kind domain.RemindKind, mentions, sourcePermalink string) string {
	var body string
	switch kind {
	case domain.RemindDueMinus1:
		body = "Due-date reminder: this task is due tomorrow. " + sourcePermalink
	case domain.RemindWeekly:
		body = "Weekly reminder: how is this task going? " + sourcePermalink
	default:
		body = "Reminder: " + sourcePermalink
	}
	return withMentions(mentions, body)
}

// EscalationText is the final notice for a task that is no longer tracked.
func EscalationText(sourcePermalink string) string {
	return "This task has been open too long and is no longer tracked. It will soon scroll out of sight: " + sourcePermalink
}

// RenderThread formats a thread as "[user] text" lines for extraction.
func RenderThread(msgs []slack.ThreadMessage) string {
	lines := make([]string, len(msgs))
	for i, m := range msgs {
		user := m.User
		if user == "" {
			user = "unknown"
		}
		lines[i] = "[" + user + "] " + m.Text
	}
	return strings.Join(lines, "\n")
}
