package handlers_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/2lu3/tetsumon-dayori/internal/domain"
	"github.com/2lu3/tetsumon-dayori/internal/handlers"
	"github.com/2lu3/tetsumon-dayori/internal/slack"
)

func TestMentions(t *testing.T) {
	tests := []struct {
		name     string
		assignee string
		reactors []string
		want     string
	}{
		{"assignee wins", "U9", []string{"U1", "U2"}, "<@U9>"},
		{"no one", "", nil, ""},
		{"three", "", []string{"U1", "U2", "U3"}, "<@U1> <@U2> <@U3>"},
		{"four", "", []string{"U1", "U2", "U3", "U4"}, "<@U1> <@U2> <@U3> and 1 others"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, handlers.Mentions(tt.assignee, tt.reactors))
		})
	}
}

func TestReminderText_ByKind(t *testing.T) {
	assert.Equal(t, "<@U1>\nDue-date reminder: this task is due tomorrow. L", handlers.ReminderText(domain.RemindDueMinus1, "<@U1>", "L"))
	assert.Equal(t, "Weekly reminder: how is this task going? L", handlers.ReminderText(domain.RemindWeekly, "", "L"))
	assert.Equal(t, "Reminder: L", handlers.ReminderText(domain.RemindNone, "", "L"))
}

func TestRenderThread(t *testing.T) {
	got := handlers.RenderThread([]slack.ThreadMessage{{User: "U1", Text: "a"}, {Text: "b"}})
	assert.Equal(t, "[U1] a\n[unknown] b", got)
}
