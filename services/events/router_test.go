package events

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/2lu3/tetsumon-dayori/internal/domain"
)

func TestRouter_Classify(t *testing.T) {
	r := NewRouter("CTASK", "UBOT")

	tests := []struct {
		name string
		body string
		want Route
		ok   bool
	}{
		{
			name: "task reaction creates",
			body: `{"type":"event_callback","event":{"type":"reaction_added","user":"U1","reaction":"task","item":{"type":"message","channel":"CSRC","ts":"1.1"}}}`,
			want: Route{Job: domain.JobCreateTask, Key: "1.1", Args: domain.CreateTaskArgs{SourceChannel: "CSRC", SourceMessageID: "1.1", Reactor: "U1"}},
			ok:   true,
		},
		{
			name: "done reaction in task channel",
			body: `{"type":"event_callback","event":{"type":"reaction_added","user":"U2","reaction":"done","item":{"type":"message","channel":"CTASK","ts":"9.1"}}}`,
			want: Route{Job: domain.JobMarkDone, Key: "9.1", Args: domain.MarkDoneArgs{TaskChannel: "CTASK", TaskMessageID: "9.1", Actor: "U2"}},
			ok:   true,
		},
		{
			name: "done reaction elsewhere",
			body: `{"type":"event_callback","event":{"type":"reaction_added","user":"U2","reaction":"done","item":{"type":"message","channel":"CSRC","ts":"1.1"}}}`,
		},
		{
			name: "bot's own done marker",
			body: `{"type":"event_callback","event":{"type":"reaction_added","user":"UBOT","reaction":"done","item":{"type":"message","channel":"CTASK","ts":"9.1"}}}`,
		},
		{
			name: "other reaction",
			body: `{"type":"event_callback","event":{"type":"reaction_added","user":"U1","reaction":"eyes","item":{"type":"message","channel":"CSRC","ts":"1.1"}}}`,
		},
		{
			name: "reaction on a file",
			body: `{"type":"event_callback","event":{"type":"reaction_added","user":"U1","reaction":"task","item":{"type":"file","file":"F1"}}}`,
		},
		{
			name: "thread reply under tracking post",
			body: `{"type":"event_callback","event":{"type":"message","channel":"CTASK","user":"U3","text":"by friday","ts":"9.5","thread_ts":"9.1"}}`,
			want: Route{Job: domain.JobReplan, Key: "9.1", Args: domain.ReplanArgs{TaskMessageID: "9.1"}},
			ok:   true,
		},
		{
			name: "reply also sent to channel",
			body: `{"type":"event_callback","event":{"type":"message","subtype":"thread_broadcast","channel":"CTASK","user":"U3","text":"due 3/1","ts":"9.5","thread_ts":"9.1"}}`,
			want: Route{Job: domain.JobReplan, Key: "9.1", Args: domain.ReplanArgs{TaskMessageID: "9.1"}},
			ok:   true,
		},
		{
			name: "reply with attachment",
			body: `{"type":"event_callback","event":{"type":"message","subtype":"file_share","channel":"CTASK","user":"U3","text":"draft attached","ts":"9.6","thread_ts":"9.1"}}`,
			want: Route{Job: domain.JobReplan, Key: "9.1", Args: domain.ReplanArgs{TaskMessageID: "9.1"}},
			ok:   true,
		},
		{
			name: "deleted reply",
			body: `{"type":"event_callback","event":{"type":"message","subtype":"message_deleted","channel":"CTASK","ts":"9.8","thread_ts":"9.1"}}`,
		},
		{
			name: "top-level message in task channel",
			body: `{"type":"event_callback","event":{"type":"message","channel":"CTASK","user":"U3","text":"hi","ts":"9.5"}}`,
		},
		{
			name: "thread parent echo",
			body: `{"type":"event_callback","event":{"type":"message","channel":"CTASK","user":"U3","ts":"9.1","thread_ts":"9.1"}}`,
		},
		{
			name: "bot reminder reply",
			body: `{"type":"event_callback","event":{"type":"message","channel":"CTASK","user":"UBOT","bot_id":"B1","ts":"9.6","thread_ts":"9.1"}}`,
		},
		{
			name: "edited reply",
			body: `{"type":"event_callback","event":{"type":"message","subtype":"message_changed","channel":"CTASK","ts":"9.7","thread_ts":"9.1"}}`,
		},
		{
			name: "thread reply in another channel",
			body: `{"type":"event_callback","event":{"type":"message","channel":"CSRC","user":"U3","ts":"1.5","thread_ts":"1.1"}}`,
		},
		{
			name: "url verification",
			body: `{"type":"url_verification","challenge":"abc"}`,
		},
		{
			name: "garbage",
			body: `not json`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := r.Classify([]byte(tt.body))
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
