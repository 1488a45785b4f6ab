package events

import (
	"github.com/tidwall/gjson"

	"github.com/2lu3/tetsumon-dayori/internal/domain"
)

// RouteIgnored labels events that map to no job.
const RouteIgnored = "ignored"

// replySubtypes are the message subtypes that post new text into a thread.
// Edits, deletions, joins and other housekeeping subtypes are ignored.
var replySubtypes = map[string]bool{
	"":                 true,
	"thread_broadcast": true,
	"file_share":       true,
}

// Route is the job an inbound event maps to.
type Route struct {
	Job  domain.JobName
	Key  string
	Args any
}

// Router classifies Slack Events API callbacks into jobs. It never calls
// out to Slack or the store.
type Router struct {
	taskChannel string
	botUserID   string
}

// NewRouter returns a Router for the given tracking channel. botUserID is
// the bot's own user id; events it authored are ignored.
func NewRouter(taskChannel, botUserID string) *Router {
	return &Router{taskChannel: taskChannel, botUserID: botUserID}
}

// Classify maps an event_callback body to a job. ok is false for every
// event shape that needs no work.
func (r *Router) Classify(body []byte) (Route, bool) {
	if gjson.GetBytes(body, "type").String() != "event_callback" {
		return Route{}, false
	}
	ev := gjson.GetBytes(body, "event")
	switch ev.Get("type").String() {
	case "reaction_added":
		return r.reaction(ev)
	case "message":
		return r.threadReply(ev)
	}
	return Route{}, false
}

func (r *Router) reaction(ev gjson.Result) (Route, bool) {
	user := ev.Get("user").String()
	channel := ev.Get("item.channel").String()
	ts := ev.Get("item.ts").String()
	if ev.Get("item.type").String() != "message" || channel == "" || ts == "" {
		return Route{}, false
	}
	if user == "" || r.isBot(user) {
		return Route{}, false
	}

	switch ev.Get("reaction").String() {
	case domain.ReactionCreate:
		return Route{
			Job:  domain.JobCreateTask,
			Key:  ts,
			Args: domain.CreateTaskArgs{SourceChannel: channel, SourceMessageID: ts, Reactor: user},
		}, true
	case domain.ReactionDone:
		// Only tracking posts live in the task channel; the handler resolves
		// the rest.
		if channel != r.taskChannel {
			return Route{}, false
		}
		return Route{
			Job:  domain.JobMarkDone,
			Key:  ts,
			Args: domain.MarkDoneArgs{TaskChannel: channel, TaskMessageID: ts, Actor: user},
		}, true
	}
	return Route{}, false
}

func (r *Router) threadReply(ev gjson.Result) (Route, bool) {
	if ev.Get("channel").String() != r.taskChannel {
		return Route{}, false
	}
	if !replySubtypes[ev.Get("subtype").String()] || ev.Get("bot_id").Exists() {
		return Route{}, false
	}
	user := ev.Get("user").String()
	if user == "" || r.isBot(user) {
		return Route{}, false
	}
	threadTS := ev.Get("thread_ts").String()
	if threadTS == "" || threadTS == ev.Get("ts").String() {
		return Route{}, false
	}
	return Route{
		Job:  domain.JobReplan,
		Key:  threadTS,
		Args: domain.ReplanArgs{TaskMessageID: threadTS},
	}, true
}

func (r *Router) isBot(user string) bool {
	return r.botUserID != "" && user == r.botUserID
}
