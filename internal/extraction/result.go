package extraction

import (
	"strings"

	"github.com/tidwall/gjson"

	"github.com/2lu3/tetsumon-dayori/internal/domain"
)

// Result is what the model determined about a task thread. Empty Assignee
// and nil DueDate mean "unknown".
type Result struct {
	Assignee          string
	AssigneeRationale string
	DueDate           *domain.Date
	DueRationale      string
}

// ParseResult validates the model's JSON answer of the form
//
//	{"assignee": {"user_id": "U123" | null, "rationale": "..."},
//	 "due_date": {"date": "2024-12-31" | null, "rationale": "..."}}
//
// Missing sections are treated as null. Anything else that does not fit the
// shape is an *domain.ExtractionError.
func ParseResult(raw string) (Result, error) {
	raw = strings.TrimSpace(raw)
	if !gjson.Valid(raw) {
		return Result{}, &domain.ExtractionError{Reason: "response is not valid JSON"}
	}
	root := gjson.Parse(raw)
	if !root.IsObject() {
		return Result{}, &domain.ExtractionError{Reason: "response is not a JSON object"}
	}

	var res Result

	assignee := root.Get("assignee")
	if err := checkSection(assignee, "assignee"); err != nil {
		return Result{}, err
	}
	userID, err := optionalString(assignee.Get("user_id"), "assignee.user_id")
	if err != nil {
		return Result{}, err
	}
	res.Assignee = userID
	res.AssigneeRationale = assignee.Get("rationale").String()

	due := root.Get("due_date")
	if err := checkSection(due, "due_date"); err != nil {
		return Result{}, err
	}
	dateStr, err := optionalString(due.Get("date"), "due_date.date")
	if err != nil {
		return Result{}, err
	}
	if dateStr != "" {
		d, err := domain.ParseDate(dateStr)
		if err != nil {
			return Result{}, &domain.ExtractionError{Reason: "due_date.date is not YYYY-MM-DD", Err: err}
		}
		res.DueDate = &d
	}
	res.DueRationale = due.Get("rationale").String()

	return res, nil
}

func checkSection(v gjson.Result, field string) error {
	if !v.Exists() || v.Type == gjson.Null || v.IsObject() {
		return nil
	}
	return &domain.ExtractionError{Reason: field + " must be an object or null"}
}

func optionalString(v gjson.Result, field string) (string, error) {
	switch v.Type {
	case gjson.Null:
		return "", nil
	case gjson.String:
		s := strings.TrimSpace(v.String())
		if strings.EqualFold(s, "null") {
			return "", nil
		}
		return s, nil
	default:
		return "", &domain.ExtractionError{Reason: field + " must be a string or null"}
	}
}
