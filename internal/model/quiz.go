package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ID is an identifier the quiz API may send as a JSON number or string.
type ID string

// UnmarshalJSON accepts 42, "42" and null.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id: %w", err)
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string { return string(id) }

// Quiz is the quiz metadata returned by GET /api/quizzes/code/{code}.
type Quiz struct {
	ID             ID     `json:"id"`
	Title          string `json:"title"`
	Description    string `json:"description,omitempty"`
	Code           string `json:"code"`
	Active         bool   `json:"active"`
	QuestionsCount int    `json:"questionsCount"`
	// TimeLimit is in minutes; nil when the quiz has no limit.
	TimeLimit *int `json:"timeLimit,omitempty"`
}

// UnmarshalJSON tolerates the loose shapes the API sends: active as a bool or
// the strings "true"/"false" (absent means active), numeric fields as numbers
// or numeric strings.
func (q *Quiz) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID             ID              `json:"id"`
		Title          string          `json:"title"`
		Description    string          `json:"description"`
		Code           string          `json:"code"`
		Active         json.RawMessage `json:"active"`
		QuestionsCount json.RawMessage `json:"questionsCount"`
		TimeLimit      json.RawMessage `json:"timeLimit"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	q.ID = raw.ID
	q.Title = raw.Title
	q.Description = raw.Description
	q.Code = raw.Code
	q.Active = !isFalse(raw.Active)

	count, err := looseInt(raw.QuestionsCount)
	if err != nil {
		return fmt.Errorf("questionsCount: %w", err)
	}
	if count != nil {
		q.QuestionsCount = *count
	}
	limit, err := looseInt(raw.TimeLimit)
	if err != nil {
		return fmt.Errorf("timeLimit: %w", err)
	}
	q.TimeLimit = limit
	return nil
}

func isFalse(raw json.RawMessage) bool {
	s := strings.Trim(string(bytes.TrimSpace(raw)), `"`)
	return s == "false"
}

func looseInt(raw json.RawMessage) (*int, error) {
	s := strings.Trim(string(bytes.TrimSpace(raw)), `"`)
	if s == "" || s == "null" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	n := int(f)
	return &n, nil
}
