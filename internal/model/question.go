package model

// QuestionType enumerates the question kinds the session understands.
type QuestionType string

const (
	QuestionTypeMCQ QuestionType = "MCQ"
)

// Question is one entry of GET /api/questions/quiz/{quizId}. CorrectAnswer is
// only used for the optimistic score shown right after submission.
type Question struct {
	ID            ID           `json:"id"`
	Type          QuestionType `json:"type"`
	Text          string       `json:"questionText,omitempty"`
	Options       []string     `json:"options"`
	CorrectAnswer string       `json:"correctAnswer,omitempty"`
}

// Selections maps question id to the selected option.
type Selections map[string]string

// Clone returns an independent copy.
func (s Selections) Clone() Selections {
	out := make(Selections, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}
