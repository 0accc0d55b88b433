package model

// ExamQuestion is the canonical question shape every engine component works on.
type ExamQuestion struct {
	ID      string   `json:"id" validate:"required"`
	Text    string   `json:"text"`
	Options []Option `json:"options"`
}

// Option is a canonical answer option. Letter carries an explicit option
// letter when the source payload provided one; it is empty otherwise.
type Option struct {
	ID     string `json:"id"`
	Label  string `json:"label"`
	Letter string `json:"letter,omitempty"`
}

// Question looks up a question by ID.
func (s *ExamSession) Question(questionID string) (*ExamQuestion, bool) {
	idx := s.QuestionIndex(questionID)
	if idx < 0 {
		return nil, false
	}
	return &s.Questions[idx], true
}
