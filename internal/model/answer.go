package model

// AnswerMap maps question ID to the selected answer letter (A-D).
// Unanswered questions are absent; there is no placeholder value.
type AnswerMap map[string]string

// Clone returns an independent copy safe to hand to another goroutine.
func (m AnswerMap) Clone() AnswerMap {
	out := make(AnswerMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// AnswerSyncRequest is the best-effort per-answer record sent to the backend.
type AnswerSyncRequest struct {
	QuestionID       string `json:"questionId"`
	SelectedAnswer   string `json:"selectedAnswer"`
	TimeSpentSeconds int    `json:"timeSpentSeconds"`
}

// SubmitExamRequest is the authoritative final submission payload.
type SubmitExamRequest struct {
	Answers AnswerMap `json:"answers"`
}

// SelectAnswerRequest is the payload for answering the given question.
type SelectAnswerRequest struct {
	QuestionID string `json:"question_id" binding:"required,max=128"`
	OptionID   string `json:"option_id" binding:"required,max=128"`
}

// NavigateRequest moves the current question pointer. Index is only read
// for the goto action, which requires it.
type NavigateRequest struct {
	Action string `json:"action" binding:"required,oneof=next previous goto"`
	Index  *int   `json:"index" binding:"omitempty,min=0"`
}
