package question

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	govalidator "github.com/go-playground/validator/v10"
	"github.com/stemsi/exstem-client/internal/model"
)

var (
	sessionQuestionsFields = []string{"questions", "items"}
	sessionStartFields     = []string{"startTime", "start_time", "startedAt", "started_at"}
	sessionDurationFields  = []string{"durationMinutes", "duration_minutes", "duration"}
)

var validate = govalidator.New(govalidator.WithRequiredStructEnabled())

// ParseSession decodes a stored session payload. Two shapes are accepted: a
// bare question array (legacy) or an object carrying questions plus optional
// start time and duration. Every failure wraps model.ErrSessionCorrupt.
func ParseSession(sessionID string, payload []byte) (*model.ExamSession, error) {
	payload = bytes.TrimSpace(payload)
	if len(payload) == 0 {
		return nil, fmt.Errorf("%w: empty payload", model.ErrSessionCorrupt)
	}

	sess := &model.ExamSession{SessionID: sessionID}

	var rawQuestions json.RawMessage
	switch payload[0] {
	case '[':
		rawQuestions = payload
	case '{':
		var envelope RawQuestion
		if err := json.Unmarshal(payload, &envelope); err != nil {
			return nil, fmt.Errorf("%w: %v", model.ErrSessionCorrupt, err)
		}
		q, ok := envelope.field(sessionQuestionsFields)
		if !ok {
			return nil, fmt.Errorf("%w: no question list", model.ErrSessionCorrupt)
		}
		rawQuestions = q
		if raw, ok := envelope.field(sessionStartFields); ok {
			sess.StartTime = parseStartTime(raw)
		}
		if raw, ok := envelope.field(sessionDurationFields); ok {
			sess.DurationMinutes = parseMinutes(raw)
		}
	default:
		return nil, fmt.Errorf("%w: unexpected payload shape", model.ErrSessionCorrupt)
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(rawQuestions, &entries); err != nil {
		return nil, fmt.Errorf("%w: questions: %v", model.ErrSessionCorrupt, err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: question list is empty", model.ErrSessionCorrupt)
	}

	sess.Questions = make([]model.ExamQuestion, 0, len(entries))
	seen := make(map[string]struct{}, len(entries))
	for i, entry := range entries {
		q, err := Parse(entry)
		if err != nil {
			return nil, fmt.Errorf("%w: question %d: %v", model.ErrSessionCorrupt, i, err)
		}
		if _, dup := seen[q.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate question id %s", model.ErrSessionCorrupt, q.ID)
		}
		seen[q.ID] = struct{}{}
		sess.Questions = append(sess.Questions, q)
	}

	if err := validate.Struct(sess); err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrSessionCorrupt, err)
	}

	return sess, nil
}

// parseStartTime accepts RFC 3339 strings or Unix epochs (milliseconds when
// the value is too large to be seconds). Unusable values are dropped: the
// countdown then falls back to the other sources.
func parseStartTime(raw json.RawMessage) *time.Time {
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil
		}
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return nil
		}
		return &t
	}

	n, ok := scalarString(raw)
	if !ok {
		return nil
	}
	epoch, err := strconv.ParseFloat(n, 64)
	if err != nil || epoch <= 0 {
		return nil
	}
	var t time.Time
	if epoch >= 1e12 {
		t = time.UnixMilli(int64(epoch))
	} else {
		t = time.Unix(int64(epoch), 0)
	}
	return &t
}

func parseMinutes(raw json.RawMessage) *float64 {
	s, ok := scalarString(raw)
	if !ok {
		return nil
	}
	m, err := strconv.ParseFloat(s, 64)
	if err != nil || m <= 0 {
		return nil
	}
	return &m
}
