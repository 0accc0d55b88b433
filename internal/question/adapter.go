// Package question is the single parsing boundary between the heterogeneous
// question payloads produced by exam authoring tools and the canonical
// model.ExamQuestion shape. Nothing downstream looks at raw field names.
//
// Canonical schema:
//
//	question: {id: string, text: string, options: [{id, label, letter?}]}
//
// Accepted aliases are listed in the *Fields variables below and are tried in
// order; the first present, non-null field wins.
package question

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/stemsi/exstem-client/internal/model"
)

var (
	questionIDFields   = []string{"id", "question_id", "questionId", "_id", "qid"}
	questionTextFields = []string{"text", "question_text", "questionText", "question", "prompt", "content"}
	optionListFields   = []string{"options", "choices", "answers", "answer_options", "answerOptions"}
	optionIDFields     = []string{"id", "option_id", "optionId", "key", "_id"}
	optionLabelFields  = []string{"label", "text", "option_text", "optionText", "content", "value"}
	optionLetterFields = []string{"option_letter", "optionLetter", "letter"}
)

// AnswerLetters are the only letters a selection can resolve to.
var AnswerLetters = [...]string{"A", "B", "C", "D"}

// RawQuestion is a question object as it arrived, keyed by its original field names.
type RawQuestion map[string]json.RawMessage

// Parse converts one raw question into the canonical shape.
func Parse(raw json.RawMessage) (model.ExamQuestion, error) {
	var rq RawQuestion
	if err := json.Unmarshal(raw, &rq); err != nil {
		return model.ExamQuestion{}, fmt.Errorf("decode question: %w", err)
	}
	if rq == nil {
		return model.ExamQuestion{}, fmt.Errorf("question is null")
	}

	id, ok := rq.scalar(questionIDFields)
	if !ok || id == "" {
		return model.ExamQuestion{}, fmt.Errorf("question has no id")
	}
	text, _ := rq.scalar(questionTextFields)

	options, err := NormalizeOptions(rq)
	if err != nil {
		return model.ExamQuestion{}, fmt.Errorf("question %s: %w", id, err)
	}

	return model.ExamQuestion{ID: id, Text: text, Options: options}, nil
}

// NormalizeOptions extracts the options of a raw question in document order.
//
// Array entries may be primitives (the value becomes the label) or objects;
// their ID is the explicit id field, else the positional letter A..Z.
// Map entries use the map key as ID. A question without options yields nil.
func NormalizeOptions(rq RawQuestion) ([]model.Option, error) {
	raw, ok := rq.field(optionListFields)
	if !ok {
		return nil, nil
	}
	raw = bytes.TrimSpace(raw)

	switch raw[0] {
	case '[':
		var entries []json.RawMessage
		if err := json.Unmarshal(raw, &entries); err != nil {
			return nil, fmt.Errorf("decode options: %w", err)
		}
		options := make([]model.Option, 0, len(entries))
		for i, entry := range entries {
			opt, err := optionFromEntry(entry, fallbackID(i))
			if err != nil {
				return nil, fmt.Errorf("option %d: %w", i, err)
			}
			options = append(options, opt)
		}
		return options, nil

	case '{':
		keys, values, err := decodeOrdered(raw)
		if err != nil {
			return nil, fmt.Errorf("decode options: %w", err)
		}
		options := make([]model.Option, 0, len(keys))
		for i, key := range keys {
			opt, err := optionFromEntry(values[i], key)
			if err != nil {
				return nil, fmt.Errorf("option %q: %w", key, err)
			}
			opt.ID = key
			options = append(options, opt)
		}
		return options, nil

	default:
		return nil, fmt.Errorf("options must be an array or an object")
	}
}

// ResolveAnswerLetter maps a selected option ID to its canonical answer letter.
// An ID that already is one of A-D is returned as is. Otherwise the option's
// explicit letter wins, then its position. The result depends only on the
// inputs.
func ResolveAnswerLetter(q model.ExamQuestion, optionID string) (string, error) {
	if isAnswerLetter(optionID) {
		return optionID, nil
	}

	for i, opt := range q.Options {
		if opt.ID != optionID {
			continue
		}
		if letter := strings.ToUpper(strings.TrimSpace(opt.Letter)); isAnswerLetter(letter) {
			return letter, nil
		}
		if i < len(AnswerLetters) {
			return AnswerLetters[i], nil
		}
		return "", fmt.Errorf("%w: option %q at position %d", model.ErrNoAnswerLetter, optionID, i)
	}

	return "", fmt.Errorf("%w: %q in question %s", model.ErrUnknownOption, optionID, q.ID)
}

func optionFromEntry(entry json.RawMessage, fallback string) (model.Option, error) {
	entry = bytes.TrimSpace(entry)
	if len(entry) == 0 {
		return model.Option{}, fmt.Errorf("empty option")
	}

	if entry[0] != '{' {
		label, ok := scalarString(entry)
		if !ok {
			return model.Option{}, fmt.Errorf("unsupported option value %s", entry)
		}
		return model.Option{ID: fallback, Label: label}, nil
	}

	var ro RawQuestion
	if err := json.Unmarshal(entry, &ro); err != nil {
		return model.Option{}, err
	}
	id, ok := ro.scalar(optionIDFields)
	if !ok || id == "" {
		id = fallback
	}
	label, _ := ro.scalar(optionLabelFields)
	letter, _ := ro.scalar(optionLetterFields)

	return model.Option{ID: id, Label: label, Letter: letter}, nil
}

// fallbackID names the option at position i: A..Z, then 27, 28, ...
func fallbackID(i int) string {
	if i < 26 {
		return string(rune('A' + i))
	}
	return strconv.Itoa(i + 1)
}

func isAnswerLetter(s string) bool {
	for _, l := range AnswerLetters {
		if s == l {
			return true
		}
	}
	return false
}

func (rq RawQuestion) field(candidates []string) (json.RawMessage, bool) {
	for _, name := range candidates {
		v, ok := rq[name]
		if !ok {
			continue
		}
		v = bytes.TrimSpace(v)
		if len(v) == 0 || bytes.Equal(v, []byte("null")) {
			continue
		}
		return v, true
	}
	return nil, false
}

func (rq RawQuestion) scalar(candidates []string) (string, bool) {
	for _, name := range candidates {
		v, ok := rq[name]
		if !ok {
			continue
		}
		if s, ok := scalarString(v); ok {
			return s, true
		}
	}
	return "", false
}

// scalarString renders a JSON string or number as text.
func scalarString(raw json.RawMessage) (string, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return "", false
	}
	switch {
	case raw[0] == '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", false
		}
		return s, true
	case raw[0] == '-' || (raw[0] >= '0' && raw[0] <= '9'):
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			return "", false
		}
		return n.String(), true
	default:
		return "", false
	}
}

// decodeOrdered decodes a JSON object keeping its keys in document order.
func decodeOrdered(raw json.RawMessage) ([]string, []json.RawMessage, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	if _, err := dec.Token(); err != nil {
		return nil, nil, err
	}

	var (
		keys   []string
		values []json.RawMessage
	)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, nil, fmt.Errorf("unexpected key %v", tok)
		}
		var v json.RawMessage
		if err := dec.Decode(&v); err != nil {
			return nil, nil, err
		}
		keys = append(keys, key)
		values = append(values, v)
	}
	return keys, values, nil
}
