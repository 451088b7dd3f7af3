package domain

import (
	"encoding/json"
	"fmt"
)

// RequestState is the status of a single flow.
type RequestState string

const (
	StateIdle     RequestState = "idle"
	StateInFlight RequestState = "in-flight"
)

// QueryRequest is the body sent to the query endpoint
type QueryRequest struct {
	Question string `json:"question"`
}

// AnswerResult is the backend response to a question. Answer is the text to
// render; every other field (sources, context, ...) is kept verbatim in Fields.
type AnswerResult struct {
	Answer string
	Fields map[string]json.RawMessage
}

// HasAnswer reports whether there is answer text to render.
func (r *AnswerResult) HasAnswer() bool {
	return r != nil && r.Answer != ""
}

// UnmarshalJSON decodes an object, keeping unknown fields.
// A non-string "answer" is treated as absent.
func (r *AnswerResult) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	if fields == nil {
		return fmt.Errorf("answer result: expected JSON object")
	}
	r.Answer = ""
	if raw, ok := fields["answer"]; ok {
		var answer string
		if err := json.Unmarshal(raw, &answer); err == nil {
			r.Answer = answer
		}
	}
	delete(fields, "answer")
	r.Fields = fields
	return nil
}

// MarshalJSON re-emits the backend object with the answer merged back in.
func (r AnswerResult) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(r.Fields)+1)
	for k, v := range r.Fields {
		out[k] = v
	}
	answer, err := json.Marshal(r.Answer)
	if err != nil {
		return nil, err
	}
	out["answer"] = answer
	return json.Marshal(out)
}
