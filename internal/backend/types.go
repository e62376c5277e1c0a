// Package backend talks to the external question-answering service.
package backend

import "encoding/json"

// QueryRequest is the body posted to the backend's /query endpoint.
type QueryRequest struct {
	Question string `json:"question"`
}

// Source is a piece of evidence the backend used to answer.
type Source struct {
	ID       string         `json:"id"`
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata,omitempty"`
	Score    *float64       `json:"score,omitempty"`
}

// Answer is the success envelope returned by the backend and relayed by the
// proxy unchanged.
type Answer struct {
	Answer  string   `json:"answer"`
	Route   string   `json:"route"`
	Sources []Source `json:"sources,omitempty"`
}

// ErrorBody is the failure envelope shared by the backend and the proxy.
type ErrorBody struct {
	Detail    string `json:"detail"`
	RequestID string `json:"request_id,omitempty"`
}

// DetailOf extracts a string "detail" field from a JSON body. Validation
// errors that carry a structured detail yield "".
func DetailOf(body []byte) string {
	var probe struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &probe); err != nil || len(probe.Detail) == 0 {
		return ""
	}
	var detail string
	if err := json.Unmarshal(probe.Detail, &detail); err != nil {
		return ""
	}
	return detail
}
