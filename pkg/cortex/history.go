package cortex

import (
	"net/http"

	"github.com/mkessler/cortexagent/pkg/sse"
)

// MessageHistory is the append-only structured conversation log of one
// session. The engine is its single writer; Snapshot gives readers a
// copy so appends never show up mid-iteration.
type MessageHistory struct {
	messages []Message
}

func (h *MessageHistory) Add(m Message) {
	h.messages = append(h.messages, m)
}

func (h *MessageHistory) Len() int {
	return len(h.messages)
}

// Snapshot returns a copy of the history for presentation.
func (h *MessageHistory) Snapshot() []Message {
	out := make([]Message, len(h.messages))
	copy(out, h.messages)
	return out
}

// Reset drops the whole history. Individual messages are never
// removed.
func (h *MessageHistory) Reset() {
	h.messages = nil
}

// forAgentCall is the wire projection: a deep copy with tabular SQL
// results stripped from user tool-result payloads. The query ID stays.
func (h *MessageHistory) forAgentCall() []Message {
	out := make([]Message, 0, len(h.messages))
	for _, m := range h.messages {
		c := m.clone()
		if c.Role == RoleUser {
			for _, b := range c.Content {
				if b.ToolResults == nil {
					continue
				}
				for _, rc := range b.ToolResults.Content {
					delete(rc.JSON, resultKeyTable)
				}
			}
		}
		out = append(out, c)
	}
	return out
}

// completionMessage is the flat projection the completion endpoint
// expects.
type completionMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

func (h *MessageHistory) forCompleteCall() []completionMessage {
	out := make([]completionMessage, 0, len(h.messages))
	for _, m := range h.messages {
		out = append(out, completionMessage{Role: m.Role, Content: m.Text()})
	}
	return out
}

// APIRequest is the raw record of one request sent to the service.
type APIRequest struct {
	Header http.Header
	Body   []byte
}

// APIResponse is the raw record of one streamed event, tagged with the
// response headers it arrived under.
type APIResponse struct {
	Header http.Header
	Event  sse.Event
}

// APIRecord is one entry of the transport history: either a request
// or a response event.
type APIRecord struct {
	Request  *APIRequest
	Response *APIResponse
}

// APIHistory is the append-only raw transport log, kept for audit and
// replay. It is never re-parsed into the message model.
type APIHistory struct {
	records []APIRecord
}

func (h *APIHistory) AddRequest(header http.Header, body []byte) {
	b := make([]byte, len(body))
	copy(b, body)
	h.records = append(h.records, APIRecord{Request: &APIRequest{
		Header: header.Clone(),
		Body:   b,
	}})
}

func (h *APIHistory) AddResponse(header http.Header, ev *sse.Event) {
	h.records = append(h.records, APIRecord{Response: &APIResponse{
		Header: header.Clone(),
		Event:  *ev,
	}})
}

func (h *APIHistory) Len() int {
	return len(h.records)
}

// Snapshot returns a copy of the transport log.
func (h *APIHistory) Snapshot() []APIRecord {
	out := make([]APIRecord, len(h.records))
	copy(out, h.records)
	return out
}
