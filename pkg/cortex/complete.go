package cortex

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"log/slog"
	"net/http"
	"slices"

	"github.com/mkessler/cortexagent/pkg/sse"
)

// completionBody is the inference:complete wire format. Sampling is
// pinned to the minimum-randomness values.
type completionBody struct {
	Model       string              `json:"model"`
	TopP        int                 `json:"top_p"`
	Temperature int                 `json:"temperature"`
	Messages    []completionMessage `json:"messages"`
}

// CompletionHandler drives tool-free streaming exchanges against the
// plain completion endpoint, e.g. for summarizing a chart. Same
// stream-and-fold shape as AgentHandler, without tool detection.
type CompletionHandler struct {
	conn  *Connection
	model string

	apiHistory *APIHistory
	messages   *MessageHistory

	logger *slog.Logger
}

func NewCompletionHandler(conn *Connection, model string, logger *slog.Logger) (*CompletionHandler, error) {
	if model == "" {
		model = DefaultModel
	}
	if !slices.Contains(AllowedModels, model) {
		return nil, fmt.Errorf("%w: %q must be one of %v", ErrInvalidModel, model, AllowedModels)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &CompletionHandler{
		conn:       conn,
		model:      model,
		apiHistory: &APIHistory{},
		messages:   &MessageHistory{},
		logger:     logger,
	}, nil
}

// Messages exposes the completion conversation history.
func (h *CompletionHandler) Messages() *MessageHistory {
	return h.messages
}

// APIHistory exposes the raw transport history.
func (h *CompletionHandler) APIHistory() *APIHistory {
	return h.apiHistory
}

func (h *CompletionHandler) buildRequest(ctx context.Context) (http.Header, []byte, error) {
	headers := http.Header{}
	if err := h.conn.authorize(ctx, headers); err != nil {
		return nil, nil, err
	}
	headers.Set("Content-Type", "application/json")
	headers.Set("Accept", "application/json, text/event-stream")

	body, err := json.Marshal(completionBody{
		Model:    h.model,
		Messages: h.messages.forCompleteCall(),
	})
	if err != nil {
		return nil, nil, err
	}
	return headers, body, nil
}

// Send sends a prompt to the completion endpoint and streams the
// exchange back: first the echoed user message, then each server
// event in arrival order.
func (h *CompletionHandler) Send(ctx context.Context, prompt string) iter.Seq2[*Response, error] {
	return func(yield func(*Response, error) bool) {
		msg := NewTextMessage(RoleUser, prompt)
		h.messages.Add(msg)
		if !yield(&Response{Message: &msg}, nil) {
			return
		}

		headers, body, err := h.buildRequest(ctx)
		if err != nil {
			yield(nil, err)
			return
		}
		h.apiHistory.AddRequest(headers, body)

		resp, err := openStream(ctx, h.conn, completeEndpoint, headers, body)
		if err != nil {
			yield(nil, err)
			return
		}

		streamCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		ch := make(chan streamItem, streamBufferSize)
		go produceEvents(streamCtx, resp.Body, ch)

		var events []*sse.Event
		for item := range ch {
			if item.err != nil {
				if !yield(nil, item.err) {
					return
				}
				continue
			}
			h.apiHistory.AddResponse(resp.Header, item.ev)
			events = append(events, item.ev)
			if !yield(&Response{Event: item.ev}, nil) {
				return
			}
		}

		folded, err := foldCompletionEvents(events)
		if err != nil {
			yield(nil, &StreamError{Err: err})
			return
		}
		h.messages.Add(folded)
	}
}

// Complete runs one full exchange and returns the folded response
// text.
func (h *CompletionHandler) Complete(ctx context.Context, prompt string) (string, error) {
	for _, err := range h.Send(ctx, prompt) {
		if err != nil {
			return "", err
		}
	}
	snapshot := h.messages.Snapshot()
	if len(snapshot) == 0 {
		return "", nil
	}
	return snapshot[len(snapshot)-1].Text(), nil
}
