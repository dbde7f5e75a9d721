package cortex

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"sync"

	"github.com/mkessler/cortexagent/pkg/sse"
)

// streamBufferSize bounds the hand-off queue between the network
// reader and the consumer, so a stalled consumer cannot make the
// reader buffer the whole stream.
const streamBufferSize = 16

// Response is one element of an exchange's stream: either a message
// constructed locally (the echoed user turn) or a raw server event.
type Response struct {
	Message *Message
	Event   *sse.Event
}

// AgentHandler drives conversations with the agent-run endpoint. One
// handler owns one conversation: its message history, its raw
// transport history and its connection. Concurrent exchanges on the
// same handler are not supported; callers must serialize.
type AgentHandler struct {
	conn   *Connection
	config *Configuration

	apiHistory *APIHistory
	messages   *MessageHistory

	logger *slog.Logger
}

// NewAgentHandler creates a handler for one conversation session. A
// nil logger discards.
func NewAgentHandler(conn *Connection, config *Configuration, logger *slog.Logger) *AgentHandler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &AgentHandler{
		conn:       conn,
		config:     config,
		apiHistory: &APIHistory{},
		messages:   &MessageHistory{},
		logger:     logger,
	}
}

// Messages exposes the structured conversation history.
func (h *AgentHandler) Messages() *MessageHistory {
	return h.messages
}

// APIHistory exposes the raw transport history.
func (h *AgentHandler) APIHistory() *APIHistory {
	return h.apiHistory
}

// Configuration returns the configuration serialized into each
// request.
func (h *AgentHandler) Configuration() *Configuration {
	return h.config
}

// LoadMessages seeds the message history, e.g. when resuming a saved
// session.
func (h *AgentHandler) LoadMessages(ms []Message) {
	for _, m := range ms {
		h.messages.Add(m)
	}
}

// Send sends user text to the agent and streams the exchange back.
// The first element is the echoed user message; then every server
// event in arrival order, across as many nested SQL-execution turns
// as the agent requests. Breaking out of the iteration cancels the
// in-flight request.
func (h *AgentHandler) Send(ctx context.Context, text string) iter.Seq2[*Response, error] {
	return h.sendMessage(ctx, NewTextMessage(RoleUser, text), 0)
}

// SendMessage is Send for a pre-built message, e.g. a tool-result
// payload constructed by the caller.
func (h *AgentHandler) SendMessage(ctx context.Context, msg Message) iter.Seq2[*Response, error] {
	return h.sendMessage(ctx, msg, 0)
}

type streamItem struct {
	ev  *sse.Event
	err error
}

func (h *AgentHandler) sendMessage(ctx context.Context, msg Message, turn int) iter.Seq2[*Response, error] {
	return func(yield func(*Response, error) bool) {
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
		h.logger.Debug("agent request", "url", h.conn.endpointURL(agentRunEndpoint), "body", string(body))

		resp, err := openStream(ctx, h.conn, agentRunEndpoint, headers, body)
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

		folded, err := foldAgentEvents(events)
		if err != nil {
			yield(nil, &StreamError{Err: err})
			return
		}
		h.messages.Add(folded)
		h.logger.Info("exchange folded", "events", len(events), "blocks", len(folded.Content))

		req, ok := h.sqlExecRequested(events)
		if !ok {
			return
		}
		if turn >= h.config.maxSQLTurns() {
			yield(nil, fmt.Errorf("%w after %d turns", ErrSQLTurnLimit, turn))
			return
		}
		result, err := h.executeSQL(ctx, req)
		if err != nil {
			yield(nil, err)
			return
		}
		for r, err := range h.sendMessage(ctx, result, turn+1) {
			if !yield(r, err) {
				return
			}
		}
	}
}

// produceEvents reads the SSE stream into the hand-off channel. It
// owns the response body: the body is closed when the stream ends or
// the context is cancelled, and channel close is the end-of-stream
// sentinel. Read errors travel through the channel as values.
func produceEvents(ctx context.Context, body io.ReadCloser, ch chan<- streamItem) {
	defer close(ch)

	var closeOnce sync.Once
	closeBody := func() { closeOnce.Do(func() { body.Close() }) }
	defer closeBody()

	watchDone := make(chan struct{})
	defer close(watchDone)
	go func() {
		select {
		case <-ctx.Done():
			closeBody()
		case <-watchDone:
		}
	}()

	scanner := sse.NewScanner(body)
	for {
		ev, err := scanner.Scan()
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			if ctx.Err() != nil {
				// Teardown by the consumer, not a stream failure.
				return
			}
			select {
			case ch <- streamItem{err: &StreamError{Err: err}}:
			case <-ctx.Done():
			}
			return
		}
		select {
		case ch <- streamItem{ev: ev}:
		case <-ctx.Done():
			return
		}
	}
}

// executeSQL runs the detected statement through the warehouse
// collaborator and wraps the result as the next user turn.
func (h *AgentHandler) executeSQL(ctx context.Context, req sqlRequest) (Message, error) {
	if h.conn.Executor == nil {
		return Message{}, ErrNoExecutor
	}
	h.logger.Info("executing sql requested by agent", "tool", req.toolName, "tool_use_id", req.toolUseID)
	handle, table, err := runStatement(ctx, h.conn.Executor, req.statement)
	if err != nil {
		return Message{}, fmt.Errorf("execute sql statement: %w", err)
	}
	return newSQLResultMessage(req.toolName, req.toolUseID, handle.QueryID(), table), nil
}
