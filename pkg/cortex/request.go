package cortex

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// requestBody is the agent-run wire format.
type requestBody struct {
	Model               string                                         `json:"model"`
	Tools               []wireTool                                     `json:"tools"`
	ToolResources       *orderedmap.OrderedMap[string, map[string]any] `json:"tool_resources"`
	ToolChoice          ToolChoice                                     `json:"tool_choice"`
	ResponseInstruction string                                         `json:"response_instruction"`
	Messages            []Message                                      `json:"messages"`
}

func (h *AgentHandler) buildRequest(ctx context.Context) (http.Header, []byte, error) {
	headers := http.Header{}
	if err := h.conn.authorize(ctx, headers); err != nil {
		return nil, nil, err
	}
	headers.Set("Content-Type", "application/json")
	headers.Set("Accept", "text/event-stream")

	resources, err := h.config.toolResourcesMap()
	if err != nil {
		return nil, nil, err
	}
	body, err := json.Marshal(requestBody{
		Model:               h.config.Model,
		Tools:               h.config.wireTools(),
		ToolResources:       resources,
		ToolChoice:          h.config.ToolChoice,
		ResponseInstruction: h.config.ResponseInstruction,
		Messages:            h.messages.forAgentCall(),
	})
	if err != nil {
		return nil, nil, err
	}
	return headers, body, nil
}

// openStream POSTs the body and hands back the response stream. A
// non-success status is reported as a TransportError before any event
// is read.
func openStream(ctx context.Context, conn *Connection, endpoint string, headers http.Header, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, conn.endpointURL(endpoint), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	for key, values := range headers {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	resp, err := conn.httpClient().Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode/100 != 2 {
		defer resp.Body.Close()
		data, _ := io.ReadAll(resp.Body)
		return nil, newTransportError(resp.StatusCode, data)
	}
	return resp, nil
}
