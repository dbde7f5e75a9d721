// Package cortex is a client SDK for the Cortex agent REST API. It
// assembles agent requests from a configuration and a conversation
// history, streams server-sent events back, folds them into structured
// messages, and runs requested SQL statements through a warehouse
// collaborator before re-entering the conversation.
package cortex

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type blockType string

const (
	blockTypeText        blockType = "text"
	blockTypeToolUse     blockType = "tool_use"
	blockTypeToolResults blockType = "tool_results"
	blockTypeChart       blockType = "chart"
)

// ToolUse is the agent's request to invoke a tool.
type ToolUse struct {
	Name      string         `json:"name"`
	ToolUseID string         `json:"tool_use_id"`
	Input     map[string]any `json:"input,omitempty"`
}

// ResultContent is one element of a tool result; the payload is
// either a JSON object or plain text, tagged by Type.
type ResultContent struct {
	Type string         `json:"type"`
	JSON map[string]any `json:"json,omitempty"`
	Text string         `json:"text,omitempty"`
}

// ToolResults carries the outcome of a tool invocation back to the
// agent.
type ToolResults struct {
	Name      string          `json:"name"`
	ToolUseID string          `json:"tool_use_id"`
	Content   []ResultContent `json:"content"`
}

// Chart is a generated chart specification (vega-lite JSON).
type Chart struct {
	ChartSpec string `json:"chart_spec"`
}

// ContentBlock is one block of message content. Type discriminates
// which of the payload fields is set.
type ContentBlock struct {
	Type        string       `json:"type"`
	Text        string       `json:"text,omitempty"`
	ToolUse     *ToolUse     `json:"tool_use,omitempty"`
	ToolResults *ToolResults `json:"tool_results,omitempty"`
	Chart       *Chart       `json:"chart,omitempty"`
}

// Message is one conversational turn. Messages are immutable once
// appended to a history; a new turn is always a new Message.
type Message struct {
	Role    Role           `json:"role"`
	Content []ContentBlock `json:"content"`
}

// NewTextMessage builds a message holding a single text block.
func NewTextMessage(role Role, text string) Message {
	return Message{
		Role: role,
		Content: []ContentBlock{{
			Type: string(blockTypeText),
			Text: text,
		}},
	}
}

// Text returns the text of the first text block, or an empty string.
// The completion endpoint uses this flattened form.
func (m Message) Text() string {
	for _, b := range m.Content {
		if b.Type == string(blockTypeText) {
			return b.Text
		}
	}
	return ""
}

// ToolResults returns the tool-results payload of the first
// tool_results block, or nil.
func (m Message) ToolResults() *ToolResults {
	for _, b := range m.Content {
		if b.Type == string(blockTypeToolResults) {
			return b.ToolResults
		}
	}
	return nil
}

func (m Message) clone() Message {
	c := Message{Role: m.Role, Content: make([]ContentBlock, len(m.Content))}
	for i, b := range m.Content {
		if b.ToolUse != nil {
			tu := *b.ToolUse
			tu.Input = cloneJSONMap(tu.Input)
			b.ToolUse = &tu
		}
		if b.ToolResults != nil {
			tr := *b.ToolResults
			tr.Content = make([]ResultContent, len(b.ToolResults.Content))
			for j, rc := range b.ToolResults.Content {
				rc.JSON = cloneJSONMap(rc.JSON)
				tr.Content[j] = rc
			}
			b.ToolResults = &tr
		}
		if b.Chart != nil {
			ch := *b.Chart
			b.Chart = &ch
		}
		c.Content[i] = b
	}
	return c
}

func cloneJSONMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	c := make(map[string]any, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}

// ResultTable is a tabular SQL result returned by the warehouse
// collaborator.
type ResultTable struct {
	Columns []string         `json:"columns"`
	Rows    []map[string]any `json:"rows"`
}

// Keys of the JSON payload wrapping a local SQL execution result.
// resultKeyTable is stripped by the wire projection; the agent only
// ever sees the query ID.
const (
	resultKeyQueryID = "query_id"
	resultKeyTable   = "result_set"
)

// newSQLResultMessage wraps a finished SQL execution as a user-role
// tool-result message.
func newSQLResultMessage(toolName, toolUseID, queryID string, table *ResultTable) Message {
	return Message{
		Role: RoleUser,
		Content: []ContentBlock{{
			Type: string(blockTypeToolResults),
			ToolResults: &ToolResults{
				Name:      toolName,
				ToolUseID: toolUseID,
				Content: []ResultContent{{
					Type: "json",
					JSON: map[string]any{
						resultKeyQueryID: queryID,
						resultKeyTable:   table,
					},
				}},
			},
		}},
	}
}
