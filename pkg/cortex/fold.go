package cortex

import (
	"encoding/json"
	"fmt"

	"github.com/mkessler/cortexagent/pkg/sse"
)

const (
	eventMessageDelta = "message.delta"
	eventDone         = "done"
)

// messageDelta is the payload of a message.delta event.
type messageDelta struct {
	Delta struct {
		Content []ContentBlock `json:"content"`
	} `json:"delta"`
}

// DecodeDelta parses the content blocks of a message.delta event.
// Other event names yield no blocks.
func DecodeDelta(ev *sse.Event) ([]ContentBlock, error) {
	if ev.Event != eventMessageDelta {
		return nil, nil
	}
	var delta messageDelta
	if err := json.Unmarshal([]byte(ev.Data), &delta); err != nil {
		return nil, fmt.Errorf("malformed %s payload: %w", eventMessageDelta, err)
	}
	return delta.Delta.Content, nil
}

// foldAgentEvents combines one stream of events into a single
// assistant message: text blocks concatenate into one block flushed at
// the end, every other block passes through in arrival order.
func foldAgentEvents(events []*sse.Event) (Message, error) {
	var blocks []ContentBlock
	var text string
	for _, ev := range events {
		content, err := DecodeDelta(ev)
		if err != nil {
			return Message{}, err
		}
		if len(content) == 0 {
			continue
		}
		if content[0].Type == string(blockTypeText) {
			text += content[0].Text
		} else {
			blocks = append(blocks, content...)
		}
	}
	if text != "" {
		blocks = append(blocks, ContentBlock{Type: string(blockTypeText), Text: text})
	}
	return Message{Role: RoleAssistant, Content: blocks}, nil
}

// completionDelta is the payload of a completion message event.
type completionDelta struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// DecodeCompletionDelta extracts the text delta of a completion
// message event, or an empty string for other event names.
func DecodeCompletionDelta(ev *sse.Event) (string, error) {
	if ev.Event != sse.DefaultEvent {
		return "", nil
	}
	var delta completionDelta
	if err := json.Unmarshal([]byte(ev.Data), &delta); err != nil {
		return "", fmt.Errorf("malformed completion payload: %w", err)
	}
	if len(delta.Choices) == 0 {
		return "", nil
	}
	return delta.Choices[0].Delta.Content, nil
}

// foldCompletionEvents folds a completion stream into one assistant
// message holding the concatenated text.
func foldCompletionEvents(events []*sse.Event) (Message, error) {
	var text string
	for _, ev := range events {
		delta, err := DecodeCompletionDelta(ev)
		if err != nil {
			return Message{}, err
		}
		text += delta
	}
	var blocks []ContentBlock
	if text != "" {
		blocks = append(blocks, ContentBlock{Type: string(blockTypeText), Text: text})
	}
	return Message{Role: RoleAssistant, Content: blocks}, nil
}
