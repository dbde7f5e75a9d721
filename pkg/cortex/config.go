package cortex

import (
	"fmt"
	"slices"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// AllowedModels is the set of model identifiers the service accepts.
var AllowedModels = []string{
	"claude-3-5-sonnet",
	"mistral-large2",
	"llama3.3-70b",
	"llama3.1-70b",
}

const DefaultModel = "claude-3-5-sonnet"

const (
	ToolChoiceAuto     = "auto"
	ToolChoiceRequired = "required"
	ToolChoiceTool     = "tool"
)

var allowedToolChoices = []string{ToolChoiceAuto, ToolChoiceRequired, ToolChoiceTool}

// ToolChoice is the tool selection policy sent with each request.
type ToolChoice struct {
	Type string `json:"type"`
}

// defaultMaxSQLTurns bounds the recursive SQL-execution loop; a remote
// agent that never stops asking for SQL would otherwise run forever.
const defaultMaxSQLTurns = 8

// Configuration bundles everything serialized into an agent request:
// model, tools, tool resources, tool-choice policy and the response
// instruction.
type Configuration struct {
	Model               string
	Tools               []Tool
	ToolResources       []Resource
	ToolChoice          ToolChoice
	ResponseInstruction string
	Experimental        map[string]any

	// MaxSQLTurns caps how many times one exchange may execute SQL and
	// re-enter the conversation. Zero means the default.
	MaxSQLTurns int
}

// NewConfiguration validates the model against the allow-list; empty
// picks the default.
func NewConfiguration(model string) (*Configuration, error) {
	if model == "" {
		model = DefaultModel
	}
	if !slices.Contains(AllowedModels, model) {
		return nil, fmt.Errorf("%w: %q must be one of %v", ErrInvalidModel, model, AllowedModels)
	}
	return &Configuration{
		Model:        model,
		ToolChoice:   ToolChoice{Type: ToolChoiceAuto},
		Experimental: map[string]any{},
	}, nil
}

// SetToolChoice validates and sets the tool selection policy.
func (c *Configuration) SetToolChoice(choice string) error {
	if !slices.Contains(allowedToolChoices, choice) {
		return fmt.Errorf("%w: %q must be one of %v", ErrInvalidToolChoice, choice, allowedToolChoices)
	}
	c.ToolChoice = ToolChoice{Type: choice}
	return nil
}

// SetResponseInstruction sets the instruction text sent with every
// request.
func (c *Configuration) SetResponseInstruction(instruction string) {
	c.ResponseInstruction = instruction
}

// SetExperimentalFlags replaces the opaque experimental flag bag.
func (c *Configuration) SetExperimentalFlags(flags map[string]any) {
	c.Experimental = flags
}

// UnsetExperimentalFlags clears all experimental flags.
func (c *Configuration) UnsetExperimentalFlags() {
	c.Experimental = map[string]any{}
}

// AddTool declares a tool; names are unique within a configuration.
func (c *Configuration) AddTool(t Tool) error {
	for _, existing := range c.Tools {
		if existing.Name == t.Name {
			return fmt.Errorf("%w: tool %q", ErrDuplicateName, t.Name)
		}
	}
	c.Tools = append(c.Tools, t)
	return nil
}

// RemoveTool removes the tool with the given name, if declared.
func (c *Configuration) RemoveTool(name string) {
	c.Tools = slices.DeleteFunc(c.Tools, func(t Tool) bool {
		return t.Name == name
	})
}

// AddToolResource declares a resource; resource names are unique
// within a configuration.
func (c *Configuration) AddToolResource(r Resource) error {
	for _, existing := range c.ToolResources {
		if existing.Key() == r.Key() {
			return fmt.Errorf("%w: resource %q", ErrDuplicateName, r.Key())
		}
	}
	c.ToolResources = append(c.ToolResources, r)
	return nil
}

// RemoveToolResource removes the resource with the given name, if
// declared.
func (c *Configuration) RemoveToolResource(name string) {
	c.ToolResources = slices.DeleteFunc(c.ToolResources, func(r Resource) bool {
		return r.Key() == name
	})
}

func (c *Configuration) sqlExecTools() []Tool {
	var tools []Tool
	for _, t := range c.Tools {
		if t.Type == ToolTypeSQLExec {
			tools = append(tools, t)
		}
	}
	return tools
}

func (c *Configuration) maxSQLTurns() int {
	if c.MaxSQLTurns > 0 {
		return c.MaxSQLTurns
	}
	return defaultMaxSQLTurns
}

// toolResourcesMap serializes the resources keyed by resource name,
// preserving declaration order. Every resource must be bound to a
// declared tool of a resource-bearing type; this is checked here, not
// at construction.
func (c *Configuration) toolResourcesMap() (*orderedmap.OrderedMap[string, map[string]any], error) {
	resources := orderedmap.New[string, map[string]any]()
	for _, r := range c.ToolResources {
		bound := false
		for _, t := range c.Tools {
			if t.Name == r.Key() && (t.Type == ToolTypeSearch || t.Type == ToolTypeAnalyst) {
				bound = true
				break
			}
		}
		if !bound {
			return nil, fmt.Errorf("%w: %q", ErrUnboundResource, r.Key())
		}
		resources.Set(r.Key(), r.toWire())
	}
	return resources, nil
}

func (c *Configuration) wireTools() []wireTool {
	tools := make([]wireTool, 0, len(c.Tools))
	for _, t := range c.Tools {
		tools = append(tools, t.toWire())
	}
	return tools
}
