package cortex

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// ErrAgentExists is returned when saving over an existing agent
// without the overwrite flag.
var ErrAgentExists = errors.New("agent already exists")

// ErrAgentNotFound is returned when loading an agent that is not in
// the table.
var ErrAgentNotFound = errors.New("agent not found")

// persistedConfig is the AGENT_CONFIGURATION table payload. Resources
// carry a type discriminant the wire format does not.
type persistedConfig struct {
	Model               string                                         `json:"model"`
	Tools               []wireTool                                     `json:"tools"`
	ToolResources       *orderedmap.OrderedMap[string, map[string]any] `json:"tool_resources"`
	ToolChoice          ToolChoice                                     `json:"tool_choice"`
	ResponseInstruction string                                         `json:"response_instruction"`
	Experimental        map[string]any                                 `json:"experimental"`
}

// Save serializes the configuration for persistence. Unlike the wire
// body, resource binding is not validated here and experimental flags
// are included.
func (c *Configuration) Save() ([]byte, error) {
	resources := orderedmap.New[string, map[string]any]()
	for _, r := range c.ToolResources {
		resources.Set(r.Key(), persistResource(r))
	}
	return json.Marshal(persistedConfig{
		Model:               c.Model,
		Tools:               c.wireTools(),
		ToolResources:       resources,
		ToolChoice:          c.ToolChoice,
		ResponseInstruction: c.ResponseInstruction,
		Experimental:        c.Experimental,
	})
}

// LoadConfiguration rebuilds a configuration from its persisted form.
func LoadConfiguration(data []byte) (*Configuration, error) {
	var p persistedConfig
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	cfg, err := NewConfiguration(p.Model)
	if err != nil {
		return nil, err
	}
	cfg.ToolChoice = p.ToolChoice
	cfg.ResponseInstruction = p.ResponseInstruction
	if p.Experimental != nil {
		cfg.Experimental = p.Experimental
	}
	for _, wt := range p.Tools {
		t, err := NewTool(wt.ToolSpec.Name, wt.ToolSpec.Type)
		if err != nil {
			return nil, err
		}
		if err := cfg.AddTool(t); err != nil {
			return nil, err
		}
	}
	if p.ToolResources != nil {
		for pair := p.ToolResources.Oldest(); pair != nil; pair = pair.Next() {
			r, err := resourceFromPersisted(pair.Key, pair.Value)
			if err != nil {
				return nil, err
			}
			if err := cfg.AddToolResource(r); err != nil {
				return nil, err
			}
		}
	}
	return cfg, nil
}

// AgentInfo is one row of the agents table, minus the configuration
// payload.
type AgentInfo struct {
	Name        string
	Description string
	CreatedBy   string
	CreatedAt   string
}

// Store persists agent configurations to a warehouse table through
// the SQL execution collaborator.
//
// Table layout: AGENT_NAME, AGENT_DESCRIPTION, AGENT_CONFIGURATION
// (JSON variant), CREATED_BY, CREATED_AT.
type Store struct {
	exec  SQLExecutor
	table string
}

// NewStore wraps the executor for the given (optionally qualified)
// table name.
func NewStore(exec SQLExecutor, table string) *Store {
	return &Store{exec: exec, table: table}
}

// Save writes the configuration under agentName. An existing agent is
// only replaced when overwrite is set; otherwise ErrAgentExists.
func (s *Store) Save(ctx context.Context, agentName, description string, cfg *Configuration, overwrite bool) error {
	payload, err := cfg.Save()
	if err != nil {
		return err
	}
	exists, err := s.exists(ctx, agentName)
	if err != nil {
		return err
	}
	if exists && !overwrite {
		return fmt.Errorf("%w: %q", ErrAgentExists, agentName)
	}
	var stmt string
	if exists {
		stmt = fmt.Sprintf(
			"UPDATE %s SET AGENT_DESCRIPTION = '%s', AGENT_CONFIGURATION = PARSE_JSON('%s'), CREATED_BY = CURRENT_USER(), CREATED_AT = CURRENT_TIMESTAMP() WHERE AGENT_NAME = '%s'",
			s.table, escapeSQL(description), escapeSQL(string(payload)), escapeSQL(agentName))
	} else {
		stmt = fmt.Sprintf(
			"INSERT INTO %s (AGENT_NAME, AGENT_DESCRIPTION, AGENT_CONFIGURATION, CREATED_BY, CREATED_AT) SELECT '%s', '%s', PARSE_JSON('%s'), CURRENT_USER(), CURRENT_TIMESTAMP()",
			s.table, escapeSQL(agentName), escapeSQL(description), escapeSQL(string(payload)))
	}
	_, _, err = runStatement(ctx, s.exec, stmt)
	return err
}

// Load reads the configuration saved under agentName.
func (s *Store) Load(ctx context.Context, agentName string) (*Configuration, error) {
	stmt := fmt.Sprintf(
		"SELECT AGENT_CONFIGURATION FROM %s WHERE AGENT_NAME = '%s'",
		s.table, escapeSQL(agentName))
	_, table, err := runStatement(ctx, s.exec, stmt)
	if err != nil {
		return nil, err
	}
	if len(table.Rows) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrAgentNotFound, agentName)
	}
	raw, err := firstValue(table.Rows[0])
	if err != nil {
		return nil, err
	}
	switch v := raw.(type) {
	case string:
		return LoadConfiguration([]byte(v))
	case map[string]any:
		// Some executors return the variant already decoded.
		data, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		return LoadConfiguration(data)
	}
	return nil, fmt.Errorf("unexpected AGENT_CONFIGURATION type %T", raw)
}

// List returns the saved agents without their configuration payloads.
func (s *Store) List(ctx context.Context) ([]AgentInfo, error) {
	stmt := fmt.Sprintf(
		"SELECT AGENT_NAME, AGENT_DESCRIPTION, CREATED_BY, CREATED_AT FROM %s ORDER BY AGENT_NAME",
		s.table)
	_, table, err := runStatement(ctx, s.exec, stmt)
	if err != nil {
		return nil, err
	}
	infos := make([]AgentInfo, 0, len(table.Rows))
	for _, row := range table.Rows {
		info := AgentInfo{}
		info.Name, _ = row["AGENT_NAME"].(string)
		info.Description, _ = row["AGENT_DESCRIPTION"].(string)
		info.CreatedBy, _ = row["CREATED_BY"].(string)
		info.CreatedAt = fmt.Sprint(row["CREATED_AT"])
		infos = append(infos, info)
	}
	return infos, nil
}

func (s *Store) exists(ctx context.Context, agentName string) (bool, error) {
	stmt := fmt.Sprintf(
		"SELECT COUNT(*) AS N FROM %s WHERE AGENT_NAME = '%s'",
		s.table, escapeSQL(agentName))
	_, table, err := runStatement(ctx, s.exec, stmt)
	if err != nil {
		return false, err
	}
	if len(table.Rows) == 0 {
		return false, nil
	}
	count, err := firstValue(table.Rows[0])
	if err != nil {
		return false, err
	}
	switch n := count.(type) {
	case int:
		return n > 0, nil
	case int64:
		return n > 0, nil
	case float64:
		return n > 0, nil
	case string:
		return n != "0", nil
	}
	return false, fmt.Errorf("unexpected count type %T", count)
}

func firstValue(row map[string]any) (any, error) {
	for _, v := range row {
		return v, nil
	}
	return nil, errors.New("empty result row")
}

func escapeSQL(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}
