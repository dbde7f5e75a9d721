package cortex

import (
	"fmt"
)

// Resource is configuration data backing a tool. Resources are placed
// into the request's tool_resources object keyed by Key; the wire form
// carries only the non-identifier fields.
type Resource interface {
	// Key returns the resource name used as the mapping key.
	Key() string
	// Type returns the discriminant persisted alongside the fields.
	Type() string

	toWire() map[string]any
}

// AnalystResource configures a Cortex Analyst text-to-SQL service.
// Either SemanticModelFile or all of Database, Schema, Stage and File
// must be set; the latter synthesize a stage file reference.
type AnalystResource struct {
	ResourceName      string
	SemanticModelFile string

	Database string
	Schema   string
	Stage    string
	File     string
}

func NewAnalystResource(r AnalystResource) (*AnalystResource, error) {
	if r.SemanticModelFile == "" {
		if r.Database == "" || r.Schema == "" || r.Stage == "" || r.File == "" {
			return nil, fmt.Errorf(
				"%w: either semantic_model_file or all of database, schema, stage and file must be provided",
				ErrMissingResourceID)
		}
		r.SemanticModelFile = fmt.Sprintf("@%s.%s.%s/%s", r.Database, r.Schema, r.Stage, r.File)
	}
	return &r, nil
}

func (r *AnalystResource) Key() string { return r.ResourceName }

func (r *AnalystResource) Type() string { return ToolTypeAnalyst }

func (r *AnalystResource) toWire() map[string]any {
	return map[string]any{"semantic_model_file": r.SemanticModelFile}
}

// SearchResource configures a Cortex Search service. Either Name (the
// fully qualified service name) or all of Database, Schema and
// ServiceName must be set.
type SearchResource struct {
	ResourceName string
	Name         string

	Database    string
	Schema      string
	ServiceName string

	MaxResults  int
	TitleColumn string
	IDColumn    string
	Filter      map[string]any
}

func NewSearchResource(r SearchResource) (*SearchResource, error) {
	if r.Name == "" {
		if r.Database == "" || r.Schema == "" || r.ServiceName == "" {
			return nil, fmt.Errorf(
				"%w: either name or all of database, schema and service_name must be provided",
				ErrMissingResourceID)
		}
		r.Name = fmt.Sprintf("%s.%s.%s", r.Database, r.Schema, r.ServiceName)
	}
	return &r, nil
}

func (r *SearchResource) Key() string { return r.ResourceName }

func (r *SearchResource) Type() string { return ToolTypeSearch }

func (r *SearchResource) toWire() map[string]any {
	fields := map[string]any{"name": r.Name}
	if r.MaxResults > 0 {
		fields["max_results"] = r.MaxResults
	}
	if r.TitleColumn != "" {
		fields["title_column"] = r.TitleColumn
	}
	if r.IDColumn != "" {
		fields["id_column"] = r.IDColumn
	}
	if len(r.Filter) > 0 {
		fields["filter"] = r.Filter
	}
	return fields
}

// persistKeyType is the discriminant stored with a persisted resource,
// stripped before wire serialization.
const persistKeyType = "type"

func persistResource(r Resource) map[string]any {
	fields := r.toWire()
	fields[persistKeyType] = r.Type()
	return fields
}

// resourceFromPersisted rebuilds a resource from its persisted fields.
// Rows written before the discriminant existed are detected by field
// presence.
func resourceFromPersisted(key string, fields map[string]any) (Resource, error) {
	typ, _ := fields[persistKeyType].(string)
	if typ == "" {
		if _, ok := fields["semantic_model_file"]; ok {
			typ = ToolTypeAnalyst
		} else if _, ok := fields["name"]; ok {
			typ = ToolTypeSearch
		}
	}
	switch typ {
	case ToolTypeAnalyst:
		file, _ := fields["semantic_model_file"].(string)
		return NewAnalystResource(AnalystResource{
			ResourceName:      key,
			SemanticModelFile: file,
		})
	case ToolTypeSearch:
		r := SearchResource{ResourceName: key}
		r.Name, _ = fields["name"].(string)
		if mr, ok := fields["max_results"].(float64); ok {
			r.MaxResults = int(mr)
		}
		r.TitleColumn, _ = fields["title_column"].(string)
		r.IDColumn, _ = fields["id_column"].(string)
		if f, ok := fields["filter"].(map[string]any); ok {
			r.Filter = f
		}
		return NewSearchResource(r)
	}
	return nil, fmt.Errorf("unknown resource type for %q", key)
}
