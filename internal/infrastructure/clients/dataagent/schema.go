package dataagent

import (
	"bytes"
	"encoding/json"
	"fmt"
)

type databaseReference struct {
	ProjectID  string `json:"project_id"`
	Region     string `json:"region"`
	ClusterID  string `json:"cluster_id"`
	InstanceID string `json:"instance_id"`
	DatabaseID string `json:"database_id"`
}

type agentContextReference struct {
	ContextSetID string `json:"context_set_id"`
}

type alloyDBReference struct {
	DatabaseReference     databaseReference      `json:"databaseReference"`
	AgentContextReference *agentContextReference `json:"agentContextReference,omitempty"`
}

type datasourceReferences struct {
	AlloyDB alloyDBReference `json:"alloydb"`
}

type queryContext struct {
	DatasourceReferences datasourceReferences `json:"datasourceReferences"`
}

type generationOptions struct {
	GenerateQueryResult           bool `json:"generate_query_result"`
	GenerateNaturalLanguageAnswer bool `json:"generate_natural_language_answer"`
	GenerateExplanation           bool `json:"generate_explanation"`
}

type queryDataRequest struct {
	Parent            string            `json:"parent"`
	Prompt            string            `json:"prompt"`
	Context           queryContext      `json:"context"`
	GenerationOptions generationOptions `json:"generation_options"`
}

// queryDataResponse is the subset of the queryData reply the search uses
type queryDataResponse struct {
	NaturalLanguageAnswer string       `json:"naturalLanguageAnswer"`
	GeneratedQuery        string       `json:"generatedQuery"`
	IntentExplanation     string       `json:"intentExplanation"`
	QueryResult           *queryResult `json:"queryResult"`
}

type queryResult struct {
	Query         string      `json:"query"`
	Columns       []column    `json:"columns"`
	Rows          []resultRow `json:"rows"`
	TotalRowCount json.Number `json:"totalRowCount"`
}

// column accepts either {"name": "..."} or a bare string
type column struct {
	Name string
}

func (c *column) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &c.Name)
	}
	var obj struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	c.Name = obj.Name
	return nil
}

// cell is a {"value": x} wrapper. Anything else is kept as the raw value.
type cell struct {
	Value interface{}
}

func (c *cell) UnmarshalJSON(data []byte) error {
	var raw interface{}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	if obj, ok := raw.(map[string]interface{}); ok {
		if v, ok := obj["value"]; ok && len(obj) == 1 {
			c.Value = v
			return nil
		}
	}
	c.Value = raw
	return nil
}

// resultRow holds either named cells or positional cells
type resultRow struct {
	Named      map[string]cell
	Positional []cell
}

func (r *resultRow) UnmarshalJSON(data []byte) error {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("row is not an object: %w", err)
	}

	if values, ok := obj["values"]; ok && len(obj) == 1 {
		trimmed := bytes.TrimSpace(values)
		if len(trimmed) > 0 && trimmed[0] == '[' {
			return json.Unmarshal(trimmed, &r.Positional)
		}
		return json.Unmarshal(trimmed, &r.Named)
	}

	r.Named = make(map[string]cell, len(obj))
	for k, v := range obj {
		var c cell
		if err := json.Unmarshal(v, &c); err != nil {
			return fmt.Errorf("column %s: %w", k, err)
		}
		r.Named[k] = c
	}
	return nil
}

// flatten turns a row into plain key/value pairs
func (r resultRow) flatten(columns []column) (map[string]interface{}, error) {
	out := make(map[string]interface{})
	if r.Named != nil {
		for k, c := range r.Named {
			out[k] = normalizeValue(c.Value)
		}
		return out, nil
	}

	if len(r.Positional) != len(columns) {
		return nil, fmt.Errorf("row has %d values for %d columns", len(r.Positional), len(columns))
	}
	for i, c := range r.Positional {
		out[columns[i].Name] = normalizeValue(c.Value)
	}
	return out, nil
}

// normalizeValue converts json.Number into int64 when integral, otherwise float64
func normalizeValue(v interface{}) interface{} {
	n, ok := v.(json.Number)
	if !ok {
		return v
	}
	if i, err := n.Int64(); err == nil {
		return i
	}
	if f, err := n.Float64(); err == nil {
		return f
	}
	return n.String()
}
