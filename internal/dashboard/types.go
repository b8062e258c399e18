// Package dashboard implements the C8 batch executor: it loads chart and
// table metadata, gates by role, validates parameters (C6), compiles
// templates (C7), executes against the tenant pool, and assembles the
// combined response document.
package dashboard

import (
	"dashboard-gateway/internal/paramschema"
)

// ColumnConfig describes a single table column, part of TableMetadata's
// column_config sequence.
type ColumnConfig struct {
	Key      string `json:"key"`
	Label    string `json:"label"`
	Type     string `json:"type"` // string|number|date|boolean
	Align    string `json:"align,omitempty"`
	Width    int    `json:"width,omitempty"`
	IsToggle bool   `json:"is_toggle,omitempty"`
	Hidden   bool   `json:"hidden,omitempty"`
}

// ChartMetadata mirrors the data model's ChartMetadata entity.
type ChartMetadata struct {
	ID            int64
	Slug          string
	Title         string
	Description   string
	QueryTemplate string
	ParamSchema   paramschema.Schema
	DefaultParams map[string]any
	ResultShape   any
	AllowedRoles  []string
	IsActive      bool
}

// TableMetadata mirrors the data model's TableMetadata entity: same shape
// as ChartMetadata plus column_config and primary_key.
type TableMetadata struct {
	ChartMetadata
	ColumnConfig []ColumnConfig
	PrimaryKey   string
}

// SlugParams is one entry of the request body's graphs/tables arrays.
type SlugParams struct {
	Slug   string
	Params map[string]any
}

// Request is the /fetchUserData request body.
type Request struct {
	Graphs []SlugParams
	Tables []SlugParams
}

// DebugInfo is the per-slug debug entry in the response document.
type DebugInfo struct {
	Slug     string           `json:"slug"`
	Params   map[string]any   `json:"params"`
	Query    string           `json:"query"`
	Args     []any            `json:"args"`
	RowCount int              `json:"rowCount"`
	Sample   []map[string]any `json:"sample"`
}

// GraphResponse echoes a chart's descriptive metadata alongside its data.
type GraphResponse struct {
	ID          int64  `json:"id"`
	Slug        string `json:"slug"`
	Title       string `json:"title"`
	Description string `json:"description"`
	ResultShape any    `json:"result_shape"`
}

// TableResponse echoes a table's descriptive metadata alongside its data.
type TableResponse struct {
	ID           int64          `json:"id"`
	Slug         string         `json:"slug"`
	Title        string         `json:"title"`
	Description  string         `json:"description"`
	ColumnConfig []ColumnConfig `json:"column_config"`
	PrimaryKey   string         `json:"primary_key"`
}

// Response is the full /fetchUserData response document.
type Response struct {
	CompanyName string                      `json:"company_name"`
	Graphics    []GraphResponse             `json:"graphics"`
	Datasets    map[string][]map[string]any `json:"datasets"`
	Debug       map[string]DebugInfo        `json:"debug"`
	Errors      map[string]string           `json:"errors"`
	Tables      []TableResponse             `json:"tables"`
	TableRows   map[string][]map[string]any `json:"tableRows"`
	TableDebug  map[string]DebugInfo        `json:"tableDebug"`
	TableErrors map[string]string           `json:"tableErrors"`
}

func newResponse(companyName string) *Response {
	return &Response{
		CompanyName: companyName,
		Datasets:    map[string][]map[string]any{},
		Debug:       map[string]DebugInfo{},
		Errors:      map[string]string{},
		TableRows:   map[string][]map[string]any{},
		TableDebug:  map[string]DebugInfo{},
		TableErrors: map[string]string{},
	}
}
