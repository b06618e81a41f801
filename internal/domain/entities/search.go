package entities

import (
	"strings"
)

// SearchMode selects the backend that answers a search request
type SearchMode string

const (
	SearchModeEnterprise SearchMode = "enterprise_search"
	SearchModeSemantic   SearchMode = "semantic"
	SearchModeNL2SQL     SearchMode = "nl2sql"
	SearchModeDataAgent  SearchMode = "data_agent"
)

var searchModeAliases = map[string]SearchMode{
	"enterprise_search": SearchModeEnterprise,
	"enterprise-search": SearchModeEnterprise,
	"vertex_search":     SearchModeEnterprise,
	"semantic":          SearchModeSemantic,
	"hybrid":            SearchModeSemantic,
	"hybrid-vector":     SearchModeSemantic,
	"nl2sql":            SearchModeNL2SQL,
	"nl-to-sql":         SearchModeNL2SQL,
	"data_agent":        SearchModeDataAgent,
	"data-agent":        SearchModeDataAgent,
	"gda":               SearchModeDataAgent,
	"agent":             SearchModeDataAgent,
}

// ParseSearchMode resolves a wire value, including legacy aliases
func ParseSearchMode(value string) (SearchMode, bool) {
	mode, ok := searchModeAliases[strings.ToLower(strings.TrimSpace(value))]
	return mode, ok
}

// SearchRequest is the body of POST /api/search
type SearchRequest struct {
	Query  string   `json:"query"`
	Mode   string   `json:"mode,omitempty"`
	Weight *float64 `json:"weight,omitempty"`
}

// SearchDetails carries backend specific information about how an answer was produced
type SearchDetails struct {
	GeneratedQuery    string `json:"generated_query,omitempty"`
	IntentExplanation string `json:"intent_explanation,omitempty"`
	TotalRowCount     int64  `json:"total_row_count,omitempty"`
}

// SearchResponse is the body returned by POST /api/search
type SearchResponse struct {
	Listings        []Listing      `json:"listings"`
	SQL             string         `json:"sql"`
	NLAnswer        string         `json:"nl_answer,omitempty"`
	AvailableCities []string       `json:"available_cities,omitempty"`
	Details         *SearchDetails `json:"details,omitempty"`
}

// AgentAnswer is the parsed reply of the data agent
type AgentAnswer struct {
	NaturalLanguageAnswer string
	GeneratedQuery        string
	IntentExplanation     string
	Columns               []string
	Rows                  []map[string]interface{}
	TotalRowCount         int64
}
