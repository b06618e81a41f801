package entities

import "time"

// HistoryEntry is one logged data agent prompt
type HistoryEntry struct {
	UserPrompt        string     `db:"user_prompt" json:"user_prompt"`
	QueryTemplateUsed bool       `db:"query_template_used" json:"query_template_used"`
	QueryTemplateID   *int64     `db:"query_template_id" json:"query_template_id"`
	QueryExplanation  *string    `db:"query_explanation" json:"query_explanation"`
	CreatedAt         *time.Time `db:"created_at" json:"created_at,omitempty"`
}

// FilterCondition is one clause of a history query
type FilterCondition struct {
	Column   string      `json:"column"`
	Operator string      `json:"operator"`
	Value    interface{} `json:"value"`
	Logic    string      `json:"logic,omitempty"`
}

// HistoryRequest is the body of POST /api/history
type HistoryRequest struct {
	Filters []FilterCondition `json:"filters"`

	// WhereClause is accepted for compatibility with older clients and never executed.
	WhereClause string `json:"where_clause,omitempty"`
}

// HistoryResponse is the body returned by POST /api/history
type HistoryResponse struct {
	Rows []*HistoryEntry `json:"rows"`
}
