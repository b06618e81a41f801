package database

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/doug-martin/goqu/v9/exp"

	"github.com/zatekoja/propertysearch/backend/internal/domain/entities"
)

const (
	historyTable = "user_prompt_history"

	// HistoryRowLimit caps the rows returned by one history query
	HistoryRowLimit = 1000
)

var historyColumns = []interface{}{
	"user_prompt",
	"query_template_used",
	"query_template_id",
	"query_explanation",
}

// Columns a history filter may reference, and whether each one is text.
var historyFilterColumns = map[string]bool{
	"user_prompt":         true,
	"query_template_used": false,
	"query_template_id":   false,
	"query_explanation":   true,
}

type filterTarget interface {
	exp.Comparable
	exp.Likeable
}

var historyOperators = map[string]func(filterTarget, interface{}) exp.Expression{
	"=":     func(t filterTarget, v interface{}) exp.Expression { return t.Eq(v) },
	"!=":    func(t filterTarget, v interface{}) exp.Expression { return t.Neq(v) },
	">":     func(t filterTarget, v interface{}) exp.Expression { return t.Gt(v) },
	"<":     func(t filterTarget, v interface{}) exp.Expression { return t.Lt(v) },
	">=":    func(t filterTarget, v interface{}) exp.Expression { return t.Gte(v) },
	"<=":    func(t filterTarget, v interface{}) exp.Expression { return t.Lte(v) },
	"LIKE":  func(t filterTarget, v interface{}) exp.Expression { return t.Like(v) },
	"ILIKE": func(t filterTarget, v interface{}) exp.Expression { return t.ILike(v) },
}

// BuildHistoryQuery turns client supplied filters into one parameterized
// statement. Conditions naming an unknown column or operator, or carrying an
// empty value, are dropped. The rest are folded left to right, each joined to
// everything before it by its own logic keyword.
func BuildHistoryQuery(filters []entities.FilterCondition) (string, []interface{}, error) {
	var where exp.Expression
	for _, f := range filters {
		cond, ok := historyCondition(f)
		if !ok {
			continue
		}
		switch {
		case where == nil:
			where = cond
		case strings.EqualFold(strings.TrimSpace(f.Logic), "OR"):
			where = goqu.Or(where, cond)
		default:
			where = goqu.And(where, cond)
		}
	}

	ds := goqu.Dialect("postgres").
		From(historyTable).
		Prepared(true).
		Select(historyColumns...).
		Order(goqu.C("created_at").Desc()).
		Limit(HistoryRowLimit)
	if where != nil {
		ds = ds.Where(where)
	}

	return ds.ToSQL()
}

func historyCondition(f entities.FilterCondition) (exp.Expression, bool) {
	isText, ok := historyFilterColumns[f.Column]
	if !ok {
		return nil, false
	}

	op := strings.ToUpper(strings.TrimSpace(f.Operator))
	build, ok := historyOperators[op]
	if !ok {
		return nil, false
	}

	value, ok := filterValue(f.Value)
	if !ok {
		return nil, false
	}

	var target filterTarget = goqu.C(f.Column)
	if !isText && (op == "LIKE" || op == "ILIKE") {
		target = goqu.Cast(goqu.C(f.Column), "TEXT")
	}
	return build(target, value), true
}

// filterValue keeps scalar values as bound parameters. Empty strings and
// anything structured, such as objects or arrays, are dropped.
func filterValue(v interface{}) (interface{}, bool) {
	switch val := v.(type) {
	case nil:
		return nil, false
	case string:
		if val == "" {
			return nil, false
		}
		return val, true
	case bool:
		return strconv.FormatBool(val), true
	case json.Number:
		return val.String(), true
	case float64, float32, int, int32, int64:
		return val, true
	default:
		return nil, false
	}
}
