// Package sqlxrepos implements the core repositories on PostgreSQL via sqlx.
package sqlxrepos

import (
	"fmt"
	"strings"

	"github.com/kitabu/kitabu/core"
)

// queryBuilder accumulates WHERE conditions with `?` placeholders and rewrites
// them to numbered PostgreSQL placeholders as arguments are appended.
type queryBuilder struct {
	conds []string
	args  []interface{}
}

func (qb *queryBuilder) where(cond string, args ...interface{}) {
	for _, arg := range args {
		qb.args = append(qb.args, arg)
		cond = strings.Replace(cond, "?", fmt.Sprintf("$%d", len(qb.args)), 1)
	}
	qb.conds = append(qb.conds, cond)
}

func (qb *queryBuilder) clause() string {
	if len(qb.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(qb.conds, " AND ")
}

// paginate appends LIMIT/OFFSET and returns the final argument list.
func (qb *queryBuilder) paginate(page core.Pagination) string {
	qb.args = append(qb.args, page.Limit(), page.Offset())
	return fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(qb.args)-1, len(qb.args))
}

func orderClause(ordering []core.DBOrdering, fallback string) string {
	if len(ordering) == 0 {
		return " ORDER BY " + fallback
	}
	orderList := make([]string, 0, len(ordering))
	for _, ord := range ordering {
		orderList = append(orderList, ord.String())
	}
	return " ORDER BY " + strings.Join(orderList, ", ")
}
