package postgres

import (
	"fmt"
	"strings"

	"github.com/alanyoungcy/liqguard/internal/domain"
)

// listQuery accumulates WHERE clauses and positional args for the list
// queries shared by the stores.
type listQuery struct {
	where []string
	args  []any
}

func (q *listQuery) add(clause string, arg any) {
	q.args = append(q.args, arg)
	q.where = append(q.where, fmt.Sprintf(clause, len(q.args)))
}

// window adds the time bounds of opts against column.
func (q *listQuery) window(column string, opts domain.ListOpts) {
	if opts.Since != nil {
		q.add(column+" >= $%d", *opts.Since)
	}
	if opts.Until != nil {
		q.add(column+" <= $%d", *opts.Until)
	}
}

// build renders base + WHERE + ORDER BY + LIMIT/OFFSET.
func (q *listQuery) build(base, orderBy string, opts domain.ListOpts) (string, []any) {
	var b strings.Builder
	b.WriteString(base)
	if len(q.where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(q.where, " AND "))
	}
	b.WriteString(" ORDER BY ")
	b.WriteString(orderBy)

	args := q.args
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		fmt.Fprintf(&b, " LIMIT $%d", len(args))
	}
	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		fmt.Fprintf(&b, " OFFSET $%d", len(args))
	}
	return b.String(), args
}
