package mysql

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

// deleteBuilder holds the state shared by DeleteWithoutWhere/DeleteWithWhere,
// mirroring select.go's two-type phantom-state pattern rather than the
// generic WhereState/WithWhere/WithoutWhere scheme the retrieved delete.go
// referenced without ever defining — that version didn't compile.
type deleteBuilder struct {
	table string
	where *WhereCond
}

type DeleteWithoutWhere struct{ builder deleteBuilder }
type DeleteWithWhere struct{ builder deleteBuilder }

// DeleteFrom initializes a DeleteBuilder for the given table.
func DeleteFrom(table string) DeleteWithoutWhere {
	return DeleteWithoutWhere{builder: deleteBuilder{table: table}}
}

// Where attaches a WHERE condition, moving to the state that allows Exec.
func (b DeleteWithoutWhere) Where(c *WhereCond) DeleteWithWhere {
	b.builder.where = c
	return DeleteWithWhere{builder: b.builder}
}

// Exec runs the DELETE and returns the number of affected rows.
func (b DeleteWithWhere) Exec(ctx context.Context, db *sqlx.DB) (int64, error) {
	q, args, err := b.builder.build()
	if err != nil {
		return 0, err
	}
	q = db.Rebind(q)

	res, err := db.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (b deleteBuilder) build() (string, []any, error) {
	if b.where == nil {
		return "", nil, ErrWhereRequired
	}
	if !safeIdent(b.table) {
		return "", nil, fmt.Errorf("unsafe table: %s", b.table)
	}

	sb := strings.Builder{}
	sb.WriteString("DELETE FROM ")
	sb.WriteString(b.table)
	sb.WriteString(" WHERE ")
	sb.WriteString(b.where.GetSQL())

	return sb.String(), b.where.args, nil
}
