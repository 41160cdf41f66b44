// Package db provides the pgx pool abstraction and COPY helpers shared by
// the Postgres store.
package db

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// DefaultBatchSize bounds the rows sent in one COPY by CopyBatches.
const DefaultBatchSize = 5000

// Identifier splits an optionally schema-qualified table name.
func Identifier(table string) pgx.Identifier {
	return pgx.Identifier(strings.Split(table, "."))
}

// CopyFrom bulk-inserts rows using the COPY protocol. table may be
// schema-qualified ("rfprofile.profiles").
func CopyFrom(ctx context.Context, pool Pool, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	n, err := pool.CopyFrom(ctx, Identifier(table), columns, pgx.CopyFromRows(rows))
	if err != nil {
		return 0, eris.Wrapf(err, "db: COPY INTO %s", table)
	}
	return n, nil
}

// CopyBatches splits rows into COPY statements of at most batchSize rows.
// It stops at the first failure and reports the rows already copied.
func CopyBatches(ctx context.Context, pool Pool, table string, columns []string, rows [][]any, batchSize int) (int64, error) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	var total int64
	for start := 0; start < len(rows); start += batchSize {
		if err := ctx.Err(); err != nil {
			return total, eris.Wrapf(err, "db: COPY INTO %s", table)
		}
		end := min(start+batchSize, len(rows))
		n, err := CopyFrom(ctx, pool, table, columns, rows[start:end])
		total += n
		if err != nil {
			return total, err
		}
	}
	zap.L().Debug("db: copy complete", zap.String("table", table), zap.Int64("rows", total))
	return total, nil
}
