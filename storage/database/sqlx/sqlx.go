package sqlxrepos

import (
	"context"
	"database/sql"
	"encoding/json"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/youpass/youpass/core"
)

const (
	uniqueViolation      = "23505"
	operatorIntervention = "57"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// uniqueConstraint returns the name of the unique constraint err violates, if any.
func uniqueConstraint(err error) (string, bool) {
	if pqErr, ok := errors.Cause(err).(*pq.Error); ok && pqErr.Code == uniqueViolation {
		return pqErr.Constraint, true
	}
	return "", false
}

// trapNoRows maps psql "no rows" err to notFound, and a server shutting down to a shutdown error.
func trapNoRows(err error, notFound error, msg string) error {
	cause := errors.Cause(err)
	if cause == sql.ErrNoRows {
		return notFound
	}
	if pqErr, ok := cause.(*pq.Error); ok && pqErr.Code.Class() == operatorIntervention {
		return core.NewShutdownError(msg + ": " + pqErr.Message)
	}
	return errors.Wrap(err, msg)
}

func toJSON(v interface{}) (types.JSONText, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "encoding JSONB column")
	}
	return types.JSONText(b), nil
}

func fromJSON(col types.JSONText, dest interface{}) error {
	if len(col) == 0 {
		return nil
	}
	return errors.Wrap(col.Unmarshal(dest), "decoding JSONB column")
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func stringSlice(arr pq.StringArray) []string {
	if arr == nil {
		return []string{}
	}
	return []string(arr)
}

// selectPage runs a paginated query along with its total count.
func selectPage(ctx context.Context, exec core.DBExecutor, dest interface{}, q sq.SelectBuilder, countQ sq.SelectBuilder, page core.Pagination) (int, error) {
	query, args, err := countQ.ToSql()
	if err != nil {
		return 0, errors.Wrap(err, "building count query")
	}
	var total int
	if err = exec.GetContext(ctx, &total, query, args...); err != nil {
		return 0, errors.Wrap(err, "counting rows")
	}

	query, args, err = q.Limit(uint64(page.Limit)).Offset(uint64(page.Offset())).ToSql()
	if err != nil {
		return 0, errors.Wrap(err, "building query")
	}
	if err = exec.SelectContext(ctx, dest, query, args...); err != nil {
		return 0, errors.Wrap(err, "selecting rows")
	}
	return total, nil
}

// execAffected executes q and returns the number of affected rows.
func execAffected(ctx context.Context, exec core.DBExecutor, q sq.Sqlizer) (int64, error) {
	query, args, err := q.ToSql()
	if err != nil {
		return 0, errors.Wrap(err, "building query")
	}
	res, err := exec.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// exists reports whether table has a row with id.
func exists(ctx context.Context, exec core.DBExecutor, table, id string) (bool, error) {
	query, args, err := psql.Select("1").Prefix("SELECT EXISTS (").From(table).Where(sq.Eq{"id": id}).Suffix(")").ToSql()
	if err != nil {
		return false, errors.Wrap(err, "building query")
	}
	var found bool
	err = exec.GetContext(ctx, &found, query, args...)
	return found, errors.Wrapf(err, "checking %s existence", table)
}

func getOne(ctx context.Context, exec core.DBExecutor, dest interface{}, q sq.SelectBuilder) error {
	query, args, err := q.ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	return exec.GetContext(ctx, dest, query, args...)
}

func selectAll(ctx context.Context, exec core.DBExecutor, dest interface{}, q sq.SelectBuilder) error {
	query, args, err := q.ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	return exec.SelectContext(ctx, dest, query, args...)
}

func sqlxNamedExec(ctx context.Context, exec core.DBExecutor, query string, arg interface{}) (sql.Result, error) {
	return sqlx.NamedExecContext(ctx, exec, query, arg)
}
