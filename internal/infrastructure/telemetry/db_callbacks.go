package telemetry

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// timedCallback runs after a gorm statement with its operation and the time
// spent executing it
type timedCallback func(tx *gorm.DB, operation string, elapsed time.Duration)

// registerTimed wraps every gorm processor with a before/after pair named
// after prefix.
func registerTimed(db *gorm.DB, prefix string, after timedCallback) error {
	startKey := prefix + ":start"
	before := func(tx *gorm.DB) {
		tx.InstanceSet(startKey, time.Now())
	}
	finish := func(operation string) func(*gorm.DB) {
		return func(tx *gorm.DB) {
			v, ok := tx.InstanceGet(startKey)
			if !ok {
				return
			}
			start, ok := v.(time.Time)
			if !ok {
				return
			}
			op := operation
			if op == "" {
				op = statementVerb(tx.Statement.SQL.String())
			}
			after(tx, op, time.Since(start))
		}
	}

	cb := db.Callback()
	steps := []func() error{
		func() error { return cb.Create().Before("gorm:create").Register(prefix+":before_create", before) },
		func() error { return cb.Create().After("gorm:create").Register(prefix+":after_create", finish("insert")) },
		func() error { return cb.Query().Before("gorm:query").Register(prefix+":before_query", before) },
		func() error { return cb.Query().After("gorm:query").Register(prefix+":after_query", finish("select")) },
		func() error { return cb.Update().Before("gorm:update").Register(prefix+":before_update", before) },
		func() error { return cb.Update().After("gorm:update").Register(prefix+":after_update", finish("update")) },
		func() error { return cb.Delete().Before("gorm:delete").Register(prefix+":before_delete", before) },
		func() error { return cb.Delete().After("gorm:delete").Register(prefix+":after_delete", finish("delete")) },
		func() error { return cb.Row().Before("gorm:row").Register(prefix+":before_row", before) },
		func() error { return cb.Row().After("gorm:row").Register(prefix+":after_row", finish("")) },
		func() error { return cb.Raw().Before("gorm:raw").Register(prefix+":before_raw", before) },
		func() error { return cb.Raw().After("gorm:raw").Register(prefix+":after_raw", finish("")) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}

// statementVerb returns the lower-cased leading keyword of a SQL statement
func statementVerb(sql string) string {
	sql = strings.TrimSpace(sql)
	if i := strings.IndexAny(sql, " \t\n("); i > 0 {
		sql = sql[:i]
	}
	switch verb := strings.ToLower(sql); verb {
	case "select", "insert", "update", "delete", "set", "begin", "commit", "rollback", "savepoint":
		return verb
	case "":
		return "unknown"
	default:
		return "other"
	}
}
