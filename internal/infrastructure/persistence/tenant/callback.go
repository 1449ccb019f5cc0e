package tenant

import (
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Guard provides GORM callback hooks that refuse tenant-table statements
// without a tenant_id condition
type Guard struct {
	tables map[string]bool
}

// NewGuard creates a guard for the given tables
func NewGuard(tables ...string) *Guard {
	g := &Guard{tables: make(map[string]bool, len(tables))}
	for _, t := range tables {
		g.tables[t] = true
	}
	return g
}

// RegisterGuard registers a Guard for tables on db
func RegisterGuard(db *gorm.DB, tables ...string) error {
	return NewGuard(tables...).Register(db)
}

// Register installs the guard before query, row, update and delete.
// Creates are not checked: new rows carry their tenant id explicitly.
func (g *Guard) Register(db *gorm.DB) error {
	if err := db.Callback().Query().Before("gorm:query").Register("tenant:guard_query", g.check); err != nil {
		return err
	}
	if err := db.Callback().Row().Before("gorm:row").Register("tenant:guard_row", g.check); err != nil {
		return err
	}
	if err := db.Callback().Update().Before("gorm:update").Register("tenant:guard_update", g.check); err != nil {
		return err
	}
	return db.Callback().Delete().Before("gorm:delete").Register("tenant:guard_delete", g.check)
}

func (g *Guard) check(db *gorm.DB) {
	if db.Error != nil || !g.tables[db.Statement.Table] {
		return
	}
	if isSystem(db) || hasTenantCondition(db) {
		return
	}
	_ = db.AddError(fmt.Errorf("%w: %s", ErrUnscopedStatement, db.Statement.Table))
}

// hasTenantCondition looks for tenant_id in the top-level AND conditions.
// A tenant_id inside an OR does not scope anything and is ignored.
func hasTenantCondition(db *gorm.DB) bool {
	if c, ok := db.Statement.Clauses["WHERE"]; ok {
		if where, ok := c.Expression.(clause.Where); ok {
			for _, expr := range where.Exprs {
				if exprContainsTenant(expr) {
					return true
				}
			}
		}
	}
	sql := db.Statement.SQL.String()
	return sql != "" && strings.Contains(sql, Column)
}

func exprContainsTenant(expr clause.Expression) bool {
	switch e := expr.(type) {
	case clause.Eq:
		return columnIsTenant(e.Column)
	case clause.IN:
		return columnIsTenant(e.Column)
	case clause.Expr:
		return strings.Contains(e.SQL, Column) && !strings.Contains(strings.ToUpper(e.SQL), " OR ")
	case clause.NamedExpr:
		return strings.Contains(e.SQL, Column) && !strings.Contains(strings.ToUpper(e.SQL), " OR ")
	case clause.AndConditions:
		for _, cond := range e.Exprs {
			if exprContainsTenant(cond) {
				return true
			}
		}
	}
	return false
}

func columnIsTenant(col any) bool {
	switch c := col.(type) {
	case clause.Column:
		return c.Name == Column
	case string:
		return c == Column || strings.HasSuffix(c, "."+Column)
	}
	return false
}
