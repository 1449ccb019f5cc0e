package persistence

import (
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
	"github.com/stockledger/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestTranslateError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code string
	}{
		{"record not found", gorm.ErrRecordNotFound, shared.CodeNotFound},
		{"wrapped record not found", fmt.Errorf("find: %w", gorm.ErrRecordNotFound), shared.CodeNotFound},
		{"postgres lock timeout", &pgconn.PgError{Code: pgLockNotAvailable}, shared.CodeLockTimeout},
		{"postgres deadlock", &pgconn.PgError{Code: pgDeadlockDetected}, shared.CodeLockTimeout},
		{"postgres unique", &pgconn.PgError{Code: pgUniqueViolation}, shared.CodeAlreadyExists},
		{"postgres check", &pgconn.PgError{Code: pgCheckViolation}, shared.CodeInvalidState},
		{"mysql lock wait", &mysql.MySQLError{Number: myLockWaitTimeout}, shared.CodeLockTimeout},
		{"mysql deadlock", &mysql.MySQLError{Number: myDeadlock}, shared.CodeLockTimeout},
		{"mysql duplicate", &mysql.MySQLError{Number: myDuplicateEntry}, shared.CodeAlreadyExists},
		{"mysql check", &mysql.MySQLError{Number: myCheckViolated}, shared.CodeInvalidState},
		{"sqlite busy", sqlite3.Error{Code: sqlite3.ErrBusy}, shared.CodeLockTimeout},
		{"sqlite unique", sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintUnique}, shared.CodeAlreadyExists},
		{"sqlite primary key", sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintPrimaryKey}, shared.CodeAlreadyExists},
		{"sqlite check", sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintCheck}, shared.CodeInvalidState},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := translateError(tt.err)
			var de *shared.DomainError
			if assert.True(t, errors.As(err, &de), "got %v", err) {
				assert.Equal(t, tt.code, de.Code)
			}
		})
	}

	t.Run("nil stays nil", func(t *testing.T) {
		assert.NoError(t, translateError(nil))
	})

	t.Run("unknown errors pass through", func(t *testing.T) {
		cause := errors.New("connection refused")
		assert.Same(t, cause, translateError(cause))
	})

	t.Run("domain errors pass through", func(t *testing.T) {
		assert.ErrorIs(t, translateError(shared.ErrNegativeStock), shared.ErrNegativeStock)
	})
}

func TestIsLockTimeout(t *testing.T) {
	assert.True(t, IsLockTimeout(fmt.Errorf("exec: %w", &pgconn.PgError{Code: pgLockNotAvailable})))
	assert.True(t, IsLockTimeout(errors.New("database is locked")))
	assert.False(t, IsLockTimeout(&pgconn.PgError{Code: pgUniqueViolation}))
	assert.False(t, IsLockTimeout(errors.New("timeout")))
}
