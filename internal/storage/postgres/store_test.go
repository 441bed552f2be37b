package postgres

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"expensetracker/internal/storage"
)

func TestMapError(t *testing.T) {
	unique := &pgconn.PgError{Code: "23505", ConstraintName: "expenses_recurring_date_uq"}
	err := mapError(fmt.Errorf("exec: %w", unique))
	assert.True(t, storage.IsConflict(err))
	assert.Equal(t, storage.ConflictCode, storage.Code(err))

	checkViolation := &pgconn.PgError{Code: "23514"}
	err = mapError(checkViolation)
	assert.False(t, storage.IsConflict(err))
	assert.Same(t, checkViolation, err)

	assert.ErrorIs(t, mapError(sql.ErrNoRows), storage.ErrNotFound)
	assert.NoError(t, mapError(nil))

	plain := errors.New("connection reset")
	assert.Equal(t, plain, mapError(plain))
}
