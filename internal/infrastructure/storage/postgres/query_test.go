package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"palmledger/internal/core/apperror"
	"palmledger/internal/core/types"
)

func TestConstraintField(t *testing.T) {
	assert.Equal(t, "number", constraintField("uq_receipts_number"))
	assert.Equal(t, "email", constraintField("users_email_key"))
	assert.Equal(t, "value", constraintField(""))
}

func TestOrderBy(t *testing.T) {
	allowed := []string{"advance_date", "amount"}

	got, err := OrderBy("", allowed, "advance_date DESC")
	require.NoError(t, err)
	assert.Equal(t, "advance_date DESC", got)

	got, err = OrderBy("-amount", allowed, "")
	require.NoError(t, err)
	assert.Equal(t, "amount DESC", got)

	got, err = OrderBy("advance_date", allowed, "")
	require.NoError(t, err)
	assert.Equal(t, "advance_date ASC", got)

	_, err = OrderBy("amount; DROP TABLE agents", allowed, "")
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}

func TestWhereDateRange_Inclusive(t *testing.T) {
	r := types.DateRange{
		From: time.Date(2024, 5, 1, 15, 30, 0, 0, time.UTC),
		To:   time.Date(2024, 5, 31, 0, 0, 0, 0, time.UTC),
	}
	q := WhereDateRange(Builder().Select("id").From("cash_advances"), "advance_date", r)

	sql, args, err := q.ToSql()
	require.NoError(t, err)
	assert.Equal(t, "SELECT id FROM cash_advances WHERE advance_date >= $1 AND advance_date < $2", sql)
	require.Len(t, args, 2)
	assert.Equal(t, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), args[0])
	assert.Equal(t, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), args[1], "the last day is included")
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `fuel\_50\%`, EscapeLike("fuel_50%"))
	assert.Equal(t, "transport", EscapeLike("transport"))
}

func TestWhereDateRange_OpenBounds(t *testing.T) {
	q := WhereDateRange(Builder().Select("id").From("expenses"), "expense_date", types.DateRange{})

	sql, args, err := q.ToSql()
	require.NoError(t, err)
	assert.Equal(t, "SELECT id FROM expenses", sql)
	assert.Empty(t, args)
}
