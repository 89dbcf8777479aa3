package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestIsRetryable(t *testing.T) {
	assert.True(t, isRetryable(&pgconn.PgError{Code: "40001"}))
	assert.True(t, isRetryable(fmt.Errorf("insert payment: %w", &pgconn.PgError{Code: "40P01"})))
	assert.False(t, isRetryable(&pgconn.PgError{Code: "23505"}))
	assert.False(t, isRetryable(errors.New("boom")))
}

func TestGetQuerierWithoutTransaction(t *testing.T) {
	m := NewTxManagerFromRawPool(nil, 0)
	assert.Nil(t, m.GetTx(context.Background()))
	assert.Equal(t, DefaultStatementTimeout, m.DefaultTxOptions().StatementTimeout)
	assert.Equal(t, DefaultMaxAttempts, m.DefaultTxOptions().MaxAttempts)
}
