package register_repo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"palmledger/internal/core/id"
	"palmledger/internal/domain/reconciliation"
)

func TestListQuery_MonthBoundsInclusive(t *testing.T) {
	agentID := id.New()

	sql, args, err := listQuery(reconciliation.Filter{
		AgentID: &agentID,
		From:    time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		To:      time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC),
	}).ToSql()
	require.NoError(t, err)

	assert.Contains(t, sql, "agent_id = $1 AND month >= $2 AND month <= $3")
	require.Len(t, args, 3)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), args[1])
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), args[2])
}

func TestUpsertSQL_ConflictsOnAgentMonth(t *testing.T) {
	assert.Contains(t, upsertSQL, "ON CONFLICT (agent_id, month) DO UPDATE")
	assert.Contains(t, upsertSQL, "version                = monthly_reconciliations.version + 1")
	assert.NotContains(t, upsertSQL, "created_at             = EXCLUDED")
	assert.Contains(t, upsertSQL, "RETURNING id, agent_id, month")
}
