package report_repo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"palmledger/internal/core/id"
	"palmledger/internal/domain/reports"
)

func juneFilter(agentID *id.ID) reports.NetPositionFilter {
	return reports.NetPositionFilter{
		From:    time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		To:      time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC),
		AgentID: agentID,
	}
}

func TestAdvancesQuery_InclusivePeriod(t *testing.T) {
	sql, args, err := advancesQuery(juneFilter(nil)).ToSql()
	require.NoError(t, err)

	assert.Contains(t, sql, "amount::text AS amount")
	assert.Contains(t, sql, "advance_date >= $1 AND advance_date < $2")
	require.Len(t, args, 2)
	assert.Equal(t, time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC), args[1])
}

func TestCollectionsQuery_ReadsLegacyAggregates(t *testing.T) {
	agentID := id.New()

	sql, args, err := collectionsQuery(juneFilter(&agentID)).ToSql()
	require.NoError(t, err)

	assert.Contains(t, sql, "total_amount, total_cost, amount FROM fruit_collections")
	assert.Contains(t, sql, "agent_id = $3")
	assert.Equal(t, agentID.String(), args[2])
}

func TestItemsQuery_ScopesByParentCollection(t *testing.T) {
	agentID := id.New()

	sql, _, err := itemsQuery(juneFilter(&agentID)).ToSql()
	require.NoError(t, err)

	assert.Contains(t, sql, "JOIN fruit_collections c ON c.id = i.collection_id")
	assert.Contains(t, sql, "c.collection_date >= $1 AND c.collection_date < $2")
	assert.Contains(t, sql, "c.agent_id = $3")
}
