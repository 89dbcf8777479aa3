package catalog_repo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"palmledger/internal/core/id"
	"palmledger/internal/domain"
	"palmledger/internal/domain/agents"
)

func TestAgentRepo_ListQueryHidesArchived(t *testing.T) {
	repo := NewAgentRepo(nil)

	sql, args, err := repo.listQuery(agents.ListFilter{}).ToSql()
	require.NoError(t, err)
	assert.Contains(t, sql, "FROM agents WHERE archived_at IS NULL")
	assert.Empty(t, args)

	sql, _, err = repo.listQuery(agents.ListFilter{IncludeArchived: true}).ToSql()
	require.NoError(t, err)
	assert.NotContains(t, sql, "archived_at IS NULL")
}

func TestAgentRepo_ListQueryScopesAndSearches(t *testing.T) {
	repo := NewAgentRepo(nil)
	agentID := id.New()

	filter := agents.ListFilter{
		ListFilter: domain.ListFilter{AgentID: &agentID, Search: "kum"},
		Status:     agents.StatusActive,
	}
	sql, args, err := repo.listQuery(filter).ToSql()
	require.NoError(t, err)

	assert.Contains(t, sql, "id = $1")
	assert.Contains(t, sql, "status = $2")
	assert.Contains(t, sql, "(full_name ILIKE $3 OR phone ILIKE $4 OR location ILIKE $5)")
	assert.Equal(t, []any{agentID.String(), agents.StatusActive, "%kum%", "%kum%", "%kum%"}, args)
}

func TestHistoryQuery_ChecksEveryLedger(t *testing.T) {
	agentID := id.New()

	sql, args, err := historyQuery(agentID).ToSql()
	require.NoError(t, err)

	for _, table := range historyTables {
		assert.Contains(t, sql, "EXISTS (SELECT 1 FROM "+table+" WHERE agent_id = $")
	}
	assert.Len(t, args, len(historyTables))
}

func TestBaseCatalogRepo_SelectsTaggedColumns(t *testing.T) {
	repo := NewCustomerRepo(nil)

	sql, _, err := repo.baseSelect().ToSql()
	require.NoError(t, err)
	assert.Equal(t,
		"SELECT id, version, created_at, updated_at, created_by, updated_by, name, phone, address FROM customers",
		sql)
}
