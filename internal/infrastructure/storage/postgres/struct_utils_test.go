package postgres

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"palmledger/internal/core/entity"
	"palmledger/internal/core/id"
)

type sampleRecord struct {
	entity.BaseEntity
	AgentID id.ID           `db:"agent_id"`
	Amount  decimal.Decimal `db:"amount"`
	Signer  *string         `db:"signer"`
	Items   []string        `db:"-"`
}

func TestExtractDBColumns_IncludesEmbedded(t *testing.T) {
	cols := ExtractDBColumns[sampleRecord]()

	assert.Equal(t, []string{
		"id", "version", "created_at", "updated_at", "created_by", "updated_by",
		"agent_id", "amount", "signer",
	}, cols)
	assert.NotContains(t, cols, "items")
}

func TestStructToMap(t *testing.T) {
	now := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	signer := "Yaw"
	rec := &sampleRecord{
		BaseEntity: entity.BaseEntity{ID: id.New(), Version: 3, CreatedAt: now, CreatedBy: "u1"},
		AgentID:    id.New(),
		Amount:     decimal.RequireFromString("250.50"),
		Signer:     &signer,
		Items:      []string{"ignored"},
	}

	m := StructToMap(rec)

	assert.Equal(t, rec.ID, m["id"])
	assert.Equal(t, 3, m["version"])
	assert.Equal(t, now, m["created_at"])
	assert.Equal(t, rec.AgentID, m["agent_id"])
	assert.True(t, rec.Amount.Equal(m["amount"].(decimal.Decimal)))
	assert.Equal(t, &signer, m["signer"])
	assert.Len(t, m, 9)
}

func TestStructToMap_NilAndNonStruct(t *testing.T) {
	var rec *sampleRecord
	assert.Nil(t, StructToMap(rec))
	assert.Nil(t, StructToMap(42))
}

func TestPickColumns(t *testing.T) {
	data := map[string]any{"id": 1, "version": 2, "amount": 3, "extra": 4}

	picked := PickColumns(data, []string{"id", "version", "amount", "missing"}, "id", "version")

	assert.Equal(t, map[string]any{"amount": 3}, picked)
}
