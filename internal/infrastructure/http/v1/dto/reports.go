package dto

import (
	"palmledger/internal/core/id"
	"palmledger/internal/core/types"
	"palmledger/internal/domain/reports"
)

// NetPositionQuery selects the net position report and, for exports, its rendering.
type NetPositionQuery struct {
	From    string  `form:"from"`
	To      string  `form:"to"`
	AgentID *string `form:"agentId" binding:"omitempty,uuid"`

	Format string `form:"format" binding:"omitempty,oneof=csv xlsx pdf"`
	Table  string `form:"table" binding:"omitempty,oneof=summary advances expenses collections"`
}

// ToFilter converts to the domain filter.
func (q *NetPositionQuery) ToFilter() (reports.NetPositionFilter, error) {
	var f reports.NetPositionFilter
	var err error
	if f.From, err = types.ParseDate(q.From); err != nil {
		return f, err
	}
	if f.To, err = types.ParseDate(q.To); err != nil {
		return f, err
	}
	if q.AgentID != nil {
		if f.AgentID, err = id.ParseOptional(*q.AgentID); err != nil {
			return f, err
		}
	}
	return f, nil
}
