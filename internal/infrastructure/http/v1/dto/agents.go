package dto

import (
	"palmledger/internal/domain/agents"
)

// AgentRequest creates or updates an agent.
type AgentRequest struct {
	FullName string        `json:"fullName" binding:"required,max=200"`
	Phone    string        `json:"phone" binding:"max=40"`
	Location string        `json:"location" binding:"max=200"`
	Status   agents.Status `json:"status" binding:"omitempty,oneof=ACTIVE INACTIVE"`
	// Version is the expected version on update.
	Version int `json:"version" binding:"omitempty,min=1"`
}

// ToAgent builds a new agent.
func (r *AgentRequest) ToAgent() *agents.Agent {
	a := agents.NewAgent(r.FullName, r.Phone, r.Location)
	if r.Status != "" {
		a.Status = r.Status
	}
	return a
}

// Apply copies editable fields onto an existing agent.
func (r *AgentRequest) Apply(a *agents.Agent) {
	a.FullName = r.FullName
	a.Phone = r.Phone
	a.Location = r.Location
	if r.Status != "" {
		a.Status = r.Status
	}
	if r.Version != 0 {
		a.Version = r.Version
	}
}

// AgentListQuery filters the agent directory.
type AgentListQuery struct {
	Status          agents.Status `form:"status" binding:"omitempty,oneof=ACTIVE INACTIVE"`
	IncludeArchived bool          `form:"includeArchived"`
}

// DeleteAgentResponse tells whether the agent was archived or removed.
type DeleteAgentResponse struct {
	ID       string `json:"id"`
	Archived bool   `json:"archived"`
}

// PhotoURLResponse carries a viewable photo URL.
type PhotoURLResponse struct {
	URL string `json:"url"`
}
