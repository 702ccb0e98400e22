package model

import "time"

// DepletionSignal is emitted when an award commit leaves a batch bound to an
// award context without available tokens.
type DepletionSignal struct {
	ContextID string    `json:"context_id"`
	BatchID   string    `json:"batch_id"`
	IssuerID  string    `json:"issuer_id"`
	At        time.Time `json:"at"`
}

type GetDepletionOptionsRequest struct {
	TriggerID string `json:"trigger_id" form:"trigger_id"`
	ContextID string `json:"context_id" form:"context_id"`
}

type GetDepletionOptionsResponse struct {
	Trigger     DepletionTrigger `json:"trigger"`
	CanReassign bool             `json:"can_reassign"`
	Candidates  []InventoryBatch `json:"candidates"`
	CanFinalize bool             `json:"can_finalize"`
}

type ReassignDepletedContextRequest struct {
	TriggerID string `json:"trigger_id"`
	BatchID   string `json:"batch_id"`
}

type ReassignDepletedContextResponse struct {
	Batch InventoryBatch `json:"batch"`
}

type FinalizeDepletedContextRequest struct {
	TriggerID string `json:"trigger_id"`
	Confirm   bool   `json:"confirm"`
}

type FinalizeDepletedContextResponse struct {
	Context AwardContext `json:"context"`
}
