package model

// Terminal states of an award attempt.
const (
	AwardStateCommitted = "committed"
	AwardStateExhausted = "exhausted"
)

type AwardRequest struct {
	BatchID   string `json:"batch_id"`
	ContextID string `json:"context_id"`
	Recipient string `json:"recipient"`
	Note      string `json:"note"`
}

type AwardResponse struct {
	State     string `json:"state"`
	Award     *Award `json:"award,omitempty"`
	Remaining int    `json:"remaining"`
}

type ReconcileAwardRequest struct {
	InventoryBatchID string `json:"inventory_batch_id"`
	Recipient        string `json:"recipient"`
	ContextID        string `json:"context_id"`
	TxHash           string `json:"tx_hash"`
	ChainObjectID    string `json:"chain_object_id"`
	Note             string `json:"note"`
}

type ReconcileAwardResponse struct {
	Award     Award `json:"award"`
	Remaining int   `json:"remaining"`
}

type ReleaseReservationRequest struct {
	TokenID       string `json:"token_id"`
	ReservationID string `json:"reservation_id"`
}

type ReleaseReservationResponse struct{}
