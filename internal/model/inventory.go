package model

type CreateBatchRequest struct {
	TemplateID     string   `json:"template_id"`
	Quantity       int      `json:"quantity"`
	ContextID      string   `json:"context_id"`
	TxHash         string   `json:"tx_hash"`
	ChainObjectIDs []string `json:"chain_object_ids"`
}

type CreateBatchResponse struct {
	Batch InventoryBatch `json:"batch"`
}

type GetBatchRequest struct {
	BatchID       string `json:"batch_id" form:"batch_id"`
	IncludeTokens bool   `json:"include_tokens" form:"include_tokens"`
}

type GetBatchResponse struct {
	Batch InventoryBatch `json:"batch"`
}

type GetMyBatchesRequest struct{}

type GetMyBatchesResponse struct {
	Batches []InventoryBatch `json:"batches"`
}

type GetCustodyWalletRequest struct{}

type GetCustodyWalletResponse struct {
	Address string `json:"address"`
}

type AssignBatchRequest struct {
	BatchID   string `json:"batch_id"`
	ContextID string `json:"context_id"`
}

type AssignBatchResponse struct {
	Batch InventoryBatch `json:"batch"`
}

type CreateAwardContextRequest struct {
	Title string `json:"title"`
}

type CreateAwardContextResponse struct {
	Context AwardContext `json:"context"`
}

type GetAwardContextRequest struct {
	ContextID string `json:"context_id" form:"context_id"`
}

type GetAwardContextResponse struct {
	Context AwardContext     `json:"context"`
	Batches []InventoryBatch `json:"batches"`
}
