package model

import "github.com/shopspring/decimal"

const (
	MarketplaceActionCreate           = "create"
	MarketplaceActionPurchase         = "purchase"
	MarketplaceActionPaymentSubmitted = "payment-submitted"
	MarketplaceActionComplete         = "complete"
	MarketplaceActionRelease          = "release"
	MarketplaceActionCancel           = "cancel"
)

type MarketplaceRequest struct {
	Action    string          `json:"action"`
	ListingID string          `json:"listing_id"`
	HoldingID string          `json:"holding_id"`
	Price     decimal.Decimal `json:"price"`
	TxHash    string          `json:"tx_hash"`
}

type MarketplaceResponse struct {
	Listing Listing `json:"listing"`
}

type GetListingRequest struct {
	ListingID string `json:"listing_id" form:"listing_id"`
}

type GetListingResponse struct {
	Listing Listing          `json:"listing"`
	Holding OwnershipHolding `json:"holding"`
}

type GetListingsRequest struct {
	Status string `json:"status" form:"status"`
	Offset int    `json:"offset" form:"offset"`
	Limit  int    `json:"limit" form:"limit"`
}

type GetListingsResponse struct {
	Listings []Listing `json:"listings"`
}

type GetHoldingRequest struct {
	HoldingID string `json:"holding_id" form:"holding_id"`
}

type GetHoldingResponse struct {
	Holding OwnershipHolding `json:"holding"`
}

type GetMyHoldingsRequest struct{}

type GetMyHoldingsResponse struct {
	Holdings []OwnershipHolding `json:"holdings"`
}
