package domain

import (
	"time"

	"github.com/google/uuid"
)

// NewClientOrderID generates a fresh idempotency key for PlaceOrderRequest.
func NewClientOrderID() string {
	return uuid.New().String()
}

// OrderSide is the side of a CLOB market order (spec.md §6).
type OrderSide string

const (
	ClobBuy  OrderSide = "BUY"
	ClobSell OrderSide = "SELL"
)

// ClobOrderStatus mirrors GET /order/{id} status values (spec.md §6).
type ClobOrderStatus string

const (
	ClobLive      ClobOrderStatus = "live"
	ClobMatched   ClobOrderStatus = "matched"
	ClobCancelled ClobOrderStatus = "cancelled"
	ClobExpired   ClobOrderStatus = "expired"
	ClobRejected  ClobOrderStatus = "rejected"
)

// PlaceOrderRequest is sent to POST /order.
type PlaceOrderRequest struct {
	TokenID string
	Side    OrderSide
	Price   float64
	Size    float64

	// ClientOrderID tags the request so a retried POST after a dropped
	// response does not place a second order (see domain.NewClientOrderID).
	ClientOrderID string
}

// PlacedOrder is the response from POST /order.
type PlacedOrder struct {
	OrderID string
	Error   string
}

// OrderState is the response from GET /order/{id}.
type OrderState struct {
	Status        ClobOrderStatus
	Size          float64
	SizeMatched   float64
	SizeRemaining float64
	Price         float64
	AveragePrice  float64
}

// FillOutcome is the Bridge's terminal classification of a poll result
// (spec.md §4.8).
type FillOutcome string

const (
	FillFilled    FillOutcome = "filled"
	FillPartial   FillOutcome = "partial"
	FillRejected  FillOutcome = "rejected"
	FillExpired   FillOutcome = "expired"
	FillTimeout   FillOutcome = "timeout"
)

// OrderBookLadder is the derived book shape from GET /orderbook
// (spec.md §6).
type OrderBookLadder struct {
	BestBid      float64
	BestAsk      float64
	BidLiquidity float64
	AskLiquidity float64
	Spread       float64
}

// MarkPrice is one GET /price response for a token side.
type MarkPrice struct {
	TokenID string
	Price   float64
	At      time.Time
}
