package ports

import (
	"context"

	"github.com/alejandrodnm/polysignal/internal/domain"
)

// ClobClient is the outbound boundary to the Polymarket CLOB (spec.md §6).
// L1 wallet signing is assumed to have happened upstream of this interface;
// implementations only carry the L2 HMAC credentials needed to authenticate
// already-built orders.
type ClobClient interface {
	PlaceOrder(ctx context.Context, req domain.PlaceOrderRequest) (domain.PlacedOrder, error)
	CancelOrder(ctx context.Context, orderID string) error
	GetOrder(ctx context.Context, orderID string) (domain.OrderState, error)
	GetPrice(ctx context.Context, tokenID string) (domain.MarkPrice, error)
	GetOrderBook(ctx context.Context, tokenID string) (domain.OrderBookLadder, error)
	GetBalance(ctx context.Context) (float64, error)
}

// SignalSource is the inbound boundary feeding candidate signals into the
// bridge (spec.md §4.8). The scanner side of the pipeline is an external
// collaborator; this port is the seam the bridge consumes it through.
type SignalSource interface {
	Next(ctx context.Context) (domain.Signal, error)
}
