package clob

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/alejandrodnm/polysignal/internal/domain"
)

// clobOrderRequest is the JSON body sent to POST /order. The maker/taker
// amounts and signature are assumed already attached upstream, where the
// wallet-holding collaborator signs the order (see DESIGN.md); this
// adapter only carries the fields the bridge itself decides.
type clobOrderRequest struct {
	TokenID       string `json:"tokenId"`
	Side          string `json:"side"`
	Price         string `json:"price"`
	Size          string `json:"size"`
	Type          string `json:"type"`
	ClientOrderID string `json:"clientOrderId"`
}

type clobOrderResponse struct {
	ErrorMsg string `json:"errorMsg"`
	OrderID  string `json:"orderID"`
	Status   string `json:"status"`
	Success  bool   `json:"success"`
}

type clobOrderStateResponse struct {
	Status        string `json:"status"`
	Size          string `json:"size"`
	SizeRemaining string `json:"size_remaining"`
	SizeMatched   string `json:"size_matched"`
	Price         string `json:"price"`
	AveragePrice  string `json:"average_price"`
}

type clobPriceResponse struct {
	Price string `json:"price"`
}

type clobBookResponse struct {
	Bids []clobBookLevel `json:"bids"`
	Asks []clobBookLevel `json:"asks"`
}

type clobBookLevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

type clobBalanceResponse struct {
	Balance string `json:"balance"`
}

// PlaceOrder submits a market (taker) order to the CLOB, following the
// teacher's TradingClient.PlaceOrder shape minus the EIP-712 signing step.
// Every order this system places is a market order (spec.md §1/§4.8); there
// is no resting-limit-order path.
func (c *Client) PlaceOrder(ctx context.Context, req domain.PlaceOrderRequest) (domain.PlacedOrder, error) {
	clientOrderID := req.ClientOrderID
	if clientOrderID == "" {
		clientOrderID = domain.NewClientOrderID()
	}
	body := clobOrderRequest{
		TokenID:       req.TokenID,
		Side:          string(req.Side),
		Price:         strconv.FormatFloat(req.Price, 'f', -1, 64),
		Size:          strconv.FormatFloat(req.Size, 'f', -1, 64),
		Type:          "MARKET",
		ClientOrderID: clientOrderID,
	}

	var resp clobOrderResponse
	if err := c.post(ctx, c.orderLimit, "/order", body, &resp); err != nil {
		return domain.PlacedOrder{}, fmt.Errorf("clob.PlaceOrder: %w", err)
	}
	if !resp.Success || resp.ErrorMsg != "" {
		return domain.PlacedOrder{OrderID: resp.OrderID, Error: resp.ErrorMsg}, fmt.Errorf("clob.PlaceOrder: rejected: %s", resp.ErrorMsg)
	}
	return domain.PlacedOrder{OrderID: resp.OrderID}, nil
}

// CancelOrder cancels a single order by id.
func (c *Client) CancelOrder(ctx context.Context, orderID string) error {
	path := "/order/" + orderID
	if err := c.del(ctx, c.orderLimit, path, nil, nil); err != nil {
		return fmt.Errorf("clob.CancelOrder %s: %w", orderID, err)
	}
	return nil
}

// GetOrder polls the current state of a previously placed order.
func (c *Client) GetOrder(ctx context.Context, orderID string) (domain.OrderState, error) {
	var resp clobOrderStateResponse
	if err := c.get(ctx, c.generalLimit, "/order/"+orderID, &resp); err != nil {
		return domain.OrderState{}, fmt.Errorf("clob.GetOrder %s: %w", orderID, err)
	}
	return domain.OrderState{
		Status:        domain.ClobOrderStatus(resp.Status),
		Size:          parseFloat(resp.Size),
		SizeMatched:   parseFloat(resp.SizeMatched),
		SizeRemaining: parseFloat(resp.SizeRemaining),
		Price:         parseFloat(resp.Price),
		AveragePrice:  parseFloat(resp.AveragePrice),
	}, nil
}

// GetPrice fetches the current mark price for a token, quoted on the buy
// side (spec.md §6: `GET /price?token_id=X&side=BUY`).
func (c *Client) GetPrice(ctx context.Context, tokenID string) (domain.MarkPrice, error) {
	var resp clobPriceResponse
	if err := c.get(ctx, c.generalLimit, "/price?token_id="+tokenID+"&side=BUY", &resp); err != nil {
		return domain.MarkPrice{}, fmt.Errorf("clob.GetPrice %s: %w", tokenID, err)
	}
	return domain.MarkPrice{TokenID: tokenID, Price: parseFloat(resp.Price), At: time.Now().UTC()}, nil
}

// GetOrderBook fetches the current book and derives a flattened ladder.
func (c *Client) GetOrderBook(ctx context.Context, tokenID string) (domain.OrderBookLadder, error) {
	var resp clobBookResponse
	if err := c.get(ctx, c.generalLimit, "/orderbook?token_id="+tokenID, &resp); err != nil {
		return domain.OrderBookLadder{}, fmt.Errorf("clob.GetOrderBook %s: %w", tokenID, err)
	}

	ladder := domain.OrderBookLadder{}
	for _, lvl := range resp.Bids {
		p := parseFloat(lvl.Price)
		if p > ladder.BestBid {
			ladder.BestBid = p
		}
		ladder.BidLiquidity += parseFloat(lvl.Size)
	}
	for i, lvl := range resp.Asks {
		p := parseFloat(lvl.Price)
		if i == 0 || p < ladder.BestAsk {
			ladder.BestAsk = p
		}
		ladder.AskLiquidity += parseFloat(lvl.Size)
	}
	ladder.Spread = ladder.BestAsk - ladder.BestBid
	return ladder, nil
}

// GetBalance returns the account's available USDC balance as reported by
// the CLOB's own balance endpoint (the on-chain ERC-20 read the teacher
// does via ethclient is out of scope here — see DESIGN.md).
func (c *Client) GetBalance(ctx context.Context) (float64, error) {
	var resp clobBalanceResponse
	if err := c.get(ctx, c.generalLimit, "/balance", &resp); err != nil {
		return 0, fmt.Errorf("clob.GetBalance: %w", err)
	}
	return parseFloat(resp.Balance), nil
}

func parseFloat(s string) float64 {
	if s == "" {
		return 0
	}
	f, _ := strconv.ParseFloat(s, 64)
	return f
}
