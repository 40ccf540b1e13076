package ingest

import (
	"time"

	"github.com/alejandrodnm/polysignal/internal/domain"
)

// wireSignal mirrors the upstream `signal:enter` event shape exactly
// (spec.md §6): a duck-typed, deeply nested JSON document. Every field the
// Bridge needs is flattened out of it once, here, rather than re-derived
// at every gate.
type wireSignal struct {
	Rec struct {
		Action   string `json:"action"`
		Strength string `json:"strength"`
		Side     string `json:"side"`
		Phase    string `json:"phase"`
	} `json:"rec"`
	Signal   string `json:"signal"`
	MarketID string `json:"marketId"`
	Market   struct {
		Slug              string  `json:"slug"`
		Question          string  `json:"question"`
		Category          string  `json:"category"`
		SettlementLeftMin float64 `json:"settlementLeftMin"`
		Orderbook         struct {
			Up   struct{ Spread float64 `json:"spread"` } `json:"up"`
			Down struct{ Spread float64 `json:"spread"` } `json:"down"`
		} `json:"orderbook"`
	} `json:"market"`
	Poly struct {
		Tokens struct {
			UpTokenID   string `json:"upTokenId"`
			DownTokenID string `json:"downTokenId"`
		} `json:"tokens"`
	} `json:"poly"`
	Prices struct {
		Up   float64 `json:"up"`
		Down float64 `json:"down"`
		Spot float64 `json:"spot"`
	} `json:"prices"`
	Edge struct {
		EdgeUp   float64 `json:"edgeUp"`
		EdgeDown float64 `json:"edgeDown"`
	} `json:"edge"`
	Confidence  float64 `json:"confidence"`
	Correlation float64 `json:"correlation"`
	RegimeInfo  string  `json:"regimeInfo"`
	Kelly       float64 `json:"kelly"`
}

func (w wireSignal) toDomain() domain.Signal {
	return domain.Signal{
		SignalID: w.Signal,
		MarketID: w.MarketID,
		Question: w.Market.Question,
		Category: w.Market.Category,
		Slug:     w.Market.Slug,

		Action:   domain.Action(w.Rec.Action),
		Strength: domain.Strength(w.Rec.Strength),
		Side:     domain.Side(w.Rec.Side),

		UpTokenID:   w.Poly.Tokens.UpTokenID,
		DownTokenID: w.Poly.Tokens.DownTokenID,

		PriceUp:   w.Prices.Up,
		PriceDown: w.Prices.Down,
		SpotPrice: w.Prices.Spot,

		EdgeUp: w.Edge.EdgeUp,
		EdgeDown: w.Edge.EdgeDown,

		Confidence: w.Confidence,

		SettlementLeftMin: w.Market.SettlementLeftMin,

		SpreadUp:   w.Market.Orderbook.Up.Spread,
		SpreadDown: w.Market.Orderbook.Down.Spread,

		Regime:      w.RegimeInfo,
		Kelly:       w.Kelly,
		Correlation: w.Correlation,

		ReceivedAt: time.Now().UTC(),
	}
}
