package domain

import "math"

// criticalEvents and highEvents classify event types before any payload
// inspection happens, per spec.md §4.10's ordered priority rules.
var criticalEvents = map[string]bool{
	EventCircuitBreaker:  true,
	EventClobUnreachable: true,
}

var highEvents = map[string]bool{
	EventOrderRejected:        true,
	EventOrderFillError:       true,
	EventPositionAutoRepaired: true,
	EventPendingTimeout:       true,
}

// tradeEvents carries trade economics (pnl_usd / amount_usd) in its payload and
// is scored by the trade-event rules; everything else falls through to the
// signal-event rules.
var tradeEvents = map[string]bool{
	EventPositionOpened:   true,
	EventPositionClosed:   true,
	EventPartialExit:      true,
	EventOrderPartialFill: true,
	EventOrderPlaced:      true,
}

// ScorePriority implements the ordered priority rules of spec.md §4.10.
func ScorePriority(eventType string, data map[string]any) Priority {
	if criticalEvents[eventType] {
		return PriorityCritical
	}
	if highEvents[eventType] {
		return PriorityHigh
	}
	if tradeEvents[eventType] {
		return scoreTradeEvent(eventType, data)
	}
	return scoreSignalEvent(data)
}

func scoreTradeEvent(eventType string, data map[string]any) Priority {
	pnl := floatField(data, "pnl_usd")
	amount := floatField(data, "amount_usd")

	closedWithLoss := eventType == EventPositionClosed && pnl < -20
	if math.Abs(pnl) > 50 || amount > 100 || closedWithLoss {
		return PriorityHigh
	}
	return PriorityMedium
}

func scoreSignalEvent(data map[string]any) Priority {
	edge := floatField(data, "edge")
	confidence := floatField(data, "confidence")

	switch {
	case edge > 0.15:
		return PriorityHigh
	case confidence > 80 && edge > 0.08:
		return PriorityHigh
	case confidence < 40 || edge < 0.03:
		return PriorityLow
	default:
		return PriorityMedium
	}
}

// floatField extracts a float64 from a loosely-typed payload map, tolerating
// the int/float64 mix json.Unmarshal and direct construction both produce.
func floatField(data map[string]any, key string) float64 {
	v, ok := data[key]
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	default:
		return 0
	}
}
