package bridge

import (
	"encoding/csv"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/alejandrodnm/polysignal/internal/domain"
)

var csvHeader = []string{
	"timestamp", "signal_id", "market_id", "category", "side",
	"token_id", "amount_usd", "entry_price", "edge", "confidence",
}

// CSVSink appends one row per dry-run trade to a CSV file (spec.md §6). No
// third-party CSV writer appears anywhere in the pack's dependency surface,
// so this is built directly on encoding/csv.
type CSVSink struct {
	mu   sync.Mutex
	f    *os.File
	w    *csv.Writer
}

// NewCSVSink opens (creating if needed) the dry-run ledger at path and
// writes the header row if the file is new.
func NewCSVSink(path string) (*CSVSink, error) {
	info, statErr := os.Stat(path)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("bridge.NewCSVSink: %w", err)
	}
	w := csv.NewWriter(f)
	sink := &CSVSink{f: f, w: w}
	if statErr != nil || info.Size() == 0 {
		if err := w.Write(csvHeader); err != nil {
			f.Close()
			return nil, fmt.Errorf("bridge.NewCSVSink: write header: %w", err)
		}
		w.Flush()
	}
	return sink, nil
}

// Append writes one dry-run trade row and flushes immediately, so a crash
// never loses an already-accepted trade from the ledger.
func (s *CSVSink) Append(at time.Time, signal domain.Signal, tokenID string, betSize float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := []string{
		at.UTC().Format(time.RFC3339),
		signal.SignalID,
		signal.MarketID,
		signal.Category,
		string(signal.Side),
		tokenID,
		fmt.Sprintf("%.2f", betSize),
		fmt.Sprintf("%.4f", signal.Price()),
		fmt.Sprintf("%.4f", signal.Edge()),
		fmt.Sprintf("%.2f", signal.Confidence),
	}
	if err := s.w.Write(row); err != nil {
		return fmt.Errorf("bridge.CSVSink.Append: %w", err)
	}
	s.w.Flush()
	return s.w.Error()
}

// Close flushes and closes the underlying file.
func (s *CSVSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.w.Flush()
	return s.f.Close()
}
