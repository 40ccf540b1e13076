// Package configstore implements the Config Store (spec.md §4.1): validated
// runtime-tunable parameters backed by the Persistent Store, cached
// in-memory, and broadcast to subscribers on change.
package configstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/alejandrodnm/polysignal/internal/domain"
	"github.com/alejandrodnm/polysignal/internal/ports"
)

// Store is the Config Store. It keeps a live cache of every recognized key
// and persists accepted changes through a single transaction in the
// Persistent Store before updating the cache, matching the teacher's
// load-then-apply sequencing for config mutation.
type Store struct {
	db    ports.ConfigStore
	audit ports.AuditStore

	mu     sync.RWMutex
	values map[string]domain.ConfigValue
	rules  map[string]domain.ConfigRule

	subscribers []chan domain.ConfigValue
}

// New creates a Config Store and loads the current cache from the
// Persistent Store. Callers must have already run a migration that seeds
// domain.DefaultValues on first boot (sqlitestore.Store.Migrate does this).
func New(ctx context.Context, db ports.ConfigStore, audit ports.AuditStore) (*Store, error) {
	s := &Store{
		db:    db,
		audit: audit,
		rules: domain.DefaultRules(),
	}
	if err := s.reload(ctx); err != nil {
		return nil, fmt.Errorf("configstore.New: %w", err)
	}
	return s, nil
}

func (s *Store) reload(ctx context.Context) error {
	values, err := s.db.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	s.mu.Lock()
	s.values = values
	s.mu.Unlock()
	return nil
}

// Get returns the current cached value for key. The second return is false
// for an unrecognized key.
func (s *Store) Get(key string) (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	if !ok {
		return 0, false
	}
	return v.Value, true
}

// GetAll returns a snapshot of every cached key/value.
func (s *Store) GetAll() map[string]float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]float64, len(s.values))
	for k, v := range s.values {
		out[k] = v.Value
	}
	return out
}

// GetDetailed returns the full ConfigValue rows, including UpdatedAt/By.
func (s *Store) GetDetailed() map[string]domain.ConfigValue {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]domain.ConfigValue, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

// ExposureCheck reports the current exposure state so Update can emit
// warnings when a tightened limit would already be violated (spec.md §4.1:
// "Warnings ... when a new max_open_positions is below current open count,
// or a new max_total_exposure_usd is below current exposure").
type ExposureCheck struct {
	OpenPositions      int
	TotalExposureUSD   float64
}

// Update validates and persists a batch of changes. Rejected keys do not
// block the rest of the batch. Accepted changes are persisted in a single
// transaction (delegated to the repository) and then applied to the cache.
func (s *Store) Update(ctx context.Context, changes map[string]float64, actor string, exposure ExposureCheck) (domain.ConfigUpdateResult, error) {
	result := domain.ConfigUpdateResult{
		Errors:   make(map[string]string),
		Warnings: make(map[string]string),
	}

	accepted := make(map[string]float64, len(changes))
	for key, value := range changes {
		rule, known := s.rules[key]
		if !known {
			result.Errors[key] = "unrecognized key"
			continue
		}
		if !rule.Valid(value) {
			result.Errors[key] = fmt.Sprintf("value %.4f out of range [%.4f, %.4f]", value, rule.Min, rule.Max)
			continue
		}
		accepted[key] = value
		result.Updated = append(result.Updated, key)
	}

	if v, ok := accepted[domain.KeyMaxOpenPositions]; ok && int(v) < exposure.OpenPositions {
		result.Warnings[domain.KeyMaxOpenPositions] = fmt.Sprintf("new limit %d is below current open count %d", int(v), exposure.OpenPositions)
	}
	if v, ok := accepted[domain.KeyMaxTotalExposureUSD]; ok && v < exposure.TotalExposureUSD {
		result.Warnings[domain.KeyMaxTotalExposureUSD] = fmt.Sprintf("new limit %.2f is below current exposure %.2f", v, exposure.TotalExposureUSD)
	}

	if len(accepted) == 0 {
		return result, nil
	}

	if err := s.db.SetMany(ctx, accepted, actor); err != nil {
		return result, fmt.Errorf("configstore.Update: persist: %w", err)
	}

	now := time.Now().UTC()
	s.mu.Lock()
	for key, value := range accepted {
		cv := domain.ConfigValue{Key: key, Value: value, UpdatedAt: now, UpdatedBy: actor}
		s.values[key] = cv
	}
	s.mu.Unlock()

	s.broadcast(accepted, actor, now)

	if s.audit != nil {
		detail := make(map[string]any, len(accepted))
		for k, v := range accepted {
			detail[k] = v
		}
		detail["actor"] = actor
		// Audit failures must never propagate to the caller (spec.md §4.5).
		_, _ = s.audit.Append(ctx, domain.AuditEvent{
			EventType: domain.EventConfigChange,
			Detail:    detail,
			At:        now,
		})
	}

	return result, nil
}

// Subscribe registers a channel that receives every accepted change. The
// channel is buffered; a slow subscriber drops changes rather than blocking
// the update path.
func (s *Store) Subscribe() <-chan domain.ConfigValue {
	ch := make(chan domain.ConfigValue, 16)
	s.mu.Lock()
	s.subscribers = append(s.subscribers, ch)
	s.mu.Unlock()
	return ch
}

func (s *Store) broadcast(accepted map[string]float64, actor string, at time.Time) {
	s.mu.RLock()
	subs := append([]chan domain.ConfigValue(nil), s.subscribers...)
	s.mu.RUnlock()

	for key, value := range accepted {
		cv := domain.ConfigValue{Key: key, Value: value, UpdatedAt: at, UpdatedBy: actor}
		for _, ch := range subs {
			select {
			case ch <- cv:
			default:
			}
		}
	}
}
