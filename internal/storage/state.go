// Package storage persists the last accepted state of each light.
package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mlutz/deconzd/internal/deconz"
)

// LightStateStore stores the last accepted light state per light id as a
// versioned JSON payload.
type LightStateStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewLightStateStore creates a new light state store.
func NewLightStateStore(db *sql.DB) *LightStateStore {
	return &LightStateStore{db: db}
}

// Get retrieves the stored state for a light. Returns nil if not found.
func (s *LightStateStore) Get(id string) (*deconz.LightState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var payload string
	err := s.db.QueryRow(`
		SELECT payload FROM light_state WHERE id = ?
	`, id).Scan(&payload)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var state deconz.LightState
	if err := json.Unmarshal([]byte(payload), &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal state for %s: %w", id, err)
	}

	return &state, nil
}

// Set stores the state for a light, incrementing its version.
func (s *LightStateStore) Set(id string, state deconz.LightState) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC().Unix()

	_, err = s.db.Exec(`
		INSERT INTO light_state (id, payload, version, updated_at)
		VALUES (?, ?, 1, ?)
		ON CONFLICT(id) DO UPDATE SET
			payload = excluded.payload,
			version = version + 1,
			updated_at = excluded.updated_at
	`, id, string(payload), now)

	if err == nil {
		log.Debug().
			Str("light", id).
			Str("payload", string(payload)).
			Msg("Persisted light state")
	}

	return err
}

// All retrieves all stored light states keyed by id.
func (s *LightStateStore) All() (map[string]deconz.LightState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT id, payload FROM light_state`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	states := make(map[string]deconz.LightState)
	for rows.Next() {
		var id, payload string
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, err
		}

		var state deconz.LightState
		if err := json.Unmarshal([]byte(payload), &state); err != nil {
			return nil, fmt.Errorf("failed to unmarshal state for %s: %w", id, err)
		}
		states[id] = state
	}

	return states, rows.Err()
}

// Delete removes the stored state for a light.
func (s *LightStateStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`DELETE FROM light_state WHERE id = ?`, id)
	return err
}

// Clear removes all stored light states.
func (s *LightStateStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`DELETE FROM light_state`)
	return err
}
