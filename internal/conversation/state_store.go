package conversation

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrStateNotFound indicates no conversation state exists for the lead.
var ErrStateNotFound = errors.New("conversation: state not found")

// StateStore is the durable home of conversation state, keyed by lead ID.
type StateStore interface {
	Save(ctx context.Context, st *State) error
	Load(ctx context.Context, leadID string) (*State, error)
	ListByStage(ctx context.Context, stage Stage, limit int) ([]*State, error)
}

// PGStateStore persists conversation state as a JSONB document per lead,
// with the stage and timestamps lifted into columns for the follow-up
// scheduler's queries.
type PGStateStore struct {
	db *sql.DB
}

// NewPGStateStore builds a Postgres-backed state store. The caller owns the
// pool and the lib/pq driver registration.
func NewPGStateStore(db *sql.DB) *PGStateStore {
	if db == nil {
		panic("conversation: sql db cannot be nil")
	}
	return &PGStateStore{db: db}
}

var _ StateStore = (*PGStateStore)(nil)

// Save upserts the lead's state document.
func (s *PGStateStore) Save(ctx context.Context, st *State) error {
	if st == nil {
		return errors.New("conversation: state cannot be nil")
	}
	if st.LeadID == "" {
		return errors.New("conversation: state requires a lead id")
	}

	doc, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("conversation: failed to encode state: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO conversation_states (lead_id, campaign_id, stage, state, last_contact_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (lead_id) DO UPDATE
		SET campaign_id = EXCLUDED.campaign_id,
		    stage = EXCLUDED.stage,
		    state = EXCLUDED.state,
		    last_contact_at = EXCLUDED.last_contact_at,
		    updated_at = EXCLUDED.updated_at
	`, st.LeadID, st.CampaignID, string(st.Stage), doc, nullTime(st.LastContactTime), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("conversation: failed to persist state: %w", err)
	}
	return nil
}

// Load fetches the lead's state document.
func (s *PGStateStore) Load(ctx context.Context, leadID string) (*State, error) {
	if leadID == "" {
		return nil, errors.New("conversation: lead id required")
	}

	var doc []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT state FROM conversation_states WHERE lead_id = $1
	`, leadID).Scan(&doc)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrStateNotFound
		}
		return nil, fmt.Errorf("conversation: failed to fetch state: %w", err)
	}

	var st State
	if err := json.Unmarshal(doc, &st); err != nil {
		return nil, fmt.Errorf("conversation: failed to decode state: %w", err)
	}
	return &st, nil
}

// ListByStage returns states in a stage, oldest contact first, for the
// follow-up scheduler.
func (s *PGStateStore) ListByStage(ctx context.Context, stage Stage, limit int) ([]*State, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT state FROM conversation_states
		WHERE stage = $1
		ORDER BY last_contact_at ASC NULLS FIRST
		LIMIT $2
	`, string(stage), limit)
	if err != nil {
		return nil, fmt.Errorf("conversation: failed to list states: %w", err)
	}
	defer rows.Close()

	var states []*State
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("conversation: failed to scan state: %w", err)
		}
		var st State
		if err := json.Unmarshal(doc, &st); err != nil {
			return nil, fmt.Errorf("conversation: failed to decode state: %w", err)
		}
		states = append(states, &st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("conversation: failed to iterate states: %w", err)
	}
	return states, nil
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
