package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/agentestate/outreach/pkg/logging"
)

const stateCacheTTL = 24 * time.Hour

func stateKey(leadID string) string {
	return fmt.Sprintf("conversation_state:%s", leadID)
}

// stateCache keeps the hot copy of conversation state in Redis so webhook
// turns avoid a Postgres round trip.
type stateCache struct {
	redis  *redis.Client
	tracer trace.Tracer
}

func newStateCache(client *redis.Client, tracer trace.Tracer) *stateCache {
	if client == nil {
		panic("conversation: redis client cannot be nil")
	}
	if tracer == nil {
		tracer = otel.Tracer("outreach.internal.conversation.state")
	}
	return &stateCache{redis: client, tracer: tracer}
}

func (c *stateCache) Save(ctx context.Context, st *State) error {
	ctx, span := c.tracer.Start(ctx, "conversation.cache_state")
	defer span.End()

	data, err := json.Marshal(st)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: failed to marshal state: %w", err)
	}
	if err := c.redis.Set(ctx, stateKey(st.LeadID), data, stateCacheTTL).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: failed to cache state: %w", err)
	}
	return nil
}

func (c *stateCache) Load(ctx context.Context, leadID string) (*State, error) {
	ctx, span := c.tracer.Start(ctx, "conversation.load_cached_state")
	defer span.End()

	data, err := c.redis.Get(ctx, stateKey(leadID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrStateNotFound
		}
		span.RecordError(err)
		return nil, fmt.Errorf("conversation: failed to load cached state: %w", err)
	}

	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("conversation: failed to decode cached state: %w", err)
	}
	return &st, nil
}

// CachedStateStore layers the Redis cache over the durable store. Writes go
// to both; a cache failure after a durable write is logged, not returned.
type CachedStateStore struct {
	store  StateStore
	cache  *stateCache
	logger *logging.Logger
}

// NewCachedStateStore wires the cache in front of the durable store.
func NewCachedStateStore(store StateStore, client *redis.Client, logger *logging.Logger) *CachedStateStore {
	if store == nil {
		panic("conversation: state store cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &CachedStateStore{
		store:  store,
		cache:  newStateCache(client, nil),
		logger: logger,
	}
}

var _ StateStore = (*CachedStateStore)(nil)

func (s *CachedStateStore) Save(ctx context.Context, st *State) error {
	if err := s.store.Save(ctx, st); err != nil {
		return err
	}
	if err := s.cache.Save(ctx, st); err != nil {
		s.logger.Warn("state cached write failed", "lead_id", st.LeadID, "error", err)
	}
	return nil
}

func (s *CachedStateStore) Load(ctx context.Context, leadID string) (*State, error) {
	st, err := s.cache.Load(ctx, leadID)
	if err == nil {
		return st, nil
	}
	if !errors.Is(err, ErrStateNotFound) {
		s.logger.Warn("state cache read failed", "lead_id", leadID, "error", err)
	}

	st, err = s.store.Load(ctx, leadID)
	if err != nil {
		return nil, err
	}
	if cacheErr := s.cache.Save(ctx, st); cacheErr != nil {
		s.logger.Warn("state cache backfill failed", "lead_id", leadID, "error", cacheErr)
	}
	return st, nil
}

func (s *CachedStateStore) ListByStage(ctx context.Context, stage Stage, limit int) ([]*State, error) {
	return s.store.ListByStage(ctx, stage, limit)
}
