package compliance

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// OptOutLookup answers whether a contact address has opted out of messaging.
type OptOutLookup interface {
	IsOptedOut(ctx context.Context, contact string) (bool, error)
}

// OptOutStore persists opted-out contacts in redis. Entries never expire;
// re-consent is an operator action, not a TTL.
type OptOutStore struct {
	redis  *redis.Client
	tracer trace.Tracer
}

// NewOptOutStore builds a store backed by the provided redis client.
func NewOptOutStore(client *redis.Client, tracer trace.Tracer) *OptOutStore {
	if client == nil {
		panic("compliance: redis client cannot be nil")
	}
	if tracer == nil {
		tracer = otel.Tracer("outreach.internal.compliance.optout")
	}
	return &OptOutStore{
		redis:  client,
		tracer: tracer,
	}
}

var _ OptOutLookup = (*OptOutStore)(nil)

// MarkOptedOut records the contact as opted out.
func (s *OptOutStore) MarkOptedOut(ctx context.Context, contact string) error {
	ctx, span := s.tracer.Start(ctx, "compliance.mark_opted_out")
	defer span.End()

	key := optOutKey(contact)
	if err := s.redis.Set(ctx, key, "1", 0).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("compliance: failed to persist opt-out: %w", err)
	}
	return nil
}

// IsOptedOut reports whether the contact previously opted out.
func (s *OptOutStore) IsOptedOut(ctx context.Context, contact string) (bool, error) {
	ctx, span := s.tracer.Start(ctx, "compliance.is_opted_out")
	defer span.End()

	_, err := s.redis.Get(ctx, optOutKey(contact)).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		span.RecordError(err)
		return false, fmt.Errorf("compliance: failed to read opt-out: %w", err)
	}
	return true, nil
}

func optOutKey(contact string) string {
	return "optout:" + NormalizeContact(contact)
}

// NormalizeContact canonicalizes a phone number or email address for keying.
// Emails are lowercased; phone numbers are reduced to their digits with any
// leading US country code stripped.
func NormalizeContact(contact string) string {
	c := strings.TrimSpace(contact)
	if strings.Contains(c, "@") {
		return strings.ToLower(c)
	}
	var digits strings.Builder
	for _, r := range c {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	d := digits.String()
	if len(d) == 11 && strings.HasPrefix(d, "1") {
		d = d[1:]
	}
	return d
}
