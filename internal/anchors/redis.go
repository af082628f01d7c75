package anchors

import (
	"context"
	"fmt"
	"time"

	"github.com/saaga0h/jeeves-circadian/internal/dayschedule"
	"github.com/saaga0h/jeeves-circadian/pkg/redis"
)

// RedisSource reads anchors from a hash written by another agent
type RedisSource struct {
	redis redis.Client
	key   string
	loc   *time.Location
}

// NewRedisSource creates a source reading the given hash key
func NewRedisSource(client redis.Client, key string, loc *time.Location) *RedisSource {
	return &RedisSource{
		redis: client,
		key:   key,
		loc:   loc,
	}
}

// NextAnchors reads and parses the hash
func (s *RedisSource) NextAnchors(ctx context.Context) (dayschedule.Anchors, error) {
	fields, err := s.redis.HGetAll(ctx, s.key)
	if err != nil {
		return dayschedule.Anchors{}, fmt.Errorf("%w: %w", dayschedule.ErrAnchorUnavailable, err)
	}
	if len(fields) == 0 {
		return dayschedule.Anchors{}, fmt.Errorf("%w: hash %s is empty", dayschedule.ErrAnchorUnavailable, s.key)
	}

	a, err := ParseFields(fields, s.loc)
	if err != nil {
		return dayschedule.Anchors{}, fmt.Errorf("%w: %w", dayschedule.ErrAnchorUnavailable, err)
	}
	return a, nil
}
