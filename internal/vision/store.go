package vision

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store keeps a short trail of JPEG frames per session in a sorted set scored
// by capture time. Members carry their timestamp so that identical images
// from a still scene are kept as separate entries.
type Store struct {
	redis  *redis.Client
	window time.Duration
}

func NewStore(redisClient *redis.Client, window time.Duration) *Store {
	if window <= 0 {
		window = 60 * time.Second
	}
	return &Store{
		redis:  redisClient,
		window: window,
	}
}

func trailKey(sessionID string) string {
	return "narrator:" + sessionID + ":frames"
}

func encodeMember(frame *Frame) string {
	return strconv.FormatInt(frame.Timestamp, 10) + ":" + string(frame.Data)
}

func decodeMember(sessionID string, z redis.Z) (*Frame, error) {
	raw, ok := z.Member.(string)
	if !ok {
		return nil, fmt.Errorf("decode frame: unexpected member %T", z.Member)
	}
	i := strings.IndexByte(raw, ':')
	if i < 0 {
		return nil, fmt.Errorf("decode frame: missing timestamp")
	}
	return &Frame{
		SessionID: sessionID,
		Timestamp: int64(z.Score),
		Data:      []byte(raw[i+1:]),
	}, nil
}

// StoreFrame appends the frame and drops everything older than the window
// relative to it.
func (s *Store) StoreFrame(ctx context.Context, frame *Frame) error {
	key := trailKey(frame.SessionID)
	oldest := frame.Timestamp - s.window.Milliseconds()

	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, key, redis.Z{Score: float64(frame.Timestamp), Member: encodeMember(frame)})
		pipe.ZRemRangeByScore(ctx, key, "-inf", "("+strconv.FormatInt(oldest, 10))
		pipe.Expire(ctx, key, s.window)
		return nil
	})
	if err != nil {
		return fmt.Errorf("store frame: %w", err)
	}
	return nil
}

// GetLatestFrame returns nil without error when the trail is empty.
func (s *Store) GetLatestFrame(ctx context.Context, sessionID string) (*Frame, error) {
	results, err := s.redis.ZRevRangeWithScores(ctx, trailKey(sessionID), 0, 0).Result()
	if err != nil {
		return nil, fmt.Errorf("read latest frame: %w", err)
	}
	if len(results) == 0 {
		return nil, nil
	}
	return decodeMember(sessionID, results[0])
}

// Trail returns up to limit frames captured in [from, to], oldest first.
// A zero limit means no limit.
func (s *Store) Trail(ctx context.Context, sessionID string, from, to time.Time, limit int) ([]*Frame, error) {
	results, err := s.redis.ZRangeByScoreWithScores(ctx, trailKey(sessionID), &redis.ZRangeBy{
		Min:   strconv.FormatInt(from.UnixMilli(), 10),
		Max:   strconv.FormatInt(to.UnixMilli(), 10),
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("read frame trail: %w", err)
	}

	frames := make([]*Frame, 0, len(results))
	for _, r := range results {
		frame, err := decodeMember(sessionID, r)
		if err != nil {
			continue
		}
		frames = append(frames, frame)
	}
	return frames, nil
}
