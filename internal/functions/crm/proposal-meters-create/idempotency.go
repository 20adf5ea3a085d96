package proposalmeterscreate

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "workflow:proposal-meters:"

// replayStore remembers completed results by caller and requestId so a
// retried request returns the first outcome instead of running again.
type replayStore struct {
	redis redis.Cmdable
	ttl   time.Duration
}

func (s *replayStore) resultKey(uid, requestID string) string {
	return keyPrefix + uid + ":" + requestID
}

func (s *replayStore) lockKey(uid, requestID string) string {
	return s.resultKey(uid, requestID) + ":lock"
}

// replayRecord is a completed result with the fingerprint of the payload
// that produced it.
type replayRecord struct {
	Fingerprint string  `json:"fingerprint"`
	Output      *Output `json:"output"`
}

// fingerprint identifies the work a request asks for, independent of its requestId.
func fingerprint(input *Input) string {
	raw, _ := json.Marshal(struct {
		ProposalID string       `json:"proposalId"`
		Meters     []MeterInput `json:"meters"`
	}{input.ProposalID, input.Meters})
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// load returns the stored record or nil.
func (s *replayStore) load(ctx context.Context, uid, requestID string) (*replayRecord, error) {
	raw, err := s.redis.Get(ctx, s.resultKey(uid, requestID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var rec replayRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, err
	}
	if rec.Output == nil {
		return nil, errors.New("replay record without output")
	}
	return &rec, nil
}

// lock claims requestID for one in-flight run. It reports false when another run holds it.
func (s *replayStore) lock(ctx context.Context, uid, requestID string, hold time.Duration) (bool, error) {
	return s.redis.SetNX(ctx, s.lockKey(uid, requestID), "1", hold).Result()
}

func (s *replayStore) unlock(ctx context.Context, uid, requestID string) error {
	return s.redis.Del(ctx, s.lockKey(uid, requestID)).Err()
}

func (s *replayStore) save(ctx context.Context, uid, requestID, fp string, out *Output) error {
	raw, err := json.Marshal(replayRecord{Fingerprint: fp, Output: out})
	if err != nil {
		return err
	}
	return s.redis.Set(ctx, s.resultKey(uid, requestID), raw, s.ttl).Err()
}
