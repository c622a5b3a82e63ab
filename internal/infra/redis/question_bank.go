package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"studybuddy-engine/internal/domain"
	"studybuddy-engine/internal/infra/memory"
	"studybuddy-engine/internal/logger"
)

// QuestionBank caches curated question buckets in Redis and falls back to a
// loader on cache miss. Each bucket is one JSON list:
// SET bank:{subject|topic|difficulty} [...]
type QuestionBank struct {
	client *redis.Client
	loader memory.BankLoader
	ttl    time.Duration
	sf     singleflight.Group
	log    *logger.Logger

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewQuestionBank(client *redis.Client, loader memory.BankLoader, ttl time.Duration, log *logger.Logger) *QuestionBank {
	if log == nil {
		log = logger.Nop()
	}
	return &QuestionBank{
		client: client,
		loader: loader,
		ttl:    ttl,
		log:    log.With("component", "redis_question_bank"),
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Lookup returns a random curated question for the bucket that is not in
// exclude, or nil if none is left.
func (b *QuestionBank) Lookup(ctx context.Context, subject, topic string, difficulty domain.Difficulty, exclude []string) (*domain.Question, error) {
	key := memory.BankKey{Subject: subject, Topic: topic, Difficulty: difficulty}
	questions, err := b.bucket(ctx, key)
	if err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return memory.PickUnseen(b.rnd, questions, exclude), nil
}

func (b *QuestionBank) bucket(ctx context.Context, key memory.BankKey) ([]domain.Question, error) {
	cacheKey := b.cacheKey(key)
	if questions, ok := b.cached(ctx, cacheKey); ok {
		return questions, nil
	}

	result, err, _ := b.sf.Do(cacheKey, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if questions, ok := b.cached(ctx, cacheKey); ok {
			return questions, nil
		}

		questions, err := b.loader.LoadQuestions(ctx, key)
		if err != nil {
			return nil, err
		}
		if questions == nil {
			questions = []domain.Question{}
		}

		raw, err := json.Marshal(questions)
		if err == nil {
			err = b.client.Set(ctx, cacheKey, raw, b.ttlWithJitter()).Err()
		}
		if err != nil {
			b.log.Warn("question bank cache write failed", "key", cacheKey, "error", err)
		}
		return questions, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

func (b *QuestionBank) cached(ctx context.Context, cacheKey string) ([]domain.Question, bool) {
	raw, err := b.client.Get(ctx, cacheKey).Bytes()
	if err != nil {
		return nil, false
	}
	var questions []domain.Question
	if err := json.Unmarshal(raw, &questions); err != nil {
		return nil, false
	}
	return questions, true
}

// Invalidate drops a cached bucket, used after a bank import.
func (b *QuestionBank) Invalidate(ctx context.Context, key memory.BankKey) error {
	return b.client.Del(ctx, b.cacheKey(key)).Err()
}

func (b *QuestionBank) cacheKey(key memory.BankKey) string {
	return "bank:" + key.String()
}

func (b *QuestionBank) ttlWithJitter() time.Duration {
	if b.ttl <= 0 {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	jitterMax := int64(b.ttl) / 10
	return b.ttl + time.Duration(b.rnd.Int63n(jitterMax+1))
}
