package memory

import (
	"context"
	"math/rand"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"studybuddy-engine/internal/domain"
)

// BankKey addresses one bucket of curated questions.
type BankKey struct {
	Subject    string
	Topic      string
	Difficulty domain.Difficulty
}

// String is the normalised cache key.
func (k BankKey) String() string {
	return strings.ToLower(strings.TrimSpace(k.Subject)) + "|" +
		strings.ToLower(strings.TrimSpace(k.Topic)) + "|" + string(k.Difficulty)
}

// BankLoader fetches curated questions from a backing store.
type BankLoader interface {
	LoadQuestions(ctx context.Context, key BankKey) ([]domain.Question, error)
}

// QuestionBank caches bank buckets with TTL to avoid repeated DB hits and
// serves a random question per lookup.
type QuestionBank struct {
	loader BankLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group

	mu    sync.RWMutex
	rnd   *rand.Rand
	cache map[string]cachedBucket
}

type cachedBucket struct {
	questions []domain.Question
	expiresAt time.Time
}

func NewQuestionBank(loader BankLoader, ttl time.Duration) *QuestionBank {
	return &QuestionBank{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedBucket),
	}
}

// Lookup returns a random curated question for the key whose text is not in
// exclude, or nil if every question in the bucket was excluded.
func (b *QuestionBank) Lookup(ctx context.Context, subject, topic string, difficulty domain.Difficulty, exclude []string) (*domain.Question, error) {
	questions, err := b.bucket(ctx, BankKey{Subject: subject, Topic: topic, Difficulty: difficulty})
	if err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return PickUnseen(b.rnd, questions, exclude), nil
}

// PickUnseen picks a random question whose trimmed text is not in exclude.
// The returned question owns its answers slice.
func PickUnseen(rnd *rand.Rand, questions []domain.Question, exclude []string) *domain.Question {
	seen := make(map[string]struct{}, len(exclude))
	for _, text := range exclude {
		seen[strings.TrimSpace(text)] = struct{}{}
	}
	candidates := make([]int, 0, len(questions))
	for i, q := range questions {
		if _, dup := seen[strings.TrimSpace(q.Text)]; !dup {
			candidates = append(candidates, i)
		}
	}
	if len(candidates) == 0 {
		return nil
	}
	q := questions[candidates[rnd.Intn(len(candidates))]]
	q.Answers = append([]string(nil), q.Answers...)
	return &q
}

func (b *QuestionBank) bucket(ctx context.Context, key BankKey) ([]domain.Question, error) {
	id := key.String()
	now := b.clock()

	b.mu.RLock()
	if entry, ok := b.cache[id]; ok && entry.expiresAt.After(now) {
		b.mu.RUnlock()
		return entry.questions, nil
	}
	b.mu.RUnlock()

	result, err, _ := b.sf.Do(id, func() (interface{}, error) {
		now := b.clock()
		b.mu.RLock()
		if entry, ok := b.cache[id]; ok && entry.expiresAt.After(now) {
			b.mu.RUnlock()
			return entry.questions, nil
		}
		b.mu.RUnlock()

		questions, err := b.loader.LoadQuestions(ctx, key)
		if err != nil {
			return nil, err
		}

		b.mu.Lock()
		b.cache[id] = cachedBucket{
			questions: questions,
			expiresAt: now.Add(b.ttlWithJitterLocked()),
		}
		b.mu.Unlock()
		return questions, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

func (b *QuestionBank) ttlWithJitterLocked() time.Duration {
	if b.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(b.ttl) / 10
	return b.ttl + time.Duration(b.rnd.Int63n(jitterMax+1))
}

// StaticBankLoader is a loader backed by an in-memory slice (useful for tests/demos).
type StaticBankLoader struct {
	buckets map[string][]domain.Question
}

func NewStaticBankLoader(questions []domain.Question) *StaticBankLoader {
	l := &StaticBankLoader{buckets: make(map[string][]domain.Question)}
	for _, q := range questions {
		key := BankKey{Subject: q.Subject, Topic: q.Topic, Difficulty: q.Difficulty}.String()
		l.buckets[key] = append(l.buckets[key], q)
	}
	return l
}

func (l *StaticBankLoader) LoadQuestions(_ context.Context, key BankKey) ([]domain.Question, error) {
	return l.buckets[key.String()], nil
}
