package auth

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"carehome.org/internal/cache"
	"carehome.org/internal/ids"
)

const defaultCaptchaTTL = 2 * time.Minute

// Challenge is an issued captcha: the opaque id the client echoes back
// and the human-presentable question. The answer never leaves the cache.
type Challenge struct {
	ID   string
	Text string
}

// CaptchaManager issues short-lived arithmetic challenges and validates
// each one at most once. The shared cache is the single source of truth,
// so the consume-once invariant holds across replicas.
type CaptchaManager struct {
	cache cache.Cache
	ttl   time.Duration
}

func NewCaptchaManager(c cache.Cache, ttl time.Duration) *CaptchaManager {
	if ttl <= 0 {
		ttl = defaultCaptchaTTL
	}
	return &CaptchaManager{cache: c, ttl: ttl}
}

// Issue generates a challenge and stores its result under
// captcha_codes:<id> with the configured TTL. Only the question is
// returned; solving it is the client's job.
func (m *CaptchaManager) Issue(ctx context.Context) (Challenge, error) {
	question, answer, err := randomChallenge()
	if err != nil {
		return Challenge{}, fmt.Errorf("generate captcha: %w", err)
	}
	id := ids.New()
	key := cache.BuildKey(cache.CaptchaKeyPrefix, id)
	if err := m.cache.Set(ctx, key, answer, m.ttl); err != nil {
		return Challenge{}, err
	}
	return Challenge{ID: id, Text: question}, nil
}

// Verify consumes the challenge in a single atomic step and checks the
// proposed answer. An absent key (expired or already used) and a
// mismatch are both ErrCaptchaInvalid: any retry must go through Issue
// again. A cache failure is reported as-is; the caller must not treat an
// unverifiable captcha as valid.
func (m *CaptchaManager) Verify(ctx context.Context, challengeID, answer string) error {
	challengeID = strings.TrimSpace(challengeID)
	answer = strings.TrimSpace(answer)
	if challengeID == "" || answer == "" {
		return ErrCaptchaInvalid
	}
	key := cache.BuildKey(cache.CaptchaKeyPrefix, challengeID)
	want, ok, err := m.cache.GetDel(ctx, key)
	if err != nil {
		return err
	}
	if !ok || want != answer {
		return ErrCaptchaInvalid
	}
	return nil
}

// randomChallenge produces a small arithmetic question and its result.
// Subtraction operands are ordered so the result is never negative.
func randomChallenge() (question, answer string, err error) {
	a, err := randomDigit()
	if err != nil {
		return "", "", err
	}
	b, err := randomDigit()
	if err != nil {
		return "", "", err
	}
	op, err := randomBelow(3)
	if err != nil {
		return "", "", err
	}

	var result int
	switch op {
	case 0:
		question = fmt.Sprintf("%d + %d = ?", a, b)
		result = a + b
	case 1:
		if a < b {
			a, b = b, a
		}
		question = fmt.Sprintf("%d - %d = ?", a, b)
		result = a - b
	default:
		question = fmt.Sprintf("%d * %d = ?", a, b)
		result = a * b
	}
	return question, strconv.Itoa(result), nil
}

func randomDigit() (int, error) {
	n, err := randomBelow(9)
	if err != nil {
		return 0, err
	}
	return n + 1, nil
}

func randomBelow(n int64) (int, error) {
	v, err := rand.Int(rand.Reader, big.NewInt(n))
	if err != nil {
		return 0, err
	}
	return int(v.Int64()), nil
}
