// Package pending stages not-yet-committed signups and password resets in
// Redis under expiring keys.
package pending

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	signupPrefix = "otp:"
	resetPrefix  = "passreset:"
)

var (
	// ErrNotFound means the entry expired or was never written.
	ErrNotFound = errors.New("pending entry not found")
	// ErrCorrupt means the stored value could not be decoded.
	ErrCorrupt = errors.New("pending entry corrupt")
)

// Candidate is a signup waiting for OTP confirmation. It lives only in the
// cache and disappears when its TTL runs out.
type Candidate struct {
	Email        string    `json:"email"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"password"`
	OTP          string    `json:"otp"`
	CreatedAt    time.Time `json:"createdAt,omitempty"`
}

// ResetRequest is an outstanding password-reset code.
type ResetRequest struct {
	Email     string    `json:"email"`
	OTP       string    `json:"otp"`
	CreatedAt time.Time `json:"createdAt"`
}

type Store struct {
	client *redis.Client
}

func NewStore(client *redis.Client) *Store {
	return &Store{client: client}
}

// Connect parses a redis:// URL and verifies the server is reachable.
func Connect(ctx context.Context, rawURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	return client, nil
}

func SignupKey(email string) string {
	return signupPrefix + normalize(email)
}

func ResetKey(email string) string {
	return resetPrefix + normalize(email)
}

func (s *Store) PutCandidate(ctx context.Context, c Candidate, ttl time.Duration) error {
	return s.put(ctx, SignupKey(c.Email), c, ttl)
}

// GetCandidate loads a signup candidate. A corrupt value is deleted before
// ErrCorrupt is returned.
func (s *Store) GetCandidate(ctx context.Context, email string) (*Candidate, error) {
	var c Candidate
	if err := s.get(ctx, SignupKey(email), &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Store) DeleteCandidate(ctx context.Context, email string) error {
	return s.del(ctx, SignupKey(email))
}

// ReplaceCandidateOTP rewrites the candidate with a new code while keeping
// whatever TTL the key has left. A non-positive remaining TTL is reset to
// fullTTL.
func (s *Store) ReplaceCandidateOTP(ctx context.Context, c Candidate, otp string, fullTTL time.Duration) error {
	key := SignupKey(c.Email)
	ttl, err := s.client.TTL(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("reading ttl: %w", err)
	}
	if ttl <= 0 {
		ttl = fullTTL
	}
	c.OTP = otp
	return s.put(ctx, key, c, ttl)
}

func (s *Store) PutReset(ctx context.Context, r ResetRequest, ttl time.Duration) error {
	return s.put(ctx, ResetKey(r.Email), r, ttl)
}

func (s *Store) GetReset(ctx context.Context, email string) (*ResetRequest, error) {
	var r ResetRequest
	if err := s.get(ctx, ResetKey(email), &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *Store) DeleteReset(ctx context.Context, email string) error {
	return s.del(ctx, ResetKey(email))
}

// Ping is used by health checks.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Store) put(ctx context.Context, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding pending entry: %w", err)
	}
	if err := s.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("writing pending entry: %w", err)
	}
	return nil
}

func (s *Store) get(ctx context.Context, key string, dst any) error {
	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("reading pending entry: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		if delErr := s.del(ctx, key); delErr != nil {
			return fmt.Errorf("%w (cleanup failed: %v)", ErrCorrupt, delErr)
		}
		return ErrCorrupt
	}
	return nil
}

func (s *Store) del(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("deleting pending entry: %w", err)
	}
	return nil
}

func normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
