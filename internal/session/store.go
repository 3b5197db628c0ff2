// Package session keeps per-session assessment state in Redis.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	apperrors "pathfinder-workers/internal/common/errors"
	"pathfinder-workers/internal/models"

	"github.com/redis/go-redis/v9"
)

// Store persists the interest profile, the triage result and the finalized assessment of a session.
// Every record is written once per session; later writes see the first value or fail.
type Store interface {
	SaveInterest(ctx context.Context, p *models.InterestProfile) error
	GetInterest(ctx context.Context, sessionID string) (*models.InterestProfile, error)
	SaveTriageOnce(ctx context.Context, t *models.Triage) (*models.Triage, bool, error)
	GetTriage(ctx context.Context, sessionID string) (*models.Triage, error)
	FinalizeAssessment(ctx context.Context, a *models.SkillAssessment) error
	GetAssessment(ctx context.Context, sessionID string) (*models.SkillAssessment, error)
}

const (
	kindInterest   = "interest"
	kindTriage     = "triage"
	kindAssessment = "assessment"
)

type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, prefix: prefix, ttl: ttl}
}

func (s *RedisStore) key(sessionID, kind string) string {
	return fmt.Sprintf("%s%s:%s", s.prefix, sessionID, kind)
}

// SaveInterest stores the session's interest profile. A session keeps its first profile;
// a second save fails with INTEREST_ALREADY_SUBMITTED.
func (s *RedisStore) SaveInterest(ctx context.Context, p *models.InterestProfile) error {
	data, err := json.Marshal(p)
	if err != nil {
		return apperrors.NewInternalError(fmt.Errorf("encode interest profile: %w", err))
	}

	created, err := s.client.SetNX(ctx, s.key(p.SessionID, kindInterest), data, s.ttl).Result()
	if err != nil {
		return apperrors.NewSessionStoreError("save interest", err)
	}
	if !created {
		return apperrors.NewInterestSubmittedError(p.SessionID)
	}
	return nil
}

func (s *RedisStore) GetInterest(ctx context.Context, sessionID string) (*models.InterestProfile, error) {
	var p models.InterestProfile
	if err := s.get(ctx, sessionID, kindInterest, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// SaveTriageOnce stores t unless the session already has a triage. It returns the stored
// triage and whether this call created it.
func (s *RedisStore) SaveTriageOnce(ctx context.Context, t *models.Triage) (*models.Triage, bool, error) {
	data, err := json.Marshal(t)
	if err != nil {
		return nil, false, apperrors.NewInternalError(fmt.Errorf("encode triage: %w", err))
	}

	created, err := s.client.SetNX(ctx, s.key(t.SessionID, kindTriage), data, s.ttl).Result()
	if err != nil {
		return nil, false, apperrors.NewSessionStoreError("save triage", err)
	}
	if created {
		return t, true, nil
	}

	existing, err := s.GetTriage(ctx, t.SessionID)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (s *RedisStore) GetTriage(ctx context.Context, sessionID string) (*models.Triage, error) {
	var t models.Triage
	if err := s.get(ctx, sessionID, kindTriage, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// FinalizeAssessment writes the final rating vector once. A second call fails with
// ASSESSMENT_ALREADY_FINALIZED.
func (s *RedisStore) FinalizeAssessment(ctx context.Context, a *models.SkillAssessment) error {
	data, err := json.Marshal(a)
	if err != nil {
		return apperrors.NewInternalError(fmt.Errorf("encode assessment: %w", err))
	}

	created, err := s.client.SetNX(ctx, s.key(a.SessionID, kindAssessment), data, s.ttl).Result()
	if err != nil {
		return apperrors.NewSessionStoreError("finalize assessment", err)
	}
	if !created {
		return apperrors.NewAssessmentFinalizedError(a.SessionID)
	}
	return nil
}

func (s *RedisStore) GetAssessment(ctx context.Context, sessionID string) (*models.SkillAssessment, error) {
	var a models.SkillAssessment
	if err := s.get(ctx, sessionID, kindAssessment, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *RedisStore) get(ctx context.Context, sessionID, kind string, dst interface{}) error {
	val, err := s.client.Get(ctx, s.key(sessionID, kind)).Bytes()
	if errors.Is(err, redis.Nil) {
		return apperrors.NewSessionNotFoundError(sessionID)
	}
	if err != nil {
		return apperrors.NewSessionStoreError("get "+kind, err)
	}
	if err := json.Unmarshal(val, dst); err != nil {
		return apperrors.NewDataIntegrityError(fmt.Sprintf("stored %s for session %s is corrupt: %v", kind, sessionID, err))
	}
	return nil
}
