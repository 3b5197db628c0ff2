package getskilltriage

import (
	"context"
	"testing"
	"time"

	"pathfinder-workers/internal/common/camunda/camundatest"
	apperrors "pathfinder-workers/internal/common/errors"
	"pathfinder-workers/internal/common/logger"
	"pathfinder-workers/internal/common/validation"
	"pathfinder-workers/internal/models"
	"pathfinder-workers/internal/reference"
	"pathfinder-workers/internal/reference/referencetest"
	"pathfinder-workers/internal/session"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSession = "session-triage-01"

func createTestHandler(t *testing.T, refs *reference.Store) (*Handler, *session.RedisStore) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	v, err := validation.NewDefaultValidator()
	require.NoError(t, err)

	store := session.NewRedisStore(client, "test:", time.Hour)
	return NewHandler(LoadConfig(), refs, store, v, nil, logger.NewTestLogger(t)), store
}

func seedInterest(t *testing.T, store session.Store) {
	t.Helper()
	require.NoError(t, store.SaveInterest(context.Background(), &models.InterestProfile{
		SessionID: testSession,
		Scores:    models.InterestScores{"R": 62.5, "I": 80, "A": 50, "S": 20, "E": 40, "C": 50},
		TopCodes:  []models.InterestCode{"I", "R", "A"},
	}))
}

// ==========================
// Execute
// ==========================

func TestExecute_BuildsAndStoresTriage(t *testing.T) {
	h, store := createTestHandler(t, referencetest.Store(t, referencetest.NewData(referencetest.DefaultOptions())))
	seedInterest(t, store)

	out, err := h.Execute(context.Background(), &Input{SessionID: testSession})
	require.NoError(t, err)

	assert.GreaterOrEqual(t, len(out.OccupationPool), 100)
	assert.LessOrEqual(t, len(out.OccupationPool), 150)
	assert.GreaterOrEqual(t, len(out.FilteredSkillIDs), 25)
	assert.LessOrEqual(t, len(out.FilteredSkillIDs), 30)
	require.Len(t, out.Skills, len(out.FilteredSkillIDs))
	for i, s := range out.Skills {
		assert.Equal(t, out.FilteredSkillIDs[i], s.ElementID)
		assert.NotEmpty(t, s.TaskStatement)
	}
	assert.Equal(t, int64(1), out.SnapshotVersion)
	assert.Equal(t, "IRA", out.RiasecCode)
	require.Len(t, out.TopOccupations, 10)
	for i, occ := range out.TopOccupations {
		assert.Equal(t, out.OccupationPool[i], occ.OnetCode)
		assert.NotEmpty(t, occ.Title)
	}

	stored, err := store.GetTriage(context.Background(), testSession)
	require.NoError(t, err)
	assert.Equal(t, out.OccupationPool, stored.OccupationPool)
}

func TestExecute_SecondCallReturnsStoredTriage(t *testing.T) {
	refs := referencetest.Store(t, referencetest.NewData(referencetest.DefaultOptions()))
	h, store := createTestHandler(t, refs)
	seedInterest(t, store)
	ctx := context.Background()

	first, err := h.Execute(ctx, &Input{SessionID: testSession})
	require.NoError(t, err)

	// A reload bumps the snapshot version; the stored triage is still returned.
	_, err = refs.Reload(ctx)
	require.NoError(t, err)

	second, err := h.Execute(ctx, &Input{SessionID: testSession})
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestExecute_ProfileCannotChangeUnderTriage(t *testing.T) {
	h, store := createTestHandler(t, referencetest.Store(t, referencetest.NewData(referencetest.DefaultOptions())))
	seedInterest(t, store)
	ctx := context.Background()

	first, err := h.Execute(ctx, &Input{SessionID: testSession})
	require.NoError(t, err)

	err = store.SaveInterest(ctx, &models.InterestProfile{
		SessionID: testSession,
		Scores:    models.InterestScores{"R": 10, "I": 10, "A": 10, "S": 90, "E": 80, "C": 70},
		TopCodes:  []models.InterestCode{"S", "E", "C"},
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeInterestSubmitted, apperrors.CodeOf(err))

	profile, err := store.GetInterest(ctx, testSession)
	require.NoError(t, err)
	second, err := h.Execute(ctx, &Input{SessionID: testSession})
	require.NoError(t, err)
	assert.Equal(t, models.JoinCodes(profile.TopCodes), second.RiasecCode)
	assert.Equal(t, first.OccupationPool, second.OccupationPool)
}

// ==========================
// Known code
// ==========================

func TestExecute_KnownCodeWithoutQuestionnaire(t *testing.T) {
	h, store := createTestHandler(t, referencetest.Store(t, referencetest.NewData(referencetest.DefaultOptions())))
	ctx := context.Background()

	out, err := h.Execute(ctx, &Input{SessionID: "session-known-code", RiasecCode: "sec"})
	require.NoError(t, err)

	assert.Equal(t, "SEC", out.RiasecCode)
	assert.GreaterOrEqual(t, len(out.OccupationPool), 100)
	assert.LessOrEqual(t, len(out.OccupationPool), 150)
	assert.Len(t, out.TopOccupations, 10)

	profile, err := store.GetInterest(ctx, "session-known-code")
	require.NoError(t, err)
	assert.Equal(t, models.ProfileSourceCode, profile.Source)
	assert.Equal(t, []models.InterestCode{"S", "E", "C"}, profile.TopCodes)
	assert.Equal(t, 100.0, profile.Scores["S"])
	assert.Equal(t, 80.0, profile.Scores["E"])
	assert.Equal(t, 60.0, profile.Scores["C"])
	assert.Equal(t, 0.0, profile.Scores["R"])
	assert.True(t, profile.Scores.Complete())
}

func TestExecute_KnownCodeMatchingQuestionnaire(t *testing.T) {
	h, store := createTestHandler(t, referencetest.Store(t, referencetest.NewData(referencetest.DefaultOptions())))
	seedInterest(t, store)

	out, err := h.Execute(context.Background(), &Input{SessionID: testSession, RiasecCode: "IRA"})
	require.NoError(t, err)
	assert.Equal(t, "IRA", out.RiasecCode)

	profile, err := store.GetInterest(context.Background(), testSession)
	require.NoError(t, err)
	assert.Empty(t, profile.Source, "the questionnaire profile is kept")
}

func TestExecute_KnownCodeMismatch(t *testing.T) {
	h, store := createTestHandler(t, referencetest.Store(t, referencetest.NewData(referencetest.DefaultOptions())))
	seedInterest(t, store)
	ctx := context.Background()

	_, err := h.Execute(ctx, &Input{SessionID: testSession, RiasecCode: "SEC"})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeValidation, apperrors.CodeOf(err))

	// once triaged, the stored codes still win
	_, err = h.Execute(ctx, &Input{SessionID: testSession})
	require.NoError(t, err)
	_, err = h.Execute(ctx, &Input{SessionID: testSession, RiasecCode: "SEC"})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeValidation, apperrors.CodeOf(err))
}

func TestExecute_InvalidRiasecCode(t *testing.T) {
	tests := []struct {
		name string
		code string
	}{
		{"too short", "RI"},
		{"too long", "RIAS"},
		{"unknown letter", "RIX"},
		{"repeated", "RRI"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := createTestHandler(t, referencetest.Store(t, referencetest.NewData(referencetest.DefaultOptions())))
			_, err := h.Execute(context.Background(), &Input{SessionID: "session-bad-code", RiasecCode: tt.code})
			require.Error(t, err)
			assert.Equal(t, apperrors.ErrCodeValidation, apperrors.CodeOf(err))
		})
	}
}

func TestExecute_NoInterestProfile(t *testing.T) {
	h, _ := createTestHandler(t, referencetest.Store(t, referencetest.NewData(referencetest.DefaultOptions())))

	_, err := h.Execute(context.Background(), &Input{SessionID: "session-unknown"})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeSessionNotFound, apperrors.CodeOf(err))
}

func TestExecute_ReferenceNotLoaded(t *testing.T) {
	refs := reference.NewStore(&referencetest.StaticLoader{}, logger.NewTestLogger(t))
	h, store := createTestHandler(t, refs)
	seedInterest(t, store)

	_, err := h.Execute(context.Background(), &Input{SessionID: testSession})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeReferenceUnavailable, apperrors.CodeOf(err))
}

// ==========================
// Handle
// ==========================

func TestHandle_MissingSessionThrowsNotFound(t *testing.T) {
	h, _ := createTestHandler(t, referencetest.Store(t, referencetest.NewData(referencetest.DefaultOptions())))
	client := camundatest.NewJobClient()

	h.Handle(client, camundatest.NewJob(3, TaskType, Input{SessionID: "session-missing"}))

	thrown, ok := client.Thrown()
	require.True(t, ok)
	assert.Equal(t, "SESSION_NOT_FOUND", thrown.ErrorCode)
}

func TestHandle_ShortSessionIDRejected(t *testing.T) {
	h, _ := createTestHandler(t, referencetest.Store(t, referencetest.NewData(referencetest.DefaultOptions())))
	client := camundatest.NewJobClient()

	h.Handle(client, camundatest.NewJob(4, TaskType, Input{SessionID: "abc"}))

	thrown, ok := client.Thrown()
	require.True(t, ok)
	assert.Equal(t, "VALIDATION_ERROR", thrown.ErrorCode)
}

func TestHandle_Completes(t *testing.T) {
	h, store := createTestHandler(t, referencetest.Store(t, referencetest.NewData(referencetest.DefaultOptions())))
	seedInterest(t, store)
	client := camundatest.NewJobClient()

	h.Handle(client, camundatest.NewJob(5, TaskType, Input{SessionID: testSession}))

	var out Output
	require.True(t, client.Completed(&out))
	assert.Equal(t, testSession, out.SessionID)
	assert.NotEmpty(t, out.Skills)
}
