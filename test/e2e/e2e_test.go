//go:build e2e

// test/e2e/e2e_test.go
package e2e

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pathfinder-workers/internal/common/camunda"
	"pathfinder-workers/internal/common/config"
	"pathfinder-workers/internal/common/database"
	"pathfinder-workers/internal/common/logger"
	"pathfinder-workers/internal/matching/assemble"
	"pathfinder-workers/internal/matching/interest"
	"pathfinder-workers/internal/matching/profile"
	"pathfinder-workers/internal/matching/retrieval"
	"pathfinder-workers/internal/reference"
	"pathfinder-workers/internal/reference/referencetest"
	"pathfinder-workers/internal/session"

	reloadreferencedata "pathfinder-workers/internal/workers/admin/reload-reference-data"
	getskilltriage "pathfinder-workers/internal/workers/assessment/get-skill-triage"
	submitinterest "pathfinder-workers/internal/workers/assessment/submit-interest"
	submitskillprofile "pathfinder-workers/internal/workers/assessment/submit-skill-profile"
	getoccupation "pathfinder-workers/internal/workers/discovery/get-occupation"
	queryprograms "pathfinder-workers/internal/workers/discovery/query-programs"
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// services are the live dependencies the flow runs against.
type services struct {
	zeebe    *camunda.Client
	redis    *database.RedisClient
	refs     *reference.Store
	sessions session.Store
	engine   *retrieval.Engine
}

func setup(t testing.TB) *services {
	t.Helper()
	ctx := context.Background()

	zeebe, err := camunda.NewClient(ctx, config.CamundaConfig{
		BrokerAddress:  envOr("ZEEBE_ADDRESS", "localhost:26500"),
		RequestTimeout: 10000,
	})
	require.NoError(t, err, "❌ Zeebe connection failed")
	t.Cleanup(func() { zeebe.Close() })

	rdb, err := database.NewRedis(config.RedisConfig{Address: envOr("REDIS_ADDRESS", "localhost:6379")})
	require.NoError(t, err, "❌ Redis client creation failed")
	require.NoError(t, rdb.Ping(ctx), "❌ Redis ping failed")
	t.Cleanup(func() { rdb.Close() })

	// seed a SQLite reference database from the synthetic fixture
	lite, err := database.NewSQLite(config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "reference.db")})
	require.NoError(t, err)
	t.Cleanup(func() { lite.Close() })
	require.NoError(t, reference.WriteSQLite(ctx, lite.DB, referencetest.NewData(referencetest.DefaultOptions())))

	log := logger.NewStructured("info", "json")
	refs := reference.NewStore(reference.NewSQLLoader(lite.DB, config.SourceSQLite, true), log)
	_, err = refs.Reload(ctx)
	require.NoError(t, err, "❌ Reference load failed")

	cfg := retrieval.DefaultConfig()
	cfg.Timeout = 5 * time.Second
	engine := retrieval.NewEngine(cfg, referencetest.Embedder(), retrieval.NewMemoryIndex(), nil,
		retrieval.AssociationRelevance{Default: 0.5}, log)

	return &services{
		zeebe:    zeebe,
		redis:    rdb,
		refs:     refs,
		sessions: session.NewRedisStore(rdb.Client, fmt.Sprintf("e2e:%d:", time.Now().UnixNano()), time.Hour),
		engine:   engine,
	}
}

func TestFullE2E(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	t.Log("🚀 Starting FULL E2E assessment flow...")
	s := setup(t)
	require.NoError(t, s.zeebe.HealthCheck(ctx), "❌ Zeebe topology request failed")
	t.Log("✅ Zeebe, Redis and reference data ready")

	log := logger.NewStructured("info", "json")

	// --- 1. submit-interest ---
	responses := make(map[string]string, len(interest.Bank))
	for i, q := range interest.Bank {
		responses[q.ID] = []string{"strongly_agree", "agree", "neutral", "disagree"}[i%4]
	}
	si := submitinterest.NewHandler(submitinterest.LoadConfig(), s.sessions, nil, nil, log)
	interestOut, err := si.Execute(ctx, &submitinterest.Input{Responses: responses})
	require.NoError(t, err)
	require.Len(t, interestOut.TopCodes, 3)
	sessionID := interestOut.SessionID
	t.Logf("✅ submit-interest: session=%s code=%s", sessionID, interestOut.RiasecCode)

	// --- 2. get-skill-triage ---
	gst := getskilltriage.NewHandler(getskilltriage.LoadConfig(), s.refs, s.sessions, nil, nil, log)
	triageOut, err := gst.Execute(ctx, &getskilltriage.Input{SessionID: sessionID})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(triageOut.Skills), 25)
	assert.LessOrEqual(t, len(triageOut.Skills), 30)

	again, err := gst.Execute(ctx, &getskilltriage.Input{SessionID: sessionID})
	require.NoError(t, err)
	assert.Equal(t, triageOut.FilteredSkillIDs, again.FilteredSkillIDs, "triage must be stable per session")
	t.Logf("✅ get-skill-triage: pool=%d stage=%s", len(triageOut.OccupationPool), triageOut.PoolStage)

	// --- 3. submit-skill-profile ---
	panel := make(map[string]int, len(triageOut.FilteredSkillIDs))
	for i, id := range triageOut.FilteredSkillIDs {
		panel[id] = []int{0, 2, 3, 4, 5}[i%5]
	}
	refinement := map[string]int{triageOut.FilteredSkillIDs[0]: 3}

	ssp := submitskillprofile.NewHandler(submitskillprofile.LoadConfig(), s.refs, s.sessions,
		profile.NewResolver(nil, log), assemble.NewAssembler(s.engine, assemble.DefaultConfig(), log), nil, nil, log)
	profileOut, err := ssp.Execute(ctx, &submitskillprofile.Input{
		SessionID:          sessionID,
		PanelInitialScores: panel,
		RefinementRatings:  refinement,
		TopN:               5,
	})
	require.NoError(t, err)
	assert.Len(t, profileOut.FinalRatingVector, 40)
	assert.Len(t, profileOut.RankedOccupations, 5)
	for _, occ := range profileOut.RankedOccupations {
		assert.LessOrEqual(t, len(occ.Programs), 3)
	}

	_, err = ssp.Execute(ctx, &submitskillprofile.Input{SessionID: sessionID, PanelInitialScores: panel})
	require.Error(t, err, "a finalized assessment must not be overwritten")
	t.Logf("✅ submit-skill-profile: top=%s", profileOut.RankedOccupations[0].Code)

	// --- 4. discovery ---
	qp := queryprograms.NewHandler(queryprograms.LoadConfig(), s.refs, s.engine, nil, nil, log)
	searchOut, err := qp.Execute(ctx, &queryprograms.Input{Query: "Training in Investigative skills"})
	require.NoError(t, err)
	assert.NotEmpty(t, searchOut.Results)

	gocc := getoccupation.NewHandler(getoccupation.LoadConfig(), s.refs, nil, nil, log)
	occOut, err := gocc.Execute(ctx, &getoccupation.Input{OnetCode: profileOut.RankedOccupations[0].Code})
	require.NoError(t, err)
	assert.NotEmpty(t, occOut.Title)
	t.Log("✅ query-programs and get-occupation answered")

	// --- 5. reload-reference-data ---
	rrd := reloadreferencedata.NewHandler(reloadreferencedata.LoadConfig(), s.refs, nil, nil, log)
	reloadOut, err := rrd.Execute(ctx, &reloadreferencedata.Input{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), reloadOut.Version)
	t.Log("✅ ALL TESTS PASSED: full E2E workflow successful")
}

// ==========================
// Benchmarks
// ==========================

func BenchmarkHandler_QueryPrograms(b *testing.B) {
	s := setup(b)
	handler := queryprograms.NewHandler(queryprograms.LoadConfig(), s.refs, s.engine, nil, nil, logger.NewNoOpLogger())
	input := &queryprograms.Input{Query: "Training in Social skills"}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		handler.Execute(context.Background(), input)
	}
}

func BenchmarkHandler_GetSkillTriage(b *testing.B) {
	s := setup(b)
	log := logger.NewNoOpLogger()
	si := submitinterest.NewHandler(submitinterest.LoadConfig(), s.sessions, nil, nil, log)
	gst := getskilltriage.NewHandler(getskilltriage.LoadConfig(), s.refs, s.sessions, nil, nil, log)

	responses := make(map[string]string, len(interest.Bank))
	for _, q := range interest.Bank {
		responses[q.ID] = "agree"
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		out, err := si.Execute(context.Background(), &submitinterest.Input{Responses: responses})
		if err != nil {
			b.Fatal(err)
		}
		gst.Execute(context.Background(), &getskilltriage.Input{SessionID: out.SessionID})
	}
}
