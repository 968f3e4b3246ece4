package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/wicket/pkg/evidence"
	"github.com/m-mizutani/wicket/pkg/fetch"
	"github.com/m-mizutani/wicket/pkg/model"
	"github.com/m-mizutani/wicket/pkg/repository"
	"github.com/m-mizutani/wicket/pkg/router"
	"github.com/m-mizutani/wicket/pkg/usecase/ask"
	"github.com/m-mizutani/wicket/pkg/verify"
)

func TestLoadTuning(t *testing.T) {
	t.Run("defaults without file", func(t *testing.T) {
		tun, err := loadTuning("")
		gt.NoError(t, err)
		gt.Equal(t, tun.Timezone, "Asia/Kolkata")
		gt.Equal(t, tun.TTL, router.DefaultTTLs)
		gt.Equal(t, tun.Evidence.GlobalCap, evidence.DefaultConfig.GlobalCap)
	})

	t.Run("partial override", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "tuning.yaml")
		gt.NoError(t, os.WriteFile(path, []byte(`
timezone: UTC
task_timeout: 3s
fan_out: 4
ttl:
  live: 30s
evidence:
  topic_cap: 1000
  priority: [live_matches, standings]
`), 0o600))

		tun, err := loadTuning(path)
		gt.NoError(t, err)
		gt.Equal(t, tun.Timezone, "UTC")
		gt.Equal(t, tun.TaskTimeout, 3*time.Second)
		gt.Equal(t, tun.FanOut, int64(4))
		gt.Equal(t, tun.TTL.Live, 30*time.Second)
		gt.Equal(t, tun.TTL.Archive, router.DefaultTTLs.Archive)
		gt.Equal(t, tun.Evidence.TopicCap, 1000)
		gt.Equal(t, tun.Evidence.GlobalCap, evidence.DefaultConfig.GlobalCap)
		gt.Equal(t, tun.Evidence.Priority, []string{"live_matches", "standings"})
		gt.Equal(t, tun.KnowledgeCutoff, 2023)
	})

	t.Run("invalid timezone", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "tuning.yaml")
		gt.NoError(t, os.WriteFile(path, []byte("timezone: Mars/Olympus\n"), 0o600))
		_, err := loadTuning(path)
		gt.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := loadTuning(filepath.Join(t.TempDir(), "nope.yaml"))
		gt.Error(t, err)
	})
}

func TestParseRange(t *testing.T) {
	from, to, err := parseRange("2025-05-01", "")
	gt.NoError(t, err)
	gt.True(t, from.Equal(to))

	from, to, err = parseRange("2025-05-01", "2025-05-10")
	gt.NoError(t, err)
	gt.Equal(t, to.Sub(from), 9*24*time.Hour)

	_, _, err = parseRange("2025-05-10", "2025-05-01")
	gt.Error(t, err)

	_, _, err = parseRange("May 1", "")
	gt.Error(t, err)
}

func TestNewRepository(t *testing.T) {
	ctx := context.Background()

	cfg := &config{store: "memory"}
	repo, err := cfg.newRepository(ctx)
	gt.NoError(t, err)
	gt.NotNil(t, repo)

	cfg = &config{store: "sqlite", dbPath: filepath.Join(t.TempDir(), "wicket.db")}
	repo, err = cfg.newRepository(ctx)
	gt.NoError(t, err)
	defer repo.(*repository.SQLite).Close()

	cfg = &config{store: "firestore"}
	_, err = cfg.newRepository(ctx)
	gt.Error(t, err)

	cfg = &config{store: "cassandra"}
	_, err = cfg.newRepository(ctx)
	gt.Error(t, err)
}

func TestNewCache(t *testing.T) {
	ctx := context.Background()

	cfg := &config{cache: "memory"}
	cache, closer, err := cfg.newCache(ctx, time.Hour)
	gt.NoError(t, err)
	gt.NotNil(t, cache)
	gt.True(t, closer == nil)

	mr := miniredis.RunT(t)
	cfg = &config{cache: "redis", redisAddr: mr.Addr()}
	cache, closer, err = cfg.newCache(ctx, time.Hour)
	gt.NoError(t, err)
	defer closer.Close()

	payload := &fetch.Payload{Matches: []*model.Match{{ID: "1", Home: "India", Away: "England"}}}
	gt.NoError(t, cache.Put(ctx, &fetch.Entry{Key: "k", Payload: payload, StoredAt: time.Now(), TTL: time.Minute}))
	entry, err := cache.Get(ctx, "k")
	gt.NoError(t, err)
	gt.NotNil(t, entry)
	gt.Equal(t, entry.Payload.Matches[0].Home, "India")

	cfg = &config{cache: "redis", redisAddr: "127.0.0.1:1"}
	_, _, err = cfg.newCache(ctx, time.Hour)
	gt.Error(t, err)
}

type generalExtractor struct{}

func (generalExtractor) Extract(ctx context.Context, q *model.QueryContext) (*model.Extraction, error) {
	return &model.Extraction{Intent: model.IntentGeneral, TimeContext: model.TimeUnspecified, Language: "en"}, nil
}

type fixedGenerator string

func (x fixedGenerator) Generate(ctx context.Context, req verify.GenerateRequest) (string, error) {
	return string(x), nil
}

func TestAskTool(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemory()
	p := ask.New(
		generalExtractor{},
		router.New(),
		fetch.New(),
		evidence.New(),
		verify.New(fixedGenerator("Test cricket is played over five days.")),
		ask.WithRepository(repo),
	)
	handler := askTool(p)

	result, out, err := handler(ctx, nil, &askParams{Question: "how long is a test match?"})
	gt.NoError(t, err)
	p.Wait()
	gt.Equal(t, out.Answer, "Test cricket is played over five days.")
	gt.NotEqual(t, out.SessionID, "")
	gt.NotEqual(t, out.TraceID, "")
	gt.A(t, result.Content).Length(1)

	stored, err := repo.GetSession(ctx, model.SessionID(out.SessionID))
	gt.NoError(t, err)
	gt.Equal(t, string(stored.ID), out.SessionID)

	_, next, err := handler(ctx, nil, &askParams{Question: "and an ODI?", SessionID: out.SessionID})
	gt.NoError(t, err)
	p.Wait()
	gt.Equal(t, next.SessionID, out.SessionID)

	_, _, err = handler(ctx, nil, &askParams{})
	gt.Error(t, err)
}

func TestSessionShow(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "wicket.db")

	repo, err := repository.NewSQLite(path)
	gt.NoError(t, err)
	gt.NoError(t, repo.PutSession(ctx, &model.Session{
		ID:     "s-1",
		Memory: model.SessionMemory{LastTeam: "Mumbai Indians", LastSeries: "IPL"},
	}))
	gt.NoError(t, repo.Close())

	var stdout, stderr bytes.Buffer
	app := newApp()
	app.Writer = &stdout
	app.ErrWriter = &stderr
	gt.NoError(t, app.Run(ctx, []string{"wicket", "session", "show", "--store", "sqlite", "--db-path", path, "s-1"}))
	gt.S(t, stdout.String()).Contains(`"last_team": "Mumbai Indians"`)
	gt.S(t, stdout.String()).Contains(`"last_series": "IPL"`)

	app = newApp()
	app.Writer = &stdout
	app.ErrWriter = &stderr
	gt.Error(t, app.Run(ctx, []string{"wicket", "session", "show", "--store", "sqlite", "--db-path", path, "s-unknown"}))
}

func TestAskRequiresQuestion(t *testing.T) {
	var stdout, stderr bytes.Buffer
	app := newApp()
	app.Writer = &stdout
	app.ErrWriter = &stderr
	gt.Error(t, app.Run(context.Background(), []string{"wicket", "ask"}))
	gt.Equal(t, stdout.String(), "")
}
