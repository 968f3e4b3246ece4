package cli

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/wicket/pkg/adapter"
	"github.com/m-mizutani/wicket/pkg/evidence"
	"github.com/m-mizutani/wicket/pkg/fetch"
	"github.com/m-mizutani/wicket/pkg/policy"
	"github.com/m-mizutani/wicket/pkg/repository"
	"github.com/m-mizutani/wicket/pkg/router"
	"github.com/m-mizutani/wicket/pkg/source"
	"github.com/m-mizutani/wicket/pkg/usecase/ask"
	"github.com/m-mizutani/wicket/pkg/utils/logging"
	"github.com/m-mizutani/wicket/pkg/verify"
	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

// config holds configuration values
type config struct {
	// Local store
	store    string
	dbPath   string
	project  string
	database string

	// Fetch cache
	cache     string
	redisAddr string

	// Remote sports data
	sportsAPIKey  string
	sportsBaseURL string
	sportsRate    float64

	// Archived seasons in BigQuery
	bqProject string
	bqDataset string
	bqScan    int64

	// Adapters
	geminiProject  string
	geminiLocation string
	geminiModel    string
	bucket         string

	// Pipeline
	tuningFile string
	policyDir  string
	language   string
	claimCheck bool
}

// storeFlags returns flags of the local persisted store
func storeFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "store",
			Usage:       "Local store backend (memory, sqlite, firestore)",
			Value:       "sqlite",
			Sources:     cli.EnvVars("WICKET_STORE"),
			Destination: &cfg.store,
		},
		&cli.StringFlag{
			Name:        "db-path",
			Usage:       "SQLite database file",
			Value:       "wicket.db",
			Sources:     cli.EnvVars("WICKET_DB_PATH"),
			Destination: &cfg.dbPath,
		},
		&cli.StringFlag{
			Name:        "project",
			Aliases:     []string{"p"},
			Usage:       "Google Cloud project ID",
			Sources:     cli.EnvVars("WICKET_PROJECT", "GOOGLE_CLOUD_PROJECT"),
			Destination: &cfg.project,
		},
		&cli.StringFlag{
			Name:        "database",
			Aliases:     []string{"d"},
			Usage:       "Firestore database ID",
			Value:       "(default)",
			Sources:     cli.EnvVars("WICKET_FIRESTORE_DATABASE_ID"),
			Destination: &cfg.database,
		},
		&cli.StringFlag{
			Name:        "bucket",
			Usage:       "Cloud Storage bucket for traces and transcripts",
			Sources:     cli.EnvVars("WICKET_BUCKET"),
			Destination: &cfg.bucket,
		},
	}
}

// sourceFlags returns flags of the data sources
func sourceFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "sports-api-key",
			Usage:       "API key of the sports-data service",
			Sources:     cli.EnvVars("WICKET_SPORTS_API_KEY"),
			Destination: &cfg.sportsAPIKey,
		},
		&cli.StringFlag{
			Name:        "sports-base-url",
			Usage:       "Base URL of the sports-data service",
			Sources:     cli.EnvVars("WICKET_SPORTS_BASE_URL"),
			Destination: &cfg.sportsBaseURL,
		},
		&cli.FloatFlag{
			Name:        "sports-rate",
			Usage:       "Max sports-data requests per second (0 disables the limit)",
			Value:       5,
			Sources:     cli.EnvVars("WICKET_SPORTS_RATE"),
			Destination: &cfg.sportsRate,
		},
		&cli.StringFlag{
			Name:        "cache",
			Usage:       "Fetch cache backend (memory, redis)",
			Value:       "memory",
			Sources:     cli.EnvVars("WICKET_CACHE"),
			Destination: &cfg.cache,
		},
		&cli.StringFlag{
			Name:        "redis-addr",
			Usage:       "Redis address for the shared fetch cache",
			Value:       "localhost:6379",
			Sources:     cli.EnvVars("WICKET_REDIS_ADDR"),
			Destination: &cfg.redisAddr,
		},
		&cli.StringFlag{
			Name:        "bigquery-project",
			Usage:       "Project of the archived season dataset",
			Sources:     cli.EnvVars("WICKET_BIGQUERY_PROJECT"),
			Destination: &cfg.bqProject,
		},
		&cli.StringFlag{
			Name:        "bigquery-dataset",
			Usage:       "BigQuery dataset with archived matches and series",
			Sources:     cli.EnvVars("WICKET_BIGQUERY_DATASET"),
			Destination: &cfg.bqDataset,
		},
		&cli.IntFlag{
			Name:        "bigquery-scan-limit",
			Usage:       "Max bytes a single archive query may scan (0 for no limit)",
			Value:       1 << 30,
			Sources:     cli.EnvVars("WICKET_BIGQUERY_SCAN_LIMIT"),
			Destination: &cfg.bqScan,
		},
	}
}

// llmFlags returns flags for LLM-related configuration with destination config
func llmFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "gemini-project",
			Usage:       "Google Cloud project ID for Gemini",
			Sources:     cli.EnvVars("WICKET_GEMINI_PROJECT", "GEMINI_PROJECT_ID"),
			Destination: &cfg.geminiProject,
		},
		&cli.StringFlag{
			Name:        "gemini-location",
			Usage:       "Google Cloud location for Gemini",
			Value:       "us-central1",
			Sources:     cli.EnvVars("WICKET_GEMINI_LOCATION", "GEMINI_LOCATION"),
			Destination: &cfg.geminiLocation,
		},
		&cli.StringFlag{
			Name:        "gemini-model",
			Usage:       "Gemini model name",
			Sources:     cli.EnvVars("WICKET_GEMINI_MODEL"),
			Destination: &cfg.geminiModel,
		},
	}
}

// pipelineFlags returns flags tuning the query pipeline
func pipelineFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Aliases:     []string{"c"},
			Usage:       "YAML tuning file",
			Sources:     cli.EnvVars("WICKET_CONFIG"),
			Destination: &cfg.tuningFile,
		},
		&cli.StringFlag{
			Name:        "policy-dir",
			Usage:       "Directory of Rego policies overriding the embedded ones",
			Sources:     cli.EnvVars("WICKET_POLICY_DIR"),
			Destination: &cfg.policyDir,
		},
		&cli.StringFlag{
			Name:        "language",
			Usage:       "Answer language when the question's language is unknown",
			Value:       "en",
			Sources:     cli.EnvVars("WICKET_LANGUAGE"),
			Destination: &cfg.language,
		},
		&cli.BoolFlag{
			Name:        "claim-check",
			Usage:       "Audit drafted answers with a model-based claim check",
			Value:       true,
			Sources:     cli.EnvVars("WICKET_CLAIM_CHECK"),
			Destination: &cfg.claimCheck,
		},
	}
}

// allFlags returns every flag needed to build the pipeline
func allFlags(cfg *config) []cli.Flag {
	var flags []cli.Flag
	flags = append(flags, storeFlags(cfg)...)
	flags = append(flags, sourceFlags(cfg)...)
	flags = append(flags, llmFlags(cfg)...)
	flags = append(flags, pipelineFlags(cfg)...)
	return flags
}

// tuning is the optional YAML file overriding pipeline knobs.
type tuning struct {
	Timezone         string          `yaml:"timezone"`
	KnowledgeCutoff  int             `yaml:"knowledge_cutoff"`
	TaskTimeout      time.Duration   `yaml:"task_timeout"`
	FanOut           int64           `yaml:"fan_out"`
	CacheRetention   time.Duration   `yaml:"cache_retention"`
	ComplexityTokens int             `yaml:"complexity_tokens"`
	TTL              router.TTLs     `yaml:"ttl"`
	Evidence         evidence.Config `yaml:"evidence"`
}

func defaultTuning() *tuning {
	return &tuning{
		Timezone:        "Asia/Kolkata",
		KnowledgeCutoff: 2023,
		TaskTimeout:     8 * time.Second,
		FanOut:          16,
		CacheRetention:  24 * time.Hour,
		TTL:             router.DefaultTTLs,
		Evidence:        evidence.DefaultConfig,
	}
}

// loadTuning reads path over the defaults. Fields absent from the file keep
// their default.
func loadTuning(path string) (*tuning, error) {
	t := defaultTuning()
	if path == "" {
		return t, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read tuning file", goerr.V("path", path))
	}
	if err := yaml.Unmarshal(raw, t); err != nil {
		return nil, goerr.Wrap(err, "failed to parse tuning file", goerr.V("path", path))
	}
	if _, err := time.LoadLocation(t.Timezone); err != nil {
		return nil, goerr.Wrap(err, "invalid timezone", goerr.V("timezone", t.Timezone))
	}
	if t.Evidence.GlobalCap <= 0 || t.Evidence.TopicCap <= 0 {
		return nil, goerr.New("evidence caps must be positive",
			goerr.V("topic_cap", t.Evidence.TopicCap),
			goerr.V("global_cap", t.Evidence.GlobalCap))
	}
	return t, nil
}

// newRepository creates the local store selected by --store
func (cfg *config) newRepository(ctx context.Context) (repository.Repository, error) {
	switch cfg.store {
	case "memory":
		return repository.NewMemory(), nil

	case "sqlite":
		if cfg.dbPath == "" {
			return nil, goerr.New("db-path is required for sqlite store")
		}
		repo, err := repository.NewSQLite(cfg.dbPath)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to open sqlite store")
		}
		return repo, nil

	case "firestore":
		if cfg.project == "" {
			return nil, goerr.New("project is required for firestore store")
		}
		if cfg.database == "" {
			return nil, goerr.New("database is required for firestore store")
		}
		repo, err := repository.NewFirestore(ctx, cfg.project, cfg.database)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to create firestore store")
		}
		return repo, nil

	default:
		return nil, goerr.New("unknown store backend", goerr.V("store", cfg.store))
	}
}

// newCache creates the fetch cache selected by --cache. The returned closer
// may be nil.
func (cfg *config) newCache(ctx context.Context, retention time.Duration) (fetch.Cache, io.Closer, error) {
	switch cfg.cache {
	case "", "memory":
		return fetch.NewMemoryCache(retention), nil, nil

	case "redis":
		client := redis.NewClient(&redis.Options{Addr: cfg.redisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, goerr.Wrap(err, "failed to connect to redis", goerr.V("addr", cfg.redisAddr))
		}
		return fetch.NewRedisCache(client, retention), client, nil

	default:
		return nil, nil, goerr.New("unknown cache backend", goerr.V("cache", cfg.cache))
	}
}

// newSports creates the sports-data client, or nil when no key is set
func (cfg *config) newSports() adapter.Sports {
	if cfg.sportsAPIKey == "" {
		return nil
	}
	opts := []adapter.SportsOption{adapter.WithSportsRateLimit(cfg.sportsRate, max(1, int(cfg.sportsRate*2)))}
	if cfg.sportsBaseURL != "" {
		opts = append(opts, adapter.WithSportsBaseURL(cfg.sportsBaseURL))
	}
	return adapter.NewSports(cfg.sportsAPIKey, opts...)
}

// newWarehouse creates the BigQuery archive reader, or nil when no dataset
// is configured
func (cfg *config) newWarehouse(ctx context.Context) (*repository.Warehouse, error) {
	if cfg.bqDataset == "" {
		return nil, nil
	}
	project := cfg.bqProject
	if project == "" {
		project = cfg.project
	}
	if project == "" {
		return nil, goerr.New("bigquery-project is required with bigquery-dataset")
	}

	bq, err := adapter.NewBigQuery(ctx, project)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create bigquery client")
	}
	return repository.NewWarehouse(bq, cfg.bqDataset, repository.WithScanLimit(cfg.bqScan)), nil
}

// newGemini creates a new Gemini adapter instance
func (cfg *config) newGemini(ctx context.Context) (adapter.Gemini, error) {
	if cfg.geminiProject == "" {
		return nil, goerr.New("gemini-project is required")
	}
	if cfg.geminiLocation == "" {
		return nil, goerr.New("gemini-location is required")
	}

	var opts []adapter.GeminiOption
	if cfg.geminiModel != "" {
		opts = append(opts, adapter.WithGenerativeModel(cfg.geminiModel))
	}
	gemini, err := adapter.NewGemini(ctx, cfg.geminiProject, cfg.geminiLocation, opts...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create gemini client")
	}
	return gemini, nil
}

// newStorage creates a new Storage adapter instance, or nil without a bucket
func (cfg *config) newStorage(ctx context.Context) (adapter.Storage, error) {
	if cfg.bucket == "" {
		return nil, nil
	}

	storage, err := adapter.NewStorage(ctx, cfg.bucket)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create storage")
	}
	return storage, nil
}

// runtime is the wired pipeline with what must be released after use.
type runtime struct {
	pipeline *ask.Pipeline
	repo     repository.Repository
	closers  []io.Closer
}

func (x *runtime) Close() {
	x.pipeline.Wait()
	for _, c := range x.closers {
		if err := c.Close(); err != nil {
			logging.Default().Warn("failed to close resource", "error", err)
		}
	}
}

// sources registers the archived and remote sources on the orchestrator.
func sources(repo repository.Repository, warehouse *repository.Warehouse, sports adapter.Sports) []fetch.Option {
	readers := []repository.Reader{repo}
	if warehouse != nil {
		readers = append(readers, warehouse)
	}
	opts := []fetch.Option{
		fetch.WithSource(router.SourceArchive, source.NewArchive(readers)),
	}
	if sports != nil {
		remote := source.NewRemote(sports)
		opts = append(opts,
			fetch.WithSource(router.SourceHistorical, remote),
			fetch.WithSource(router.SourceLive, remote),
			fetch.WithSource(router.SourceSchedule, remote),
		)
	}
	return opts
}

// newRuntime wires every component of the question pipeline
func (cfg *config) newRuntime(ctx context.Context) (*runtime, error) {
	t, err := loadTuning(cfg.tuningFile)
	if err != nil {
		return nil, err
	}
	loc, err := time.LoadLocation(t.Timezone)
	if err != nil {
		return nil, goerr.Wrap(err, "invalid timezone", goerr.V("timezone", t.Timezone))
	}

	rt := &runtime{}
	fail := func(err error) (*runtime, error) {
		for _, c := range rt.closers {
			_ = c.Close()
		}
		return nil, err
	}

	repo, err := cfg.newRepository(ctx)
	if err != nil {
		return fail(err)
	}
	rt.repo = repo
	if c, ok := repo.(io.Closer); ok {
		rt.closers = append(rt.closers, c)
	}

	cache, cacheCloser, err := cfg.newCache(ctx, t.CacheRetention)
	if err != nil {
		return fail(err)
	}
	if cacheCloser != nil {
		rt.closers = append(rt.closers, cacheCloser)
	}

	warehouse, err := cfg.newWarehouse(ctx)
	if err != nil {
		return fail(err)
	}
	sports := cfg.newSports()
	if sports == nil {
		logging.From(ctx).Warn("no sports-data API key, answering from the local archive only")
	}

	gemini, err := cfg.newGemini(ctx)
	if err != nil {
		return fail(err)
	}
	storage, err := cfg.newStorage(ctx)
	if err != nil {
		return fail(err)
	}

	complexity, err := policy.NewComplexity(ctx, cfg.policyDir, policy.WithTokenThreshold(t.ComplexityTokens))
	if err != nil {
		return fail(goerr.Wrap(err, "failed to load complexity policy"))
	}

	var verifyOpts []verify.Option
	if cfg.claimCheck {
		verifyOpts = append(verifyOpts, verify.WithClaimChecker(ask.NewGeminiClaimChecker(gemini)))
	}

	fetchOpts := append([]fetch.Option{
		fetch.WithCache(cache),
		fetch.WithTimeout(t.TaskTimeout),
		fetch.WithConcurrency(t.FanOut),
	}, sources(repo, warehouse, sports)...)

	pipelineOpts := []ask.Option{
		ask.WithRepository(repo),
		ask.WithDefaultLanguage(cfg.language),
	}
	if storage != nil {
		pipelineOpts = append(pipelineOpts, ask.WithStorage(storage))
	}

	rt.pipeline = ask.New(
		ask.NewGeminiExtractor(gemini, loc),
		router.New(
			router.WithLocation(loc),
			router.WithTTLs(t.TTL),
			router.WithKnowledgeCutoff(t.KnowledgeCutoff),
		),
		fetch.New(fetchOpts...),
		evidence.New(
			evidence.WithConfig(t.Evidence),
			evidence.WithAnalyzer(ask.NewGeminiAnalyzer(gemini)),
			evidence.WithClassifier(complexity),
		),
		verify.New(ask.NewGeminiGenerator(gemini), verifyOpts...),
		pipelineOpts...,
	)
	return rt, nil
}
