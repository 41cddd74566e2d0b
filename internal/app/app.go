package app

import (
	"fmt"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/uptrace/opentelemetry-go-extra/otelsqlx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/prasetyadi/statmerge/external/fbref"
	"github.com/prasetyadi/statmerge/external/fplapi"
	"github.com/prasetyadi/statmerge/internal/config"
	"github.com/prasetyadi/statmerge/internal/infrastructure/repository/postgres"
	idgen "github.com/prasetyadi/statmerge/internal/platform/id"
	"github.com/prasetyadi/statmerge/internal/platform/logging"
	"github.com/prasetyadi/statmerge/internal/platform/resilience"
	"github.com/prasetyadi/statmerge/internal/usecase"
)

// Pipeline bundles the assembled services plus the resources they own.
type Pipeline struct {
	Service *usecase.PipelineService
	db      *sqlx.DB
}

func (p *Pipeline) Close() error {
	if p.db == nil {
		return nil
	}
	return p.db.Close()
}

// NewPipeline wires repositories, source clients and services from config.
func NewPipeline(cfg config.Config, logger *logging.Logger) (*Pipeline, error) {
	if logger == nil {
		logger = logging.Default()
	}

	db, err := otelsqlx.Open("postgres", cfg.DBURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(30 * time.Minute)

	playerRepo := postgres.NewPlayerRepository(db)
	aliasRepo := postgres.NewAliasCacheRepository(db)
	matchRegistry := postgres.NewMatchRegistry(db)
	lineRepo := postgres.NewStatLineRepository(db)
	fantasyRepo := postgres.NewFantasyRecordRepository(db)
	rawRepo := postgres.NewRawPayloadRepository(db)

	resolver := usecase.NewIdentityResolver(
		playerRepo,
		aliasRepo,
		nil,
		idgen.NewRandomGenerator("pl"),
		usecase.ResolverConfig{
			AcceptThreshold: cfg.ResolverAcceptThreshold,
			MarginThreshold: cfg.ResolverMarginThreshold,
			FloorThreshold:  cfg.ResolverFloorThreshold,
			TransferGrace:   cfg.ResolverTransferGrace,
			Strict:          cfg.ResolverStrict,
		},
		logger,
	)
	merger := usecase.NewCategoryMerger(resolver, matchRegistry, logger)
	store := usecase.NewIncrementalStore(lineRepo, logger)

	httpTransport := otelhttp.NewTransport(http.DefaultTransport)
	statsClient := fbref.NewClient(fbref.ClientConfig{
		HTTPClient:   &http.Client{Timeout: cfg.StatsSiteTimeout, Transport: httpTransport},
		BaseURL:      cfg.StatsSiteBaseURL,
		SchedulePath: cfg.StatsSiteSchedulePath,
		MaxRetries:   cfg.StatsSiteMaxRetries,
		PageCacheTTL: cfg.StatsSitePageCacheTTL,
		Logger:       logger,
		CircuitBreaker: resilience.CircuitBreakerConfig{
			Enabled:          cfg.StatsSiteCircuitEnabled,
			FailureThreshold: cfg.StatsSiteCircuitFailureCount,
			OpenTimeout:      cfg.StatsSiteCircuitOpenTimeout,
			HalfOpenMaxReq:   cfg.StatsSiteCircuitHalfOpenReq,
		},
	})
	fantasyClient := fplapi.NewClient(fplapi.ClientConfig{
		HTTPClient:     &http.Client{Timeout: cfg.FantasyAPITimeout, Transport: httpTransport},
		BaseURL:        cfg.FantasyAPIBaseURL,
		MaxRetries:     cfg.FantasyAPIMaxRetries,
		Logger:         logger,
		CircuitBreaker: resilience.DefaultCircuitBreakerConfig(),
	})

	service := usecase.NewPipelineService(
		statsClient,
		fantasyClient,
		resolver,
		merger,
		store,
		playerRepo,
		fantasyRepo,
		rawRepo,
		usecase.PipelineConfig{Workers: cfg.FetchWorkers},
		logger,
	)

	return &Pipeline{Service: service, db: db}, nil
}
