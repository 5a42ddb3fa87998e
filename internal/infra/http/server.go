package http

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"conveyor/internal/config"
	"conveyor/internal/domain"
	"conveyor/internal/infra/bus"
	"conveyor/internal/infra/callback"
	"conveyor/internal/infra/db"
	"conveyor/internal/infra/ledger"
	"conveyor/internal/infra/objectstore"
	"conveyor/internal/infra/runner"
	"conveyor/internal/infra/secrets"
	"conveyor/internal/usecase"

	"github.com/gin-gonic/gin"
)

type Server struct {
	cfg   config.Config
	store *db.Store
	r     *gin.Engine
	log   *slog.Logger

	intake    *usecase.Intake
	transfer  *usecase.Transfer
	router    *usecase.Router
	compute   *usecase.Compute
	emit      *usecase.Emit
	faultSink *usecase.FaultSink

	initErr error
}

func NewServer(cfg config.Config, store *db.Store, log *slog.Logger) *Server {
	r := gin.New()
	r.Use(gin.Recovery())

	if log == nil {
		log = slog.New(slog.NewJSONHandler(os.Stdout, nil))
	}
	s := &Server{cfg: cfg, store: store, r: r, log: log}
	s.initDeps()
	s.routes()
	return s
}

// ServerDeps lets tests and alternate deployments inject stage handlers
// directly instead of building them from config.
type ServerDeps struct {
	Intake    *usecase.Intake
	Transfer  *usecase.Transfer
	Router    *usecase.Router
	Compute   *usecase.Compute
	Emit      *usecase.Emit
	FaultSink *usecase.FaultSink
}

func NewServerWithDeps(cfg config.Config, deps ServerDeps, log *slog.Logger) *Server {
	r := gin.New()
	r.Use(gin.Recovery())

	if log == nil {
		log = slog.New(slog.NewJSONHandler(os.Stdout, nil))
	}
	s := &Server{
		cfg:       cfg,
		r:         r,
		log:       log,
		intake:    deps.Intake,
		transfer:  deps.Transfer,
		router:    deps.Router,
		compute:   deps.Compute,
		emit:      deps.Emit,
		faultSink: deps.FaultSink,
	}
	s.routes()
	return s
}

func (s *Server) initDeps() {
	publisher, inproc := s.buildBus()
	if s.initErr != nil {
		return
	}

	gateLedger := s.buildLedger()
	gate := usecase.NewGate(gateLedger, s.log)

	store := objectstore.NewFromConfig(s.cfg)
	poster := callback.NewPoster()

	var secretSource usecase.Secrets
	if sm, err := secrets.NewFromConfig(s.cfg); err == nil {
		secretSource = sm
	} else {
		s.log.Warn("secret manager unavailable", "error", err)
	}

	jobRunner, err := s.buildRunner()
	if err != nil {
		s.initErr = err
		return
	}

	var records usecase.AnnotationRecords
	if s.store != nil && s.store.DB != nil {
		records = db.NewAnnotationRecordRepo(s.store.DB)
	}

	s.intake = usecase.NewIntake(s.cfg.GCPProjectID, s.cfg.BucketForProject(s.cfg.GCPProjectID), publisher, s.log)
	s.transfer = usecase.NewTransfer(store, publisher, s.log)
	s.router = usecase.NewRouter(publisher, s.log)
	s.compute = usecase.NewCompute(gate, jobRunner, store, secretSource, records, publisher, s.log)
	s.emit = usecase.NewEmit(store, poster, publisher, s.log)
	s.faultSink = usecase.NewFaultSink(poster, s.log)

	if inproc != nil {
		s.subscribeLocal(inproc)
	}
}

// buildBus returns the publisher plus the in-process bus when local mode is
// active. Local mode runs the whole pipeline inside one process; pubsub mode
// relies on broker subscriptions pushing back into the stage endpoints.
func (s *Server) buildBus() (usecase.Publisher, *bus.InProcess) {
	if s.cfg.BusMode == "local" {
		b := bus.NewInProcess(s.log)
		return b, b
	}
	p, err := bus.NewPubSub(s.cfg)
	if err != nil {
		s.initErr = err
		return nil, nil
	}
	return p, nil
}

func (s *Server) buildLedger() usecase.Ledger {
	switch s.cfg.LedgerBackend {
	case "postgres":
		if s.store != nil && s.store.DB != nil {
			return db.NewProcessedMessageRepo(s.store.DB)
		}
		s.log.Warn("postgres ledger requested but db unavailable, using memory")
		return ledger.NewMemoryLedger()
	case "memory":
		return ledger.NewMemoryLedger()
	default:
		l, err := ledger.NewRedisLedger(s.cfg.RedisAddr, s.cfg.RedisPassword, s.cfg.RedisDB, s.cfg.LedgerTTL)
		if err != nil {
			s.log.Warn("redis ledger unavailable, using memory", "error", err)
			return ledger.NewMemoryLedger()
		}
		return l
	}
}

func (s *Server) buildRunner() (usecase.Runner, error) {
	if s.cfg.RunnerMode == "managed" {
		return runner.NewManaged(s.cfg)
	}
	return runner.NewLocal(s.cfg.RunnerEndpoint)
}

// subscribeLocal wires the stage handlers straight onto the in-process bus so
// that a single publish drives the pipeline end to end.
func (s *Server) subscribeLocal(b *bus.InProcess) {
	if s.cfg.StageEnabled("transfer") {
		b.Subscribe(domain.ChannelIntake, func(ctx context.Context, env domain.Envelope, _ string) error {
			return s.transfer.Handle(ctx, env)
		})
	}
	if s.cfg.StageEnabled("router") {
		b.Subscribe(domain.ChannelTransferDone, func(ctx context.Context, env domain.Envelope, _ string) error {
			return s.router.HandleTransferDone(ctx, env)
		})
	}
	if s.cfg.StageEnabled("compute") {
		b.Subscribe(domain.ChannelComputeStart, func(ctx context.Context, env domain.Envelope, deliveryID string) error {
			return s.compute.Handle(ctx, env, deliveryID)
		})
	}
	if s.cfg.StageEnabled("emit") {
		b.Subscribe(domain.ChannelComputeDone, func(ctx context.Context, env domain.Envelope, _ string) error {
			return s.emit.Handle(ctx, env)
		})
	}
	if s.cfg.StageEnabled("fault") {
		b.Subscribe(domain.ChannelFault, func(ctx context.Context, env domain.Envelope, _ string) error {
			return s.faultSink.Handle(ctx, env)
		})
	}
}

func (s *Server) routes() {
	s.r.GET("/healthz", func(c *gin.Context) {
		dbMode := "no-db"
		if s.store != nil && s.store.DB != nil {
			dbMode = "db"
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "mode": dbMode})
	})

	v1 := s.r.Group("/v1")
	{
		v1.POST("/inference/initiate", s.handleInitiateInference)
		v1.POST("/training/initiate", s.handleInitiateTraining)
		v1.POST("/annotation/initiate", s.handleInitiateAnnotation)
	}

	push := s.r.Group("/push")
	{
		if s.cfg.StageEnabled("transfer") {
			push.POST("/intake", s.handlePushIntake)
		}
		if s.cfg.StageEnabled("router") {
			push.POST("/transfer-done", s.handlePushTransferDone)
		}
		if s.cfg.StageEnabled("compute") {
			push.POST("/compute-start", s.handlePushComputeStart)
		}
		if s.cfg.StageEnabled("emit") {
			push.POST("/compute-done", s.handlePushComputeDone)
		}
		if s.cfg.StageEnabled("fault") {
			push.POST("/fault", s.handlePushFault)
		}
	}

	s.r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, errorResponse{Code: "not_found", Message: "no such route"})
	})
}

func (s *Server) Run() error {
	if s.initErr != nil {
		return s.initErr
	}
	return s.r.Run(s.cfg.HTTPAddr)
}
