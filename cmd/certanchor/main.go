package main

import (
	"context"
	"flag"
	"log"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/certanchor/certanchor"
	"github.com/certanchor/certanchor/client"
	"github.com/certanchor/certanchor/internal/config"
	"github.com/certanchor/certanchor/internal/infra/database"
	"github.com/certanchor/certanchor/internal/infra/gateway"
	"github.com/certanchor/certanchor/internal/infra/repository"
	"github.com/certanchor/certanchor/internal/interface/rest"
	"github.com/certanchor/certanchor/internal/interface/rest/middleware"
	"github.com/certanchor/certanchor/internal/service"
	"github.com/certanchor/certanchor/internal/usecase"
)

func main() {
	configPath := flag.String("c", "/etc/certanchor/config.yaml", "path to config file")
	listenAddr := flag.String("l", ":8000", "listen address")
	flag.Parse()

	conf, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config %s: %v", *configPath, err)
	}

	printable := conf
	printable.NodeInfo.PrivateKey = "[redacted]"
	for i := range printable.Admins {
		printable.Admins[i].Token = "[redacted]"
	}
	certanchor.JsonPrint("config", printable)

	var repo usecase.RecordRepository
	if conf.Server.PostgresDsn != "" {
		db, err := database.NewPostgres(conf.Server.PostgresDsn)
		if err != nil {
			log.Fatalf("failed to connect database: %v", err)
		}
		if err := database.MigratePostgres(db); err != nil {
			log.Fatalf("failed to migrate database: %v", err)
		}
		repo = repository.NewRecordRepository(db)
	} else {
		log.Println("postgresDsn not set, using in-memory record store")
		repo = repository.NewMemoryRecordRepository()
	}

	var ledger usecase.LedgerGateway
	if conf.Server.LedgerEndpoint != "" {
		cl := client.New(conf.Server.LedgerEndpoint)
		if conf.Server.MemcachedAddr != "" {
			ledger = gateway.NewLedgerGateway(cl, database.NewMemcached(conf.Server.MemcachedAddr), conf.NodeInfo.PrivateKey)
		} else {
			ledger = gateway.NewLedgerGateway(cl, nil, conf.NodeInfo.PrivateKey)
		}
	} else {
		log.Println("ledgerEndpoint not set, using in-memory ledger")
		mem := gateway.NewMemoryLedger()
		if _, err := mem.AuthorizeIssuer(context.Background(), conf.NodeInfo.IssuerAddress, conf.NodeInfo.IssuerName); err != nil {
			log.Fatalf("failed to authorize local issuer: %v", err)
		}
		ledger = mem
	}

	var signal *service.SignalService
	if conf.Server.RedisAddr != "" {
		rdb := database.NewRedis(conf.Server.RedisAddr, "", conf.Server.RedisDB)
		signal = service.NewSignalService(rdb)
	}

	recordUsecase := usecase.NewRecordUsecase(repo, ledger, signalOrNil(signal))
	if conf.Server.MaxContentBytes > 0 {
		recordUsecase.MaxContentBytes = conf.Server.MaxContentBytes
	}
	if conf.Server.AnchorMaxRetries > 0 {
		recordUsecase.AnchorMaxRetries = conf.Server.AnchorMaxRetries
	}

	verifyUsecase := usecase.NewVerifyUsecase(repo, ledger)
	lifecycleUsecase := usecase.NewLifecycleUsecase(repo, signalOrNil(signal))
	auth := middleware.NewAuthMiddleware(conf.Admins)

	e := echo.New()
	e.Use(echomiddleware.Logger())
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())

	if conf.Server.EnableTrace {
		cleanup, err := setupTraceProvider(conf.Server.TraceEndpoint)
		if err != nil {
			log.Fatalf("failed to setup trace provider: %v", err)
		}
		defer cleanup()
		e.Use(otelecho.Middleware("certanchor"))
	}

	var subscriber rest.AnchorSubscriber
	if signal != nil {
		subscriber = signal
	}

	handler := rest.NewHandler(conf.NodeInfo, recordUsecase, verifyUsecase, lifecycleUsecase, auth, subscriber)
	handler.RegisterRoutes(e)

	e.Logger.Fatal(e.Start(*listenAddr))
}

// signalOrNil keeps a nil *SignalService from becoming a non-nil interface.
func signalOrNil(s *service.SignalService) usecase.AnchorSignaler {
	if s == nil {
		return nil
	}
	return s
}

func setupTraceProvider(endpoint string) (func(), error) {
	exporter, err := otlptracehttp.New(
		context.Background(),
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
	)
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	return func() {
		if err := provider.Shutdown(context.Background()); err != nil {
			log.Printf("failed to shutdown trace provider: %v", err)
		}
	}, nil
}
