package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"oid4vci-issuer/internal/httpserver"
	"oid4vci-issuer/internal/issuance"
	"oid4vci-issuer/pkg/configuration"
	"oid4vci-issuer/pkg/logger"
	"oid4vci-issuer/pkg/trace"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type service interface {
	Close(ctx context.Context) error
}

func main() {
	var wg sync.WaitGroup
	ctx := context.Background()

	services := make(map[string]service)

	cfg, err := configuration.New(ctx)
	if err != nil {
		panic(err)
	}

	log, err := logger.New("oid4vci_issuer", cfg.Common.Log.FolderPath, cfg.Common.Production)
	if err != nil {
		panic(err)
	}
	tracer, err := trace.New(ctx, cfg, log, "oid4vci-issuer", "issuer")
	if err != nil {
		panic(err)
	}

	mongoCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	mongoClient, err := mongo.Connect(mongoCtx, options.Client().ApplyURI(cfg.Common.Mongo.URI))
	cancel()
	if err != nil {
		panic(err)
	}

	sessionStore, err := issuance.NewMongoSessionStore(ctx, mongoClient, tracer, log)
	if err != nil {
		panic(err)
	}

	issuerRegistry := issuance.NewMongoIssuerRegistry(mongoClient, cfg, tracer, log)
	if err := issuerRegistry.EnsureIndexes(ctx); err != nil {
		panic(err)
	}

	signer, err := issuance.NewSignerFromConfig(&cfg.Issuer)
	if err != nil {
		panic(err)
	}

	mapper := issuance.NewDefaultCredentialMapper(cfg.Issuer.Identifier, cfg.Issuer.JWTAttribute.Issuer)

	client, err := issuance.New(ctx, sessionStore, issuerRegistry, log.New("issuance"), tracer, issuance.ClientOptions{
		Mapper:         mapper,
		SignerRegistry: issuance.NewSingleKeySignerRegistry(signer),
		ProofVerifier:  &issuance.JWTProofVerifier{Audience: cfg.Issuer.Identifier},
		CNonceTTL:      time.Duration(cfg.Issuer.CNonceTTL) * time.Second,
	})
	if err != nil {
		panic(err)
	}

	httpService, err := httpserver.New(ctx, cfg, client, tracer, log.New("httpserver"))
	if err != nil {
		panic(err)
	}
	services["httpService"] = httpService

	termChan := make(chan os.Signal, 1)
	signal.Notify(termChan, syscall.SIGINT, syscall.SIGTERM)

	<-termChan // Blocks here until interrupted

	mainLog := log.New("main")
	mainLog.Info("HALTING SIGNAL!")

	for serviceName, svc := range services {
		if err := svc.Close(ctx); err != nil {
			mainLog.Trace("serviceName", serviceName, "error", err)
		}
	}

	if err := mongoClient.Disconnect(ctx); err != nil {
		mainLog.Error(err, "mongo disconnect")
	}

	if err := tracer.Shutdown(ctx); err != nil {
		mainLog.Error(err, "Tracer shutdown")
	}

	wg.Wait() // Block here until all workers are done

	mainLog.Info("Stopped")
}
