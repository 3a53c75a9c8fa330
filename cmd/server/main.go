package main // Entry point package

import (
    "log" // Logging library

    "github.com/joho/godotenv"    // Load .env files into the environment
    "github.com/labstack/echo/v4" // Echo web framework

    "github.com/iliyamo/invoice-signing/internal/config"     // Internal config loader
    "github.com/iliyamo/invoice-signing/internal/database"   // MySQL connection pool
    "github.com/iliyamo/invoice-signing/internal/gateway"    // signing engine client
    "github.com/iliyamo/invoice-signing/internal/handler"    // HTTP handlers
    "github.com/iliyamo/invoice-signing/internal/middleware" // rate limiting / caching
    "github.com/iliyamo/invoice-signing/internal/queue"      // signed-event consumer
    "github.com/iliyamo/invoice-signing/internal/repository" // DB repositories
    "github.com/iliyamo/invoice-signing/internal/router"     // route registration
    "github.com/iliyamo/invoice-signing/internal/signing"    // batch orchestrator
)

func main() {
    // Load .env when present; real deployments set the environment directly.
    _ = godotenv.Load()

    cfg := config.Load() // Load environment config

    db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
    if err != nil {
        log.Fatalf("database: %v", err)
    }
    defer func() { _ = db.Close() }()

    // Repositories share the one pool.
    users := repository.NewUserRepo(db)
    tokens := repository.NewTokenRepo(db)
    transactions := repository.NewTransactionRepo(db)
    documents := repository.NewDocumentRepo(db)
    invoices := repository.NewInvoiceRepo(db)

    engine := gateway.New(cfg.SignerURL, cfg.SignerTimeout)
    orchestrator := signing.New(transactions, documents, engine)

    authHandler := handler.NewAuthHandler(cfg, users, tokens)
    txHandler := handler.NewTransactionHandler(transactions, documents, invoices, cfg.MaxUploadMB)
    invHandler := handler.NewInvoiceHandler(invoices, cfg.MaxUploadMB)
    publicHandler := handler.NewPublicSigningHandler(transactions, documents, engine, orchestrator)
    adminHandler := handler.NewAdminHandler(transactions)

    // Redis backs the PIN brute-force limiter and the public listing
    // cache.  Both degrade to pass-through when disabled.
    var rateLimit, respCache echo.MiddlewareFunc
    rlCfg := config.LoadRateLimitConfig()
    ccCfg := config.LoadCacheConfig()
    if rlCfg.Enabled || ccCfg.Enabled {
        rdb := config.NewRedisClient()
        if rlCfg.Enabled {
            rateLimit = middleware.NewTokenBucket(rlCfg, rdb)
        }
        if ccCfg.Enabled {
            respCache = middleware.NewRedisCache(ccCfg, rdb)
        }
    }

    e := echo.New()
    router.RegisterRoutes(e)
    router.RegisterAuth(e, authHandler, cfg.JWTSecret)
    router.RegisterTransactions(e, txHandler, invHandler, cfg.JWTSecret)
    router.RegisterAdmin(e, adminHandler, cfg.JWTSecret)
    router.RegisterPublicSigning(e, publicHandler, rateLimit, respCache)

    // Consume transaction.signed events in the background; the consumer
    // reconnects on broker failures and never takes the API down.
    go func() {
        if err := queue.StartSignedConsumer(); err != nil {
            log.Printf("queue consumer stopped: %v", err)
        }
    }()

    addr := ":" + cfg.Port                                // Address string with port
    log.Printf("listening on %s (env=%s)", addr, cfg.Env) // Print startup info

    if err := e.Start(addr); err != nil { // Start HTTP server
        log.Fatal(err) // Log and exit if server fails
    }
}
