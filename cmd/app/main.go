package main

import (
    "context"
    "fmt"
    "net/http"
    "os"
    "os/signal"
    "syscall"
    "time"

    "github.com/rs/zerolog/log"

    cfgpkg "github.com/local/imgpdf/internal/config"
    "github.com/local/imgpdf/internal/conversion"
    logpkg "github.com/local/imgpdf/internal/logger"
    "github.com/local/imgpdf/internal/metrics"
    "github.com/local/imgpdf/internal/statuscheck"
    "github.com/local/imgpdf/internal/storage"
    "github.com/local/imgpdf/internal/store"
    "github.com/local/imgpdf/internal/sweeper"
    web "github.com/local/imgpdf/internal/web"
)

func main() {
    cfg := cfgpkg.Load()

    // Init logging
    _ = logpkg.Init(logpkg.Options{
        Level: cfg.Logging.Level,
        Pretty: cfg.Logging.Pretty,
        File: cfg.Logging.File,
        MaxSizeMB: cfg.Logging.MaxSizeMB,
        MaxBackups: cfg.Logging.MaxBackups,
        MaxAgeDays: cfg.Logging.MaxAgeDays,
        Compress: cfg.Logging.Compress,
        SendToAxiom: cfg.Axiom.Send && cfg.Axiom.APIKey != "",
        AxiomAPIKey: cfg.Axiom.APIKey,
        AxiomOrgID: cfg.Axiom.OrgID,
        AxiomDataset: cfg.Axiom.Dataset,
        AxiomFlush: cfg.Axiom.FlushInterval,
    })
    defer logpkg.Close()

    metrics.Init()

    ws, err := storage.NewWorkspace(cfg.Storage.Root)
    if err != nil {
        log.Fatal().Err(err).Str("root", cfg.Storage.Root).Msg("failed to prepare upload directory")
    }

    // Conversion records
    var records store.Store
    if cfg.Store.RedisURL != "" {
        rs, err := store.NewRedisStore(cfg.Store.RedisURL)
        if err != nil {
            log.Fatal().Err(err).Msg("failed to init redis record store")
        }
        records = rs
    } else {
        records = store.NewMemoryStore()
    }
    defer records.Close()

    // Optional S3 archive
    var archiver conversion.Archiver
    var archivePing statuscheck.Pinger
    if cfg.Archive.Bucket != "" {
        a, err := storage.NewS3Archiver(context.Background(), storage.S3Options{
            Bucket:          cfg.Archive.Bucket,
            Prefix:          cfg.Archive.Prefix,
            Password:        cfg.Archive.Password,
            Region:          cfg.Archive.Region,
            Endpoint:        cfg.Archive.Endpoint,
            AccessKeyID:     cfg.Archive.AccessKeyID,
            SecretAccessKey: cfg.Archive.SecretAccessKey,
        })
        if err != nil {
            log.Fatal().Err(err).Str("bucket", cfg.Archive.Bucket).Msg("failed to init s3 archiver")
        }
        archiver = a
        archivePing = a
        log.Info().Str("bucket", cfg.Archive.Bucket).Bool("sealed", cfg.Archive.Password != "").Msg("archiving enabled")
    }

    svc := conversion.New(conversion.Dependencies{
        Workspace: ws,
        Records:   records,
        Archiver:  archiver,
    }, conversion.Options{
        MaxImageWidth:  cfg.Convert.MaxImageWidth,
        MaxImagePixels: cfg.Convert.MaxPixels,
        JPEGQuality:    cfg.Convert.JPEGQuality,
        MaxFiles:       cfg.Convert.MaxFiles,
        MaxUploadBytes: int64(cfg.Convert.MaxUploadMB) << 20,
        MaxConcurrent:  cfg.Convert.MaxConcurrent,
        OutputFilename: cfg.Convert.OutputFilename,
        Retention:      cfg.Storage.Retention,
    })

    mux := http.NewServeMux()
    svc.RegisterRoutes(mux)
    web.New(cfg.Convert.MaxFiles, cfg.Convert.MaxImageWidth).RegisterRoutes(mux)
    mux.Handle("/metrics", metrics.Handler())
    mux.HandleFunc("/status", statuscheck.New(statuscheck.Options{
        Records:    records,
        UploadRoot: ws.Root(),
        Archive:    archivePing,
    }).Handler())

    // Retention sweeper
    sweepCtx, stopSweep := context.WithCancel(context.Background())
    sw := sweeper.New(sweeper.Options{
        Root:      ws.Root(),
        Retention: cfg.Storage.Retention,
        Interval:  cfg.Storage.SweepInterval,
    })
    sweepDone := make(chan struct{})
    go func() {
        defer close(sweepDone)
        sw.Run(sweepCtx)
    }()

    srv := &http.Server{Addr: ":" + cfg.Server.Port, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

    go func(){
        log.Info().Msgf("HTTP server listening on :%s", cfg.Server.Port)
        if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
            log.Fatal().Err(err).Msg("http server error")
        }
    }()

    // Graceful shutdown
    stop := make(chan os.Signal, 1)
    signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
    <-stop
    stopSweep()
    ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
    defer cancel()
    _ = srv.Shutdown(ctx)
    <-sweepDone
    svc.Wait()
    fmt.Println("shutdown complete")
}
