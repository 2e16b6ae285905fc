package logger

import (
    "fmt"
    "io"
    "os"
    "path/filepath"
    "time"

    "github.com/rs/zerolog"
    "github.com/rs/zerolog/log"
    lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

const serviceName = "imgpdf"

// Options defines logger initialization parameters.
type Options struct {
    Level      string
    Pretty     bool
    File       string
    MaxSizeMB  int
    MaxBackups int
    MaxAgeDays int
    Compress   bool

    // Console replaces stdout (tests).
    Console io.Writer

    // Axiom
    SendToAxiom  bool
    AxiomAPIKey  string
    AxiomOrgID   string
    AxiomDataset string
    AxiomFlush   time.Duration
}

var (
    global  zerolog.Logger
    forward *axiomForwarder
    rotator *lumberjack.Logger
)

// Init builds the global logger from the configured sinks and installs it as log.Logger.
func Init(opts Options) error {
    sinks, err := openSinks(opts)
    if err != nil {
        return err
    }

    zerolog.TimeFieldFormat = time.RFC3339
    global = zerolog.New(zerolog.MultiLevelWriter(sinks...)).
        Level(parseLevel(opts.Level)).
        With().Timestamp().Str("service", serviceName).
        Logger()
    log.Logger = global
    return nil
}

func openSinks(opts Options) ([]io.Writer, error) {
    var sinks []io.Writer

    if opts.File != "" {
        if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
            return nil, fmt.Errorf("create logs dir: %w", err)
        }
        rotator = &lumberjack.Logger{
            Filename:   opts.File,
            MaxSize:    opts.MaxSizeMB,
            MaxBackups: opts.MaxBackups,
            MaxAge:     opts.MaxAgeDays,
            Compress:   opts.Compress,
        }
        sinks = append(sinks, rotator)
    }

    out := opts.Console
    if out == nil { out = os.Stdout }
    if opts.Pretty {
        out = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"}
    }
    sinks = append(sinks, out)

    if opts.SendToAxiom && opts.AxiomAPIKey != "" {
        f, err := newAxiomForwarder(opts.AxiomAPIKey, opts.AxiomOrgID, opts.AxiomDataset, opts.AxiomFlush)
        if err != nil {
            // Forwarding is optional; keep the local sinks.
            fmt.Fprintf(os.Stderr, "axiom forwarding disabled: %v\n", err)
        } else {
            forward = f
            sinks = append(sinks, f)
        }
    }
    return sinks, nil
}

func parseLevel(s string) zerolog.Level {
    if s == "" { return zerolog.InfoLevel }
    lvl, err := zerolog.ParseLevel(s)
    if err != nil || lvl == zerolog.NoLevel { return zerolog.InfoLevel }
    return lvl
}

// Close flushes the Axiom forwarder and releases the log file.
func Close() {
    if forward != nil {
        forward.Close()
        forward = nil
    }
    if rotator != nil {
        _ = rotator.Close()
        rotator = nil
    }
}

// Get returns the global logger.
func Get() *zerolog.Logger { return &global }
