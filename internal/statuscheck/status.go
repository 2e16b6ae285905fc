package statuscheck

import (
    "context"
    "encoding/json"
    "errors"
    "net/http"
    "os"
    "time"
)

// Pinger models the minimal capability we need for status checks.
type Pinger interface {
    Ping(ctx context.Context) error
}

// Checker aggregates health checks for the record store, upload root and archive bucket.
type Checker struct {
    records    Pinger
    uploadRoot string
    archive    Pinger
}

// Options configures the Checker. Archive is optional.
type Options struct {
    Records    Pinger
    UploadRoot string
    Archive    Pinger
}

// Status represents the readiness of a subsystem.
type Status struct {
    OK      bool   `json:"ok"`
    Message string `json:"message"`
}

// Summary bundles all subsystem statuses.
type Summary struct {
    Records Status `json:"records"`
    Storage Status `json:"storage"`
    Archive Status `json:"archive"`
}

// Healthy reports whether every required subsystem is up. A disabled archive does not count.
func (s Summary) Healthy() bool {
    return s.Records.OK && s.Storage.OK && (s.Archive.OK || s.Archive.Message == msgDisabled)
}

const msgDisabled = "Not configured"

func New(opts Options) *Checker {
    return &Checker{records: opts.Records, uploadRoot: opts.UploadRoot, archive: opts.Archive}
}

// Summary returns the current status snapshot.
func (c *Checker) Summary(ctx context.Context) Summary {
    return Summary{
        Records: c.checkRecords(ctx),
        Storage: c.checkStorage(),
        Archive: c.checkArchive(ctx),
    }
}

// Handler serves the summary as JSON, with 503 when a required subsystem is down.
func (c *Checker) Handler() http.HandlerFunc {
    return func(w http.ResponseWriter, r *http.Request) {
        sum := c.Summary(r.Context())
        w.Header().Set("Content-Type", "application/json")
        if !sum.Healthy() {
            w.WriteHeader(http.StatusServiceUnavailable)
        }
        _ = json.NewEncoder(w).Encode(sum)
    }
}

func (c *Checker) checkRecords(ctx context.Context) Status {
    if c.records == nil {
        return Status{OK: false, Message: "client unavailable"}
    }
    ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
    defer cancel()
    if err := c.records.Ping(ctx); err != nil {
        return Status{OK: false, Message: trimError(err)}
    }
    return Status{OK: true, Message: "Connected"}
}

func (c *Checker) checkStorage() Status {
    if c.uploadRoot == "" {
        return Status{OK: false, Message: "Upload root not configured"}
    }
    f, err := os.CreateTemp(c.uploadRoot, ".probe-*")
    if err != nil {
        return Status{OK: false, Message: trimError(err)}
    }
    name := f.Name()
    f.Close()
    _ = os.Remove(name)
    return Status{OK: true, Message: "Writable"}
}

func (c *Checker) checkArchive(ctx context.Context) Status {
    if c.archive == nil {
        return Status{OK: false, Message: msgDisabled}
    }
    ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
    defer cancel()
    if err := c.archive.Ping(ctx); err != nil {
        return Status{OK: false, Message: trimError(err)}
    }
    return Status{OK: true, Message: "Connected"}
}

func trimError(err error) string {
    if err == nil {
        return ""
    }
    var netErr interface{ Timeout() bool }
    if errors.As(err, &netErr) && netErr.Timeout() {
        return "timeout"
    }
    msg := err.Error()
    if len(msg) > 120 {
        return msg[:120]
    }
    return msg
}
