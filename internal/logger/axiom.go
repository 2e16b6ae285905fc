package logger

import (
    "context"
    "encoding/json"
    "sync"
    "sync/atomic"
    "time"

    "github.com/axiomhq/axiom-go/axiom"
    "github.com/axiomhq/axiom-go/axiom/ingest"
    "github.com/rs/zerolog"
)

const (
    axiomBuffer    = 1000
    axiomBatchSize = 200
    axiomTimeout   = 15 * time.Second
)

// ingester is the part of *axiom.Client the forwarder uses.
type ingester interface {
    IngestEvents(ctx context.Context, dataset string, events []axiom.Event, options ...ingest.Option) (*ingest.Status, error)
}

// axiomForwarder batches JSON log lines at info level and above and ships them to a dataset.
// Lines are dropped rather than blocking the caller when the buffer is full.
type axiomForwarder struct {
    client  ingester
    dataset string
    events  chan axiom.Event
    done    chan struct{}
    wg      sync.WaitGroup
    dropped atomic.Int64
}

func newAxiomForwarder(token, orgID, dataset string, every time.Duration) (*axiomForwarder, error) {
    opts := []axiom.Option{axiom.SetToken(token)}
    if orgID != "" { opts = append(opts, axiom.SetOrganizationID(orgID)) }
    c, err := axiom.NewClient(opts...)
    if err != nil { return nil, err }
    return startForwarder(c, dataset, every), nil
}

func startForwarder(c ingester, dataset string, every time.Duration) *axiomForwarder {
    if dataset == "" { dataset = "dev_" + serviceName }
    if every <= 0 { every = 10 * time.Second }
    f := &axiomForwarder{
        client:  c,
        dataset: dataset,
        events:  make(chan axiom.Event, axiomBuffer),
        done:    make(chan struct{}),
    }
    f.wg.Add(1)
    go f.run(every)
    return f
}

func (f *axiomForwarder) Write(p []byte) (int, error) {
    return f.WriteLevel(zerolog.InfoLevel, p)
}

// WriteLevel skips debug and trace lines.
func (f *axiomForwarder) WriteLevel(l zerolog.Level, p []byte) (int, error) {
    if l < zerolog.InfoLevel {
        return len(p), nil
    }
    ev := axiom.Event{}
    if err := json.Unmarshal(p, &ev); err != nil {
        ev = axiom.Event{"message": string(p), "level": l.String()}
    }
    if _, ok := ev[ingest.TimestampField]; !ok {
        ev[ingest.TimestampField] = time.Now()
    }
    select {
    case f.events <- ev:
    default:
        f.dropped.Add(1)
    }
    return len(p), nil
}

// Dropped counts lines lost to a full buffer.
func (f *axiomForwarder) Dropped() int64 { return f.dropped.Load() }

func (f *axiomForwarder) run(every time.Duration) {
    defer f.wg.Done()
    ticker := time.NewTicker(every)
    defer ticker.Stop()

    batch := make([]axiom.Event, 0, axiomBatchSize)
    flush := func() {
        if len(batch) == 0 { return }
        ctx, cancel := context.WithTimeout(context.Background(), axiomTimeout)
        _, _ = f.client.IngestEvents(ctx, f.dataset, batch)
        cancel()
        batch = batch[:0]
    }

    for {
        select {
        case ev := <-f.events:
            batch = append(batch, ev)
            if len(batch) >= axiomBatchSize { flush() }
        case <-ticker.C:
            flush()
        case <-f.done:
            // Drain what is already buffered before the final flush.
            for {
                select {
                case ev := <-f.events:
                    batch = append(batch, ev)
                    if len(batch) >= axiomBatchSize { flush() }
                default:
                    flush()
                    return
                }
            }
        }
    }
}

// Close stops the forwarder after a final flush.
func (f *axiomForwarder) Close() {
    close(f.done)
    f.wg.Wait()
}
