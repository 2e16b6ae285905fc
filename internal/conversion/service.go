// Package conversion turns an uploaded batch of images into one downloadable PDF.
package conversion

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/local/imgpdf/internal/filetype"
	"github.com/local/imgpdf/internal/limiter"
	"github.com/local/imgpdf/internal/metrics"
	"github.com/local/imgpdf/internal/pages"
	"github.com/local/imgpdf/internal/pdfbuild"
	"github.com/local/imgpdf/internal/storage"
	"github.com/local/imgpdf/internal/store"
)

// ErrNoValidImages means every upload in the batch was dropped.
var ErrNoValidImages = errors.New("no valid images uploaded")

// Archiver copies a finished PDF somewhere durable and returns where it went.
type Archiver interface {
	Archive(ctx context.Context, id, pdfPath string) (string, error)
}

type Dependencies struct {
	Workspace *storage.Workspace
	Records   store.Store
	// Archiver is optional.
	Archiver Archiver
}

type Options struct {
	MaxImageWidth  int
	MaxImagePixels int
	JPEGQuality    int
	MaxFiles       int
	MaxUploadBytes int64
	OutputFilename string
	// MaxConcurrent bounds simultaneous uploads; zero means unlimited.
	MaxConcurrent int
	// Retention is how long records live; it matches the sweeper window.
	Retention      time.Duration
	ArchiveTimeout time.Duration
}

type Service struct {
	deps     Dependencies
	opts     Options
	detector *filetype.Detector
	slots    *limiter.Slots
	archives sync.WaitGroup
}

// Result is one finished conversion.
type Result struct {
	Entry  *storage.Entry
	Record store.Record
	Batch  pages.Batch
}

func New(deps Dependencies, opts Options) *Service {
	if opts.OutputFilename == "" {
		opts.OutputFilename = "converted.pdf"
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 64 << 20
	}
	if opts.Retention <= 0 {
		opts.Retention = 10 * time.Minute
	}
	if opts.ArchiveTimeout <= 0 {
		opts.ArchiveTimeout = 2 * time.Minute
	}
	if deps.Records == nil {
		deps.Records = store.NewMemoryStore()
	}
	return &Service{deps: deps, opts: opts, detector: filetype.New(), slots: limiter.New(opts.MaxConcurrent)}
}

// Convert stores the uploads in a fresh entry, builds the PDF next to them and records the
// result. It returns ErrNoValidImages when nothing in the batch could be decoded.
func (s *Service) Convert(ctx context.Context, uploads []pages.Upload, filename string) (*Result, error) {
	start := time.Now()

	entry, err := s.deps.Workspace.Create()
	if err != nil {
		return nil, err
	}
	logger := log.With().Str("conversion_id", entry.ID).Logger()

	for i, u := range uploads {
		info := s.detector.Detect(u.Data)
		if _, err := entry.SaveUpload(i, info.Extension, u.Data); err != nil {
			return nil, err
		}
	}

	batch := pages.Prepare(uploads, pages.Options{MaxWidth: s.opts.MaxImageWidth, MaxPixels: s.opts.MaxImagePixels})
	for _, sk := range batch.Skipped {
		metrics.IncSkipped(sk.Reason)
	}
	if batch.Empty() {
		logger.Info().Int("uploads", len(uploads)).Msg("no valid images in batch")
		if err := entry.Remove(); err != nil {
			logger.Warn().Err(err).Msg("failed to remove empty entry")
		}
		return nil, ErrNoValidImages
	}

	size, err := s.writePDF(entry, batch.Pages)
	if err != nil {
		return nil, err
	}

	rec := store.Record{
		ID:        entry.ID,
		Pages:     len(batch.Pages),
		Filename:  filename,
		Size:      size,
		CreatedAt: entry.Created.UTC(),
	}
	for _, sk := range batch.Skipped {
		rec.Skipped = append(rec.Skipped, sk.Name)
	}
	if err := s.deps.Records.Save(ctx, rec, s.opts.Retention); err != nil {
		logger.Warn().Err(err).Msg("failed to save conversion record")
	}

	resized := 0
	for _, p := range batch.Pages {
		if p.Resized {
			resized++
		}
	}

	dur := time.Since(start)
	metrics.ObserveConversion(rec.Pages, dur)
	logger.Info().
		Int("uploads", len(uploads)).
		Int("pages", rec.Pages).
		Int("skipped", len(batch.Skipped)).
		Int("resized", resized).
		Int64("size", size).
		Dur("took", dur).
		Msg("conversion complete")

	s.archive(entry)
	return &Result{Entry: entry, Record: rec, Batch: batch}, nil
}

func (s *Service) writePDF(entry *storage.Entry, list []pages.Page) (int64, error) {
	f, err := os.Create(entry.OutputPath())
	if err != nil {
		return 0, fmt.Errorf("create output: %w", err)
	}
	if err := pdfbuild.Write(f, list, pdfbuild.Options{Quality: s.opts.JPEGQuality}); err != nil {
		f.Close()
		return 0, err
	}
	if err := f.Close(); err != nil {
		return 0, fmt.Errorf("close output: %w", err)
	}
	n, err := pdfbuild.PageCountFile(entry.OutputPath())
	if err != nil {
		return 0, err
	}
	if n != len(list) {
		return 0, fmt.Errorf("pdf has %d pages, want %d", n, len(list))
	}
	info, err := os.Stat(entry.OutputPath())
	if err != nil {
		return 0, fmt.Errorf("stat output: %w", err)
	}
	return info.Size(), nil
}

// archive copies the PDF in the background. Failures are logged only.
func (s *Service) archive(entry *storage.Entry) {
	if s.deps.Archiver == nil {
		return
	}
	s.archives.Add(1)
	go func() {
		defer s.archives.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.opts.ArchiveTimeout)
		defer cancel()
		url, err := s.deps.Archiver.Archive(ctx, entry.ID, entry.OutputPath())
		if err != nil {
			log.Warn().Err(err).Str("conversion_id", entry.ID).Msg("archive failed")
			return
		}
		if err := s.deps.Records.SetArchiveURL(ctx, entry.ID, url); err != nil {
			log.Warn().Err(err).Str("conversion_id", entry.ID).Msg("failed to record archive url")
		}
	}()
}

// Wait blocks until in-flight archive uploads finish.
func (s *Service) Wait() { s.archives.Wait() }
