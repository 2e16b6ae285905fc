package conversion

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/local/imgpdf/internal/imagerender"
	"github.com/local/imgpdf/internal/metrics"
	"github.com/local/imgpdf/internal/pages"
	"github.com/local/imgpdf/internal/storage"
)

// NoImagesMessage is the plain-text body returned when a batch has no usable image.
const NoImagesMessage = "No valid images uploaded."

// FormField is the repeatable multipart field carrying the images.
const FormField = "images"

func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK); _, _ = w.Write([]byte("ok")) })
	mux.HandleFunc("/upload", s.handleUpload)
	mux.HandleFunc("/download/", s.handleDownload)
	mux.HandleFunc("/preview/", s.handlePreview)
	mux.HandleFunc("/conversions/", s.handleRecord)
}

func (s *Service) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	release, ok := s.slots.Allow()
	if !ok {
		metrics.IncConversion("busy")
		log.Warn().Int("in_use", s.slots.InUse()).Msg("rejecting upload, no free slot")
		w.Header().Set("Retry-After", "5")
		http.Error(w, "server busy", http.StatusServiceUnavailable)
		return
	}
	defer release()

	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.opts.MaxUploadBytes); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			http.Error(w, fmt.Sprintf("upload exceeds %d bytes", tooBig.Limit), http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "invalid multipart form", http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	files := r.MultipartForm.File[FormField]
	if s.opts.MaxFiles > 0 && len(files) > s.opts.MaxFiles {
		http.Error(w, fmt.Sprintf("too many files: max %d", s.opts.MaxFiles), http.StatusBadRequest)
		return
	}

	uploads := make([]pages.Upload, 0, len(files))
	for i, fh := range files {
		data, err := readPart(fh)
		if err != nil {
			// An unreadable part is dropped like any other bad image.
			log.Warn().Err(err).Int("index", i).Str("file", fh.Filename).Msg("failed to read upload")
		}
		uploads = append(uploads, pages.Upload{Name: fh.Filename, Data: data})
	}

	filename := SanitizeFilename(r.FormValue("filename"), s.opts.OutputFilename)
	res, err := s.Convert(r.Context(), uploads, filename)
	if errors.Is(err, ErrNoValidImages) {
		metrics.IncConversion("no_images")
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, NoImagesMessage)
		return
	}
	if err != nil {
		metrics.IncConversion("error")
		log.Error().Err(err).Msg("conversion failed")
		http.Error(w, "conversion failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("X-Conversion-Id", res.Entry.ID)
	w.Header().Set("X-Page-Count", strconv.Itoa(res.Record.Pages))
	w.Header().Set("X-Skipped-Count", strconv.Itoa(len(res.Record.Skipped)))
	s.servePDF(w, r, res.Entry, filename)
}

func readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func (s *Service) servePDF(w http.ResponseWriter, r *http.Request, entry *storage.Entry, filename string) {
	f, err := os.Open(entry.OutputPath())
	if err != nil {
		http.Error(w, "result not available", http.StatusNotFound)
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		http.Error(w, "result not available", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	http.ServeContent(w, r, filename, info.ModTime(), f)
}

// handleDownload re-serves a stored result while it is inside the retention window.
func (s *Service) handleDownload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	entry, ok := s.openEntry(w, strings.TrimPrefix(r.URL.Path, "/download/"))
	if !ok {
		return
	}
	filename := s.opts.OutputFilename
	if rec, found, err := s.deps.Records.Get(r.Context(), entry.ID); err == nil && found && rec.Filename != "" {
		filename = rec.Filename
	}
	w.Header().Set("X-Conversion-Id", entry.ID)
	s.servePDF(w, r, entry, filename)
}

func (s *Service) handlePreview(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	entry, ok := s.openEntry(w, strings.TrimPrefix(r.URL.Path, "/preview/"))
	if !ok {
		return
	}
	page := queryInt(r, "page", 1)
	dpi := queryInt(r, "dpi", imagerender.DefaultDPI)

	data, _, _, err := imagerender.RenderPageToJPEG(entry.OutputPath(), page, dpi, imagerender.DefaultQuality)
	if errors.Is(err, imagerender.ErrPageRange) {
		http.Error(w, "page out of range", http.StatusBadRequest)
		return
	}
	if err != nil {
		log.Error().Err(err).Str("conversion_id", entry.ID).Int("page", page).Msg("preview failed")
		http.Error(w, "preview failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	_, _ = w.Write(data)
}

func (s *Service) handleRecord(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/conversions/")
	rec, ok, err := s.deps.Records.Get(r.Context(), id)
	if err != nil {
		http.Error(w, "error", http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(rec)
}

// openEntry resolves an id to an entry with a finished PDF, writing a 404 otherwise.
func (s *Service) openEntry(w http.ResponseWriter, id string) (*storage.Entry, bool) {
	entry, err := s.deps.Workspace.Open(id)
	if err != nil || !entry.HasOutput() {
		if err != nil && !errors.Is(err, storage.ErrInvalidID) && !errors.Is(err, storage.ErrNotFound) {
			log.Warn().Err(err).Str("conversion_id", id).Msg("open entry failed")
		}
		http.Error(w, "not found", http.StatusNotFound)
		return nil, false
	}
	return entry, true
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// SanitizeFilename turns a client-supplied display name into a safe attachment name ending
// in .pdf. Directory parts are dropped and anything outside [A-Za-z0-9._ -] becomes '_'.
func SanitizeFilename(name, def string) string {
	name = filepath.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	name = strings.TrimSuffix(name, filepath.Ext(name))

	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == ' ', r == '.':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	clean := strings.Trim(b.String(), ". ")
	if len(clean) > 100 {
		clean = clean[:100]
	}
	if clean == "" || strings.Trim(clean, "_") == "" {
		return def
	}
	return clean + ".pdf"
}
