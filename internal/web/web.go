package web

import (
    "embed"
    "html/template"
    "io/fs"
    "net/http"

    "github.com/rs/zerolog/log"
)

//go:embed templates/*.html
var templates embed.FS

//go:embed static
var assets embed.FS

type Web struct {
    tpl      *template.Template
    maxFiles int
    maxWidth int
}

// New parses the embedded templates. maxFiles and maxWidth are only shown to the user.
func New(maxFiles, maxWidth int) *Web {
    tpl := template.Must(template.ParseFS(templates, "templates/*.html"))
    return &Web{tpl: tpl, maxFiles: maxFiles, maxWidth: maxWidth}
}

func (w *Web) RegisterRoutes(mux *http.ServeMux) {
    mux.HandleFunc("/", w.handleIndex)
    static, _ := fs.Sub(assets, "static")
    mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.FS(static))))
}

func (w *Web) handleIndex(wr http.ResponseWriter, r *http.Request) {
    if r.URL.Path != "/" {
        http.NotFound(wr, r)
        return
    }
    if r.Method != http.MethodGet && r.Method != http.MethodHead {
        wr.WriteHeader(http.StatusMethodNotAllowed)
        return
    }
    wr.Header().Set("Content-Type", "text/html; charset=utf-8")
    w.render(wr, "index.html", map[string]any{
        "MaxFiles": w.maxFiles,
        "MaxWidth": w.maxWidth,
    })
}

func (w *Web) render(wr http.ResponseWriter, name string, data any) {
    if err := w.tpl.ExecuteTemplate(wr, name, data); err != nil {
        log.Error().Err(err).Str("template", name).Msg("render failed")
    }
}
