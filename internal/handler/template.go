package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"path"
	"strconv"

	"github.com/dukerupert/academy/internal/config"
	"github.com/dukerupert/academy/internal/nav"
)

// Renderer executes the embedded templates. Each page gets its own set
// (layout + partials + the page) so every page can define "content".
type Renderer struct {
	base     *template.Template
	pages    map[string]*template.Template
	firebase *config.FirebaseConfig
	logger   *slog.Logger
}

type imageFieldData struct {
	Field string
	Label string
	URL   string
	Error string
}

var funcs = template.FuncMap{
	"imageField": func(field, label, url string) imageFieldData {
		return imageFieldData{Field: field, Label: label, URL: url}
	},
}

// NewRenderer parses templates/layout.html, templates/partials/*.html and
// one set per templates/pages/*.html from fsys.
func NewRenderer(fsys fs.FS, logger *slog.Logger) (*Renderer, error) {
	base, err := template.New("").Funcs(funcs).ParseFS(fsys, "templates/layout.html", "templates/partials/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse base templates: %w", err)
	}

	files, err := fs.Glob(fsys, "templates/pages/*.html")
	if err != nil {
		return nil, fmt.Errorf("list page templates: %w", err)
	}
	pages := make(map[string]*template.Template, len(files))
	for _, f := range files {
		t, err := template.Must(base.Clone()).ParseFS(fsys, f)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", f, err)
		}
		pages[path.Base(f)] = t
	}
	return &Renderer{base: base, pages: pages, logger: logger}, nil
}

// WithFirebase makes the public Firebase web config available to pages.
func (rd *Renderer) WithFirebase(cfg config.FirebaseConfig) *Renderer {
	if cfg.WebEnabled() {
		rd.firebase = &cfg
	}
	return rd
}

type pageData struct {
	Title      string
	Header     nav.Header
	ThemeColor string
	Firebase   *config.FirebaseConfig
	Data       any
}

// page renders a full page through the layout. Output is buffered so a
// template failure can still produce a clean 500.
func (rd *Renderer) page(w http.ResponseWriter, status int, name string, data pageData) {
	t, ok := rd.pages[name]
	if !ok {
		rd.logger.Error("unknown page template", "name", name)
		http.Error(w, "template error", http.StatusInternalServerError)
		return
	}
	data.Firebase = rd.firebase

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		rd.logger.Error("render page", "name", name, "error", err)
		http.Error(w, "template error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

func (rd *Renderer) partial(w http.ResponseWriter, status int, name string, data any) {
	var buf bytes.Buffer
	if err := rd.base.ExecuteTemplate(&buf, name, data); err != nil {
		rd.logger.Error("render partial", "name", name, "error", err)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `<div class="alert alert-error">Template error</div>`)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func parseIDParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(r.PathValue("id"), 10, 64)
}

func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// trigger sets HX-Trigger to a single event carrying detail.
func trigger(w http.ResponseWriter, event string, detail any) {
	b, err := json.Marshal(map[string]any{event: detail})
	if err != nil {
		return
	}
	w.Header().Set("HX-Trigger", string(b))
}

// redirect navigates the browser, through HX-Redirect for HTMX requests.
func redirect(w http.ResponseWriter, r *http.Request, target string) {
	if isHTMX(r) {
		w.Header().Set("HX-Redirect", target)
		w.WriteHeader(http.StatusOK)
		return
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}
