package httpserver

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5"
	"github.com/radiusdt/game-ads/internal/ads"
	"github.com/radiusdt/game-ads/internal/models"
	"go.uber.org/zap"
)

//go:embed templates/*.html
var templateFS embed.FS

var templateFuncs = template.FuncMap{
	"comma": func(n int64) string { return humanize.Comma(n) },
	"percent": func(f float64) string {
		return humanize.FormatFloat("#,###.##", f) + "%"
	},
	"ago": func(t time.Time) string {
		if t.IsZero() {
			return "unknown"
		}
		return humanize.Time(t)
	},
}

type pages struct {
	index *template.Template
	form  *template.Template
	error *template.Template
}

func mustParsePages() *pages {
	parse := func(name string) *template.Template {
		return template.Must(template.New(name).Funcs(templateFuncs).
			ParseFS(templateFS, "templates/base.html", "templates/"+name))
	}
	return &pages{
		index: parse("index.html"),
		form:  parse("form.html"),
		error: parse("error.html"),
	}
}

type indexPage struct {
	Sections    []*models.TypeSnapshot
	GeneratedAt time.Time
	Error       string
}

type formPage struct {
	Type   models.AdType
	Action string
	Ad     *models.Ad
	Stats  *models.AdStats
	Input  models.AdInput
	Error  string
}

type errorPage struct {
	Status  string
	Message string
}

// render executes into a buffer first so a template failure never leaves a
// half-written page.
func (s *Server) render(w http.ResponseWriter, tmpl *template.Template, code int, data interface{}) {
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "base", data); err != nil {
		s.logger.Error("failed to render template", zap.String("template", tmpl.Name()), zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(code)
	_, _ = buf.WriteTo(w)
}

func (s *Server) renderError(w http.ResponseWriter, err error) {
	code, msg := serviceError(err)
	s.render(w, s.pages.error, code, errorPage{
		Status:  fmt.Sprintf("%d %s", code, http.StatusText(code)),
		Message: msg,
	})
}

// ---- Dashboard ----

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	page := indexPage{GeneratedAt: time.Now().UTC()}

	snap, err := s.reportingService.Snapshot(r.Context())
	if err != nil {
		_, msg := serviceError(err)
		page.Error = "Metrics are unavailable: " + msg
		s.logger.Warn("dashboard rendered without data", zap.Error(err))
		for _, t := range models.AdTypes {
			page.Sections = append(page.Sections, &models.TypeSnapshot{Type: t})
		}
	} else {
		page.GeneratedAt = snap.GeneratedAt
		page.Sections = []*models.TypeSnapshot{&snap.Banner, &snap.Fullscreen}
	}

	s.render(w, s.pages.index, http.StatusOK, page)
}

func (s *Server) handleAddForm(slug string) http.HandlerFunc {
	t := models.AdType(slug)
	return func(w http.ResponseWriter, r *http.Request) {
		s.render(w, s.pages.form, http.StatusOK, formPage{Type: t, Action: "/add-" + slug})
	}
}

func (s *Server) handleAddSubmit(slug string) http.HandlerFunc {
	t := models.AdType(slug)
	return func(w http.ResponseWriter, r *http.Request) {
		in, err := parseAdForm(w, r)
		if err != nil {
			s.render(w, s.pages.form, http.StatusBadRequest, formPage{Type: t, Action: "/add-" + slug, Error: err.Error()})
			return
		}

		if _, err := s.adService.Create(r.Context(), t, in); err != nil {
			code, msg := serviceError(err)
			if code != http.StatusBadRequest {
				s.renderError(w, err)
				return
			}
			s.render(w, s.pages.form, code, formPage{Type: t, Action: "/add-" + slug, Input: in, Error: msg})
			return
		}

		http.Redirect(w, r, "/", http.StatusSeeOther)
	}
}

func (s *Server) handleEditForm(slug string) http.HandlerFunc {
	t := models.AdType(slug)
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		stats, err := s.reportingService.AdStats(r.Context(), t, id)
		if err != nil {
			s.renderError(w, err)
			return
		}

		s.render(w, s.pages.form, http.StatusOK, formPage{
			Type:   t,
			Action: "/edit-" + slug + "/" + id,
			Ad:     &stats.Ad,
			Stats:  stats,
			Input: models.AdInput{
				Title:     stats.Title,
				ImageURL:  stats.ImageURL,
				TargetURL: stats.TargetURL,
			},
		})
	}
}

func (s *Server) handleEditSubmit(slug string) http.HandlerFunc {
	t := models.AdType(slug)
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		action := "/edit-" + slug + "/" + id

		ad, err := s.adService.Get(r.Context(), t, id)
		if err != nil {
			s.renderError(w, err)
			return
		}

		in, err := parseAdForm(w, r)
		if err != nil {
			s.render(w, s.pages.form, http.StatusBadRequest, formPage{Type: t, Action: action, Ad: ad, Error: err.Error()})
			return
		}

		found, err := s.adService.Update(r.Context(), t, id, in)
		if err != nil {
			code, msg := serviceError(err)
			if code != http.StatusBadRequest {
				s.renderError(w, err)
				return
			}
			s.render(w, s.pages.form, code, formPage{Type: t, Action: action, Ad: ad, Input: in, Error: msg})
			return
		}
		if !found {
			s.renderError(w, ads.ErrNotFound)
			return
		}

		http.Redirect(w, r, "/", http.StatusSeeOther)
	}
}

func (s *Server) handleDelete(slug string) http.HandlerFunc {
	t := models.AdType(slug)
	return func(w http.ResponseWriter, r *http.Request) {
		found, err := s.adService.Delete(r.Context(), t, chi.URLParam(r, "id"))
		if err != nil {
			s.renderError(w, err)
			return
		}
		if !found {
			s.renderError(w, ads.ErrNotFound)
			return
		}
		http.Redirect(w, r, "/", http.StatusSeeOther)
	}
}

// parseAdForm reads the ad fields of a dashboard form. linkUrl is accepted
// in place of targetUrl.
func parseAdForm(w http.ResponseWriter, r *http.Request) (models.AdInput, error) {
	r.Body = http.MaxBytesReader(w, r.Body, 64<<10)
	if err := r.ParseForm(); err != nil {
		return models.AdInput{}, fmt.Errorf("invalid form: %v", err)
	}
	target := r.PostForm.Get("targetUrl")
	if strings.TrimSpace(target) == "" {
		target = r.PostForm.Get("linkUrl")
	}
	return models.AdInput{
		Title:     r.PostForm.Get("title"),
		ImageURL:  r.PostForm.Get("imageUrl"),
		TargetURL: target,
	}, nil
}
