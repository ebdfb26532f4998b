package web

import (
	"bytes"
	"embed"
	"encoding/base64"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/yuin/goldmark"

	"auracal/internal/daily"
	appLog "auracal/internal/log"
	"auracal/internal/model"
)

//go:embed templates/*.html
var templateFS embed.FS

type pages struct {
	index  *template.Template
	poster *template.Template
}

func newPages() *pages {
	md := goldmark.New()
	funcs := template.FuncMap{
		"markdown": func(src string) template.HTML {
			var buf bytes.Buffer
			if err := md.Convert([]byte(src), &buf); err != nil {
				return template.HTML(template.HTMLEscapeString(src))
			}
			// goldmark drops raw HTML unless WithUnsafe is set.
			return template.HTML(buf.String())
		},
		"shortCategory": func(c string) string {
			return strings.ReplaceAll(c, "新闻", "")
		},
		"attribution": attribution,
	}

	return &pages{
		index:  template.Must(template.New("index.html").Funcs(funcs).ParseFS(templateFS, "templates/index.html")),
		poster: template.Must(template.New("poster.html").Funcs(funcs).ParseFS(templateFS, "templates/poster.html")),
	}
}

// attribution renders the quote credit line, omitting a missing author.
func attribution(k model.Knowledge) string {
	if k.Author != "" {
		return fmt.Sprintf("— %s 《%s》", k.Author, k.Source)
	}
	return fmt.Sprintf("— 《%s》", k.Source)
}

// header is the date block shared by the page and the poster.
type header struct {
	Year  int
	Month int
	Day   int
}

func newHeader(t time.Time) header {
	return header{Year: t.Year(), Month: int(t.Month()), Day: t.Day()}
}

type indexData struct {
	header
	Status     daily.Status
	Info       model.DailyInfo
	HasBanner  bool
	BannerURL  string
	Countdowns []model.CountdownResult
	Memorials  []model.MemorialDay
}

type posterData struct {
	header
	Info      model.DailyInfo
	BannerURL template.URL
}

func (p *pages) renderPoster(data posterData) ([]byte, error) {
	var buf bytes.Buffer
	if err := p.poster.Execute(&buf, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// posterData inlines the banner as a data URL so the document renders
// without fetching anything from this server.
func (s *Server) posterData(snap daily.Snapshot) posterData {
	d := posterData{header: newHeader(s.daily.Today()), Info: snap.Info}
	if len(snap.Banner) > 0 {
		d.BannerURL = template.URL("data:" + http.DetectContentType(snap.Banner) + ";base64," +
			base64.StdEncoding.EncodeToString(snap.Banner))
	}
	return d
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	snap := s.daily.Snapshot()
	today := s.daily.Today()

	data := indexData{
		header:    newHeader(today),
		Status:    snap.Status,
		Memorials: s.store.List(),
	}
	if snap.Ready() {
		data.Info = snap.Info
		data.HasBanner = len(snap.Banner) > 0
		data.BannerURL = "/api/banner?d=" + snap.Day.Format("20060102")
		data.Countdowns = s.store.ListNearest(today, s.cfg.CountdownCount)
	}

	var buf bytes.Buffer
	if err := s.pages.index.Execute(&buf, &data); err != nil {
		appLog.Error("index template failed", err)
		http.Error(w, "failed to render page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

// handlePosterPage serves the exact document that POST /api/poster
// rasterizes, for previewing the layout in a browser.
func (s *Server) handlePosterPage(w http.ResponseWriter, _ *http.Request) {
	snap := s.daily.Snapshot()
	if !snap.Ready() {
		http.Error(w, "daily data not ready", http.StatusServiceUnavailable)
		return
	}
	html, err := s.pages.renderPoster(s.posterData(snap))
	if err != nil {
		appLog.Error("poster template failed", err)
		http.Error(w, "failed to render poster", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(html)
}
