package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"auracal/internal/capture"
	"auracal/internal/daily"
	"auracal/internal/datemath"
	"auracal/internal/ics"
	appLog "auracal/internal/log"
	"auracal/internal/model"
)

const maxImportBytes = 1 << 20

// dailyResponse is the JSON response shape for a ready GET /api/daily.
type dailyResponse struct {
	Status     string                  `json:"status"`
	Day        string                  `json:"day"`
	Data       model.DailyInfo         `json:"data"`
	HasBanner  bool                    `json:"hasBanner"`
	Countdowns []model.CountdownResult `json:"countdowns"`
	UpdatedAt  time.Time               `json:"updatedAt"`
}

type failedResponse struct {
	Error string `json:"error"`
	Retry string `json:"retry"`
}

// handleDaily reports the daily payload.
//
//   - 200 with the payload and nearest countdowns once ready
//   - 202 while the first fetch is still running
//   - 503 with a retry link when the fetch failed
func (s *Server) handleDaily(w http.ResponseWriter, _ *http.Request) {
	snap := s.daily.Snapshot()

	switch {
	case snap.Ready():
		writeJSON(w, http.StatusOK, dailyResponse{
			Status:     string(snap.Status),
			Day:        snap.Day.Format("2006-01-02"),
			Data:       snap.Info,
			HasBanner:  len(snap.Banner) > 0,
			Countdowns: s.store.ListNearest(s.daily.Today(), s.cfg.CountdownCount),
			UpdatedAt:  snap.UpdatedAt,
		})
	case snap.Status == daily.StatusFailed:
		writeJSON(w, http.StatusServiceUnavailable, failedResponse{
			Error: "无法加载今日信息，请检查网络后重试。",
			Retry: "/api/daily/retry",
		})
	default:
		writeJSON(w, http.StatusAccepted, map[string]string{"status": string(snap.Status)})
	}
}

// handleDailyRetry restarts the boot sequence in the background. The status
// has left "failed" by the time the response is written, so the client can
// poll GET /api/daily straight away. A retry while one is running is a no-op.
func (s *Server) handleDailyRetry(w http.ResponseWriter, _ *http.Request) {
	if err := s.daily.Retry(s.baseCtx); err != nil && !errors.Is(err, daily.ErrRefreshInProgress) {
		appLog.Error("daily retry failed", err)
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": string(s.daily.Snapshot().Status)})
}

func (s *Server) handleBanner(w http.ResponseWriter, r *http.Request) {
	snap := s.daily.Snapshot()
	if !snap.Ready() || len(snap.Banner) == 0 {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", http.DetectContentType(snap.Banner))
	w.Header().Set("Cache-Control", "private, max-age=3600")
	_, _ = w.Write(snap.Banner)
}

func (s *Server) handleListMemorials(w http.ResponseWriter, r *http.Request) {
	items := s.store.Search(r.URL.Query().Get("q"))
	writeJSON(w, http.StatusOK, items)
}

type addMemorialRequest struct {
	Name string `json:"name"`
	Date string `json:"date"`
}

// handleAddMemorial accepts JSON or a form post. An empty name or date is a
// silent no-op (204). Forms carrying a local "redirect" field are answered
// with 303 so the page can post without script.
func (s *Server) handleAddMemorial(w http.ResponseWriter, r *http.Request) {
	var req addMemorialRequest
	if isJSON(r) {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
	} else {
		if err := r.ParseForm(); err != nil {
			writeError(w, http.StatusBadRequest, "invalid form body")
			return
		}
		req.Name = r.PostForm.Get("name")
		req.Date = r.PostForm.Get("date")
	}

	if date := strings.TrimSpace(req.Date); date != "" {
		if _, err := datemath.ParseDate(date); err != nil {
			writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD or MM-DD")
			return
		}
	}

	m, ok, err := s.store.Add(r.Context(), req.Name, req.Date)
	if err != nil {
		appLog.Error("add memorial failed", err)
		writeError(w, http.StatusInternalServerError, "failed to save memorial day")
		return
	}
	if redirectAfterForm(w, r) {
		return
	}
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (s *Server) handleDeleteMemorial(w http.ResponseWriter, r *http.Request) {
	if _, err := s.store.Remove(r.Context(), r.PathValue("id")); err != nil {
		appLog.Error("remove memorial failed", err, "id", r.PathValue("id"))
		writeError(w, http.StatusInternalServerError, "failed to save memorial days")
		return
	}
	if redirectAfterForm(w, r) {
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleNearest(w http.ResponseWriter, r *http.Request) {
	count := parseIntDefault(r.URL.Query().Get("count"), s.cfg.CountdownCount)
	if count <= 0 {
		count = s.cfg.CountdownCount
	}
	writeJSON(w, http.StatusOK, s.store.ListNearest(s.daily.Today(), count))
}

func (s *Server) handleUpcoming(w http.ResponseWriter, r *http.Request) {
	m, ok := s.store.Get(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "memorial day not found")
		return
	}

	n := parseIntDefault(r.URL.Query().Get("n"), 5)
	out, err := ics.Upcoming(s.daily.Today(), m, n)
	if err != nil {
		if errors.Is(err, datemath.ErrInvalidDate) {
			writeError(w, http.StatusUnprocessableEntity, "stored date is malformed")
			return
		}
		appLog.Error("upcoming expansion failed", err, "id", m.ID)
		writeError(w, http.StatusInternalServerError, "failed to expand occurrences")
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleExportICS(w http.ResponseWriter, _ *http.Request) {
	body := ics.ExportMemorials(s.store.List(), s.daily.Today())
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="memorials.ics"`)
	_, _ = io.WriteString(w, body)
}

type importResponse struct {
	Imported []model.MemorialDay `json:"imported"`
	Skipped  int                 `json:"skipped"`
}

// handleImportICS reads an ICS document (raw body or multipart "file"
// field) and appends its events as memorial days.
func (s *Server) handleImportICS(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImportBytes)

	var body []byte
	var err error
	if ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); ct == "multipart/form-data" {
		f, _, ferr := r.FormFile("file")
		if ferr != nil {
			writeError(w, http.StatusBadRequest, "missing file field")
			return
		}
		defer f.Close()
		body, err = io.ReadAll(f)
	} else {
		body, err = io.ReadAll(r.Body)
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}

	parsed, err := ics.ParseMemorials(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	valid := make([]model.MemorialDay, 0, len(parsed))
	for _, m := range parsed {
		if _, err := datemath.ParseDate(m.Date); err != nil {
			continue
		}
		valid = append(valid, m)
	}

	added, err := s.store.Import(r.Context(), valid)
	if err != nil {
		appLog.Error("import memorials failed", err)
		writeError(w, http.StatusInternalServerError, "failed to save memorial days")
		return
	}
	if redirectAfterForm(w, r) {
		return
	}
	writeJSON(w, http.StatusOK, importResponse{Imported: added, Skipped: len(parsed) - len(added)})
}

// CapturePoster renders today's poster document and rasterizes it with
// headless Chromium. It returns daily.ErrNotReady before the first
// successful refresh and capture.ErrCaptureInFlight while another capture
// runs.
func (s *Server) CapturePoster(ctx context.Context) ([]byte, error) {
	snap := s.daily.Snapshot()
	if !snap.Ready() {
		return nil, daily.ErrNotReady
	}

	html, err := s.pages.renderPoster(s.posterData(snap))
	if err != nil {
		return nil, fmt.Errorf("web: render poster: %w", err)
	}
	return s.poster.Capture(ctx, html)
}

func (s *Server) handleCapturePoster(w http.ResponseWriter, r *http.Request) {
	png, err := s.CapturePoster(r.Context())
	switch {
	case errors.Is(err, daily.ErrNotReady):
		writeError(w, http.StatusServiceUnavailable, "daily data not ready")
		return
	case errors.Is(err, capture.ErrCaptureInFlight):
		writeError(w, http.StatusConflict, "poster capture already in progress")
		return
	case err != nil:
		appLog.Error("poster request failed", err)
		writeError(w, http.StatusInternalServerError, "poster capture failed")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Disposition", `inline; filename="aura-poster.png"`)
	_, _ = w.Write(png)
}

func isJSON(r *http.Request) bool {
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return ct == "application/json"
}

// redirectAfterForm answers a form post with 303 when it names a local
// redirect target. It reports whether a response was written.
func redirectAfterForm(w http.ResponseWriter, r *http.Request) bool {
	if isJSON(r) {
		return false
	}
	target := r.FormValue("redirect")
	if !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") {
		return false
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
	return true
}
