package httpapi

import (
	"context"
	"errors"
	"net/http"
	"net/netip"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/hamed0406/sitewatch/internal/domain"
	apimw "github.com/hamed0406/sitewatch/internal/httpapi/middleware"
	"github.com/hamed0406/sitewatch/internal/report"
)

// Reporter is the part of report.Engine the API needs.
type Reporter interface {
	ReportFor(ctx context.Context, day time.Time) (domain.DailyReport, error)
	WriteReport(ctx context.Context, day time.Time) (string, domain.DailyReport, error)
	Location() *time.Location
}

// StatusSource exposes the last known status of a target.
type StatusSource interface {
	Last(target domain.TargetID) (domain.Status, bool)
}

type Server struct {
	Logger  *zap.Logger
	Targets []domain.TargetID
	Status  StatusSource
	Reports Reporter
	Metrics http.Handler

	now func() time.Time
}

func NewServer(l *zap.Logger, targets []domain.TargetID, status StatusSource, reports Reporter, metrics http.Handler) *Server {
	return &Server{Logger: l, Targets: targets, Status: status, Reports: reports, Metrics: metrics, now: time.Now}
}

type RouterOptions struct {
	Keys           apimw.Keys
	AllowedOrigins []string // empty allows any origin
	RatePerMin     int
	Burst          int
	TrustedProxies []netip.Prefix
}

func (s *Server) Router(opt RouterOptions) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	if len(opt.AllowedOrigins) == 0 {
		r.Use(cors.AllowAll().Handler)
	} else {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: opt.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "Content-Type", "X-API-Key"},
			MaxAge:         300,
		}))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if s.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.Metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(apimw.RateLimit(opt.RatePerMin, opt.Burst, opt.TrustedProxies))
		r.Use(apimw.RequireRead(opt.Keys))

		r.Get("/targets", s.handleListTargets)
		r.Get("/reports/{date}", s.handleGetReport)
		r.With(apimw.RequireWrite(opt.Keys)).Post("/reports/{date}", s.handleWriteReport)
	})
	return r
}

type targetView struct {
	Target     domain.TargetID `json:"target"`
	LastStatus string          `json:"last_status,omitempty"`
}

func (s *Server) handleListTargets(w http.ResponseWriter, r *http.Request) {
	out := make([]targetView, 0, len(s.Targets))
	for _, t := range s.Targets {
		v := targetView{Target: t}
		if s.Status != nil {
			if st, ok := s.Status.Last(t); ok {
				v.LastStatus = st.String()
			}
		}
		out = append(out, v)
	}
	writeJSON(w, http.StatusOK, out)
}

type reportView struct {
	Date string                  `json:"date"`
	Rows []domain.DailyReportRow `json:"rows"`
	Path string                  `json:"path,omitempty"`
}

func (s *Server) day(w http.ResponseWriter, r *http.Request) (time.Time, bool) {
	day, err := report.ParseDate(chi.URLParam(r, "date"), s.now(), s.Reports.Location())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return time.Time{}, false
	}
	return day, true
}

func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	day, ok := s.day(w, r)
	if !ok {
		return
	}
	rep, err := s.Reports.ReportFor(r.Context(), day)
	if err != nil {
		s.reportError(w, day, err)
		return
	}
	writeJSON(w, http.StatusOK, reportView{Date: report.FormatDate(rep.Date), Rows: rep.Rows})
}

func (s *Server) handleWriteReport(w http.ResponseWriter, r *http.Request) {
	day, ok := s.day(w, r)
	if !ok {
		return
	}
	path, rep, err := s.Reports.WriteReport(r.Context(), day)
	if err != nil {
		s.reportError(w, day, err)
		return
	}
	s.Logger.Info("api_report_written", zap.String("date", report.FormatDate(day)), zap.String("path", path))
	writeJSON(w, http.StatusCreated, reportView{Date: report.FormatDate(rep.Date), Rows: rep.Rows, Path: path})
}

func (s *Server) reportError(w http.ResponseWriter, day time.Time, err error) {
	if errors.Is(err, report.ErrNoData) {
		writeError(w, http.StatusNotFound, "no data")
		return
	}
	s.Logger.Error("api_report_error", zap.String("date", report.FormatDate(day)), zap.Error(err))
	writeError(w, http.StatusInternalServerError, "report failed")
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
