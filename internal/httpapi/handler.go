package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/P8labs/foxd/internal/db"
	"github.com/P8labs/foxd/internal/metrics"
	"github.com/P8labs/foxd/internal/notify"
	"github.com/P8labs/foxd/internal/sqlcgen"
)

type DeviceQueries interface {
	ListDevices(ctx context.Context) ([]sqlcgen.Device, error)
	GetDeviceByMAC(ctx context.Context, mac string) (sqlcgen.Device, error)
	UpdateDeviceNickname(ctx context.Context, arg sqlcgen.UpdateDeviceNicknameParams) (sqlcgen.Device, error)
}

type RuleQueries interface {
	ListRules(ctx context.Context) ([]sqlcgen.Rule, error)
	GetRule(ctx context.Context, id int64) (sqlcgen.Rule, error)
	CreateRule(ctx context.Context, arg sqlcgen.RuleParams) (sqlcgen.Rule, error)
	UpdateRule(ctx context.Context, id int64, arg sqlcgen.RuleParams) (sqlcgen.Rule, error)
	DeleteRule(ctx context.Context, id int64) (int64, error)
}

type ChannelQueries interface {
	ListNotificationChannels(ctx context.Context) ([]sqlcgen.NotificationChannel, error)
	GetNotificationChannel(ctx context.Context, id int64) (sqlcgen.NotificationChannel, error)
	CreateNotificationChannel(ctx context.Context, arg sqlcgen.NotificationChannelParams) (sqlcgen.NotificationChannel, error)
	UpdateNotificationChannel(ctx context.Context, id int64, arg sqlcgen.NotificationChannelParams) (sqlcgen.NotificationChannel, error)
	DeleteNotificationChannel(ctx context.Context, id int64) (int64, error)
}

type LogQueries interface {
	ListLogs(ctx context.Context, arg sqlcgen.ListLogsParams) ([]sqlcgen.LogEntry, error)
}

type StatsQueries interface {
	CountDevices(ctx context.Context) (int64, error)
	CountDevicesByStatus(ctx context.Context, status sqlcgen.DeviceStatus) (int64, error)
	CountRules(ctx context.Context) (int64, error)
	CountEnabledRules(ctx context.Context) (int64, error)
}

// ChannelReloader swaps the dispatcher's channel table after a channel
// mutation. *notify.Dispatcher satisfies it.
type ChannelReloader interface {
	Reload(ctx context.Context, store notify.ChannelLister) (int, error)
}

type Options struct {
	Metrics   *metrics.Metrics
	Reloader  ChannelReloader
	StartedAt time.Time
	// System defaults to gopsutil host sampling.
	System func(ctx context.Context) SystemUsage
}

type Handler struct {
	log       zerolog.Logger
	pool      *db.Pool
	metrics   *metrics.Metrics
	reloader  ChannelReloader
	startedAt time.Time
	system    func(ctx context.Context) SystemUsage

	devices  DeviceQueries
	rules    RuleQueries
	channels ChannelQueries
	logs     LogQueries
	stats    StatsQueries
}

func NewHandler(log zerolog.Logger, pool *db.Pool, opts Options) *Handler {
	if opts.StartedAt.IsZero() {
		opts.StartedAt = time.Now()
	}
	if opts.System == nil {
		opts.System = sampleSystem
	}
	h := &Handler{
		log:       log.With().Str("component", "httpapi").Logger(),
		pool:      pool,
		metrics:   opts.Metrics,
		reloader:  opts.Reloader,
		startedAt: opts.StartedAt,
		system:    opts.System,
	}
	if q := pool.Queries(); q != nil {
		h.devices = q
		h.rules = q
		h.channels = q
		h.logs = q
		h.stats = q
	}
	return h
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(echoRequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(15 * time.Second))
	r.Use(h.accessLog)

	// Health
	r.Get("/healthz", h.handleHealthz)
	r.Get("/readyz", h.handleReadyZ)
	r.Method(http.MethodGet, "/metrics", h.metrics.Handler())

	// API
	r.Route("/api", func(r chi.Router) {
		r.Route("/v1", func(r chi.Router) {
			r.Route("/devices", func(r chi.Router) {
				r.Get("/", h.handleListDevices)
				r.Route("/{mac}", func(r chi.Router) {
					r.Get("/", h.handleGetDevice)
					r.Put("/nickname", h.handleUpdateNickname)
				})
			})

			r.Route("/rules", func(r chi.Router) {
				r.Get("/", h.handleListRules)
				r.Post("/", h.handleCreateRule)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", h.handleGetRule)
					r.Put("/", h.handleUpdateRule)
					r.Delete("/", h.handleDeleteRule)
				})
			})

			r.Route("/channels", func(r chi.Router) {
				r.Get("/", h.handleListChannels)
				r.Post("/", h.handleCreateChannel)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", h.handleGetChannel)
					r.Put("/", h.handleUpdateChannel)
					r.Delete("/", h.handleDeleteChannel)
				})
			})

			r.Get("/logs", h.handleListLogs)
			r.Get("/stats", h.handleStats)
		})
	})

	return r
}

// echoRequestID returns the request id, upstream or generated, to the caller.
func echoRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := middleware.GetReqID(r.Context()); id != "" {
			w.Header().Set(middleware.RequestIDHeader, id)
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		elapsed := time.Since(start)

		// Route patterns keep metric label cardinality bounded.
		path := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if p := rc.RoutePattern(); p != "" {
				path = p
			}
		}
		h.metrics.ObserveHTTPRequest(r.Method, path, status, elapsed)

		h.log.Info().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("bytes", ww.BytesWritten()).
			Int64("duration_ms", elapsed.Milliseconds()).
			Msg("http_request")
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *Handler) writeError(w http.ResponseWriter, status int, code, msg string, details map[string]any) {
	resp := map[string]any{
		"error": map[string]any{
			"code":    code,
			"message": msg,
		},
	}
	if details != nil {
		resp["error"].(map[string]any)["details"] = details
	}
	h.writeJSON(w, status, resp)
}

func decodeJSONStrict(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return errors.New("unexpected extra data after JSON body")
		}
		return err
	}
	return nil
}

func (h *Handler) writeInvalidBody(w http.ResponseWriter, err error) {
	h.writeError(w, http.StatusBadRequest, "validation_failed", "invalid json body", map[string]any{"error": err.Error()})
}

func (h *Handler) writeDBUnavailable(w http.ResponseWriter) {
	h.writeError(w, http.StatusServiceUnavailable, "db_unavailable", "database not configured", nil)
}

func (h *Handler) handleHealthz(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"service":        "foxd",
		"uptime_seconds": int64(time.Since(h.startedAt).Seconds()),
		"system":         h.system(r.Context()),
	})
}

func (h *Handler) handleReadyZ(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if h.pool == nil {
		h.writeDBUnavailable(w)
		return
	}

	if err := h.pool.Ping(ctx); err != nil {
		h.writeError(w, http.StatusServiceUnavailable, "db_unavailable", "database not ready", map[string]any{"error": err.Error()})
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"ready": true})
}
