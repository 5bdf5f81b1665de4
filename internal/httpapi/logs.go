package httpapi

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/P8labs/foxd/internal/sqlcgen"
)

const (
	defaultLogLimit = 100
	maxLogLimit     = 1000
)

type logEntry struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"`
	Category  string    `json:"category"`
	Message   string    `json:"message"`
	Details   *string   `json:"details"`
}

func (h *Handler) handleListLogs(w http.ResponseWriter, r *http.Request) {
	if h.logs == nil {
		h.writeDBUnavailable(w)
		return
	}

	params := sqlcgen.ListLogsParams{Limit: defaultLogLimit}
	q := r.URL.Query()

	if raw := strings.TrimSpace(q.Get("limit")); raw != "" {
		limit, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || limit <= 0 || limit > maxLogLimit {
			h.writeError(w, http.StatusBadRequest, "validation_failed", "limit must be between 1 and 1000", nil)
			return
		}
		params.Limit = limit
	}

	if raw := strings.ToLower(strings.TrimSpace(q.Get("level"))); raw != "" {
		level := sqlcgen.LogLevel(raw)
		switch level {
		case sqlcgen.LogLevelInfo, sqlcgen.LogLevelWarning, sqlcgen.LogLevelError, sqlcgen.LogLevelDebug:
			params.Level = &level
		default:
			h.writeError(w, http.StatusBadRequest, "validation_failed", "invalid level", map[string]any{"level": raw})
			return
		}
	}

	rows, err := h.logs.ListLogs(r.Context(), params)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "db_error", "failed to list logs", nil)
		return
	}

	out := make([]logEntry, 0, len(rows))
	for _, l := range rows {
		out = append(out, logEntry{
			ID:        l.ID,
			Timestamp: l.Timestamp,
			Level:     string(l.Level),
			Category:  l.Category,
			Message:   l.Message,
			Details:   l.Details,
		})
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"logs": out})
}
