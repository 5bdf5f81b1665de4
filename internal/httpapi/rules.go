package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"

	"github.com/P8labs/foxd/internal/sqlcgen"
)

type rule struct {
	ID                   int64     `json:"id"`
	Name                 string    `json:"name"`
	Description          *string   `json:"description"`
	TriggerType          string    `json:"trigger_type"`
	MACFilter            *string   `json:"mac_filter"`
	Enabled              bool      `json:"enabled"`
	NotificationChannels []string  `json:"notification_channels"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

func toRule(r sqlcgen.Rule) rule {
	channels := r.NotificationChannels
	if channels == nil {
		channels = []string{}
	}
	return rule{
		ID:                   r.ID,
		Name:                 r.Name,
		Description:          r.Description,
		TriggerType:          string(r.TriggerType),
		MACFilter:            r.MACFilter,
		Enabled:              r.Enabled,
		NotificationChannels: channels,
		CreatedAt:            r.CreatedAt,
		UpdatedAt:            r.UpdatedAt,
	}
}

type ruleRequest struct {
	Name                 string   `json:"name"`
	Description          *string  `json:"description"`
	TriggerType          string   `json:"trigger_type"`
	MACFilter            *string  `json:"mac_filter"`
	Enabled              *bool    `json:"enabled"`
	NotificationChannels []string `json:"notification_channels"`
}

// params validates the request. Enabled defaults to true.
func (req ruleRequest) params() (sqlcgen.RuleParams, map[string]any) {
	problems := map[string]any{}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		problems["name"] = "required"
	}
	trigger, err := sqlcgen.ParseTriggerType(strings.TrimSpace(req.TriggerType))
	if err != nil {
		problems["trigger_type"] = err.Error()
	}

	var macFilter *string
	if req.MACFilter != nil {
		if v := strings.TrimSpace(*req.MACFilter); v != "" {
			macFilter = &v
		}
	}

	channels := make([]string, 0, len(req.NotificationChannels))
	for _, c := range req.NotificationChannels {
		c = strings.TrimSpace(c)
		if c == "" {
			problems["notification_channels"] = "channel names must not be blank"
			continue
		}
		channels = append(channels, c)
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	if len(problems) > 0 {
		return sqlcgen.RuleParams{}, problems
	}
	return sqlcgen.RuleParams{
		Name:                 name,
		Description:          req.Description,
		TriggerType:          trigger,
		MACFilter:            macFilter,
		Enabled:              enabled,
		NotificationChannels: channels,
	}, nil
}

func parseID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func (h *Handler) writeInvalidID(w http.ResponseWriter) {
	h.writeError(w, http.StatusBadRequest, "validation_failed", "id must be a positive integer", nil)
}

func (h *Handler) handleListRules(w http.ResponseWriter, r *http.Request) {
	if h.rules == nil {
		h.writeDBUnavailable(w)
		return
	}

	rows, err := h.rules.ListRules(r.Context())
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "db_error", "failed to list rules", nil)
		return
	}

	out := make([]rule, 0, len(rows))
	for _, rr := range rows {
		out = append(out, toRule(rr))
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"rules": out})
}

func (h *Handler) handleGetRule(w http.ResponseWriter, r *http.Request) {
	if h.rules == nil {
		h.writeDBUnavailable(w)
		return
	}
	id, ok := parseID(r)
	if !ok {
		h.writeInvalidID(w)
		return
	}

	rr, err := h.rules.GetRule(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			h.writeError(w, http.StatusNotFound, "not_found", "rule not found", nil)
			return
		}
		h.writeError(w, http.StatusInternalServerError, "db_error", "failed to get rule", nil)
		return
	}
	h.writeJSON(w, http.StatusOK, toRule(rr))
}

func (h *Handler) handleCreateRule(w http.ResponseWriter, r *http.Request) {
	if h.rules == nil {
		h.writeDBUnavailable(w)
		return
	}

	var req ruleRequest
	if err := decodeJSONStrict(r, &req); err != nil {
		h.writeInvalidBody(w, err)
		return
	}
	params, problems := req.params()
	if problems != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "invalid rule", problems)
		return
	}

	created, err := h.rules.CreateRule(r.Context(), params)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "db_error", "failed to create rule", nil)
		return
	}
	h.writeJSON(w, http.StatusCreated, toRule(created))
}

func (h *Handler) handleUpdateRule(w http.ResponseWriter, r *http.Request) {
	if h.rules == nil {
		h.writeDBUnavailable(w)
		return
	}
	id, ok := parseID(r)
	if !ok {
		h.writeInvalidID(w)
		return
	}

	var req ruleRequest
	if err := decodeJSONStrict(r, &req); err != nil {
		h.writeInvalidBody(w, err)
		return
	}
	params, problems := req.params()
	if problems != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "invalid rule", problems)
		return
	}

	updated, err := h.rules.UpdateRule(r.Context(), id, params)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			h.writeError(w, http.StatusNotFound, "not_found", "rule not found", nil)
			return
		}
		h.writeError(w, http.StatusInternalServerError, "db_error", "failed to update rule", nil)
		return
	}
	h.writeJSON(w, http.StatusOK, toRule(updated))
}

func (h *Handler) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	if h.rules == nil {
		h.writeDBUnavailable(w)
		return
	}
	id, ok := parseID(r)
	if !ok {
		h.writeInvalidID(w)
		return
	}

	n, err := h.rules.DeleteRule(r.Context(), id)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "db_error", "failed to delete rule", nil)
		return
	}
	if n == 0 {
		h.writeError(w, http.StatusNotFound, "not_found", "rule not found", nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
