package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/P8labs/foxd/internal/notify"
	"github.com/P8labs/foxd/internal/sqlcgen"
)

type channel struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	ChannelType string          `json:"channel_type"`
	Target      string          `json:"target,omitempty"`
	Config      json.RawMessage `json:"config"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// toChannel reports Target, the name rules reference, when the stored config
// still decodes.
func toChannel(c sqlcgen.NotificationChannel) channel {
	out := channel{
		ID:          c.ID,
		Name:        c.Name,
		ChannelType: c.ChannelType,
		Config:      json.RawMessage(c.Config),
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
	if len(out.Config) == 0 {
		out.Config = json.RawMessage("{}")
	}
	if decoded, err := notify.FromRow(c); err == nil {
		out.Target = decoded.Name()
	}
	return out
}

type channelRequest struct {
	Name   string          `json:"name"`
	Config json.RawMessage `json:"config"`
}

func (req channelRequest) params() (sqlcgen.NotificationChannelParams, map[string]any) {
	if len(req.Config) == 0 {
		return sqlcgen.NotificationChannelParams{}, map[string]any{"config": "required"}
	}
	c, err := notify.DecodeChannel(req.Config)
	if err != nil {
		return sqlcgen.NotificationChannelParams{}, map[string]any{"config": err.Error()}
	}
	if err := notify.Validate(c); err != nil {
		return sqlcgen.NotificationChannelParams{}, map[string]any{"config": err.Error()}
	}
	raw, err := notify.EncodeChannel(c)
	if err != nil {
		return sqlcgen.NotificationChannelParams{}, map[string]any{"config": err.Error()}
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = c.Name()
	}
	return sqlcgen.NotificationChannelParams{
		Name:        name,
		ChannelType: c.Type(),
		Config:      raw,
	}, nil
}

// reloadChannels refreshes the dispatcher after a committed mutation. A
// failure leaves the previous table in place and is only logged.
func (h *Handler) reloadChannels(ctx context.Context) {
	if h.reloader == nil || h.channels == nil {
		return
	}
	n, err := h.reloader.Reload(ctx, h.channels)
	if err != nil {
		h.log.Warn().Err(err).Msg("reload notification channels failed")
		return
	}
	h.log.Debug().Int("channels", n).Msg("notification channels reloaded")
}

func (h *Handler) handleListChannels(w http.ResponseWriter, r *http.Request) {
	if h.channels == nil {
		h.writeDBUnavailable(w)
		return
	}

	rows, err := h.channels.ListNotificationChannels(r.Context())
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "db_error", "failed to list channels", nil)
		return
	}

	out := make([]channel, 0, len(rows))
	for _, c := range rows {
		out = append(out, toChannel(c))
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"channels": out})
}

func (h *Handler) handleGetChannel(w http.ResponseWriter, r *http.Request) {
	if h.channels == nil {
		h.writeDBUnavailable(w)
		return
	}
	id, ok := parseID(r)
	if !ok {
		h.writeInvalidID(w)
		return
	}

	c, err := h.channels.GetNotificationChannel(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			h.writeError(w, http.StatusNotFound, "not_found", "channel not found", nil)
			return
		}
		h.writeError(w, http.StatusInternalServerError, "db_error", "failed to get channel", nil)
		return
	}
	h.writeJSON(w, http.StatusOK, toChannel(c))
}

func (h *Handler) handleCreateChannel(w http.ResponseWriter, r *http.Request) {
	if h.channels == nil {
		h.writeDBUnavailable(w)
		return
	}

	var req channelRequest
	if err := decodeJSONStrict(r, &req); err != nil {
		h.writeInvalidBody(w, err)
		return
	}
	params, problems := req.params()
	if problems != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "invalid channel", problems)
		return
	}

	created, err := h.channels.CreateNotificationChannel(r.Context(), params)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "db_error", "failed to create channel", nil)
		return
	}
	h.reloadChannels(r.Context())
	h.writeJSON(w, http.StatusCreated, toChannel(created))
}

func (h *Handler) handleUpdateChannel(w http.ResponseWriter, r *http.Request) {
	if h.channels == nil {
		h.writeDBUnavailable(w)
		return
	}
	id, ok := parseID(r)
	if !ok {
		h.writeInvalidID(w)
		return
	}

	var req channelRequest
	if err := decodeJSONStrict(r, &req); err != nil {
		h.writeInvalidBody(w, err)
		return
	}
	params, problems := req.params()
	if problems != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "invalid channel", problems)
		return
	}

	updated, err := h.channels.UpdateNotificationChannel(r.Context(), id, params)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			h.writeError(w, http.StatusNotFound, "not_found", "channel not found", nil)
			return
		}
		h.writeError(w, http.StatusInternalServerError, "db_error", "failed to update channel", nil)
		return
	}
	h.reloadChannels(r.Context())
	h.writeJSON(w, http.StatusOK, toChannel(updated))
}

func (h *Handler) handleDeleteChannel(w http.ResponseWriter, r *http.Request) {
	if h.channels == nil {
		h.writeDBUnavailable(w)
		return
	}
	id, ok := parseID(r)
	if !ok {
		h.writeInvalidID(w)
		return
	}

	n, err := h.channels.DeleteNotificationChannel(r.Context(), id)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "db_error", "failed to delete channel", nil)
		return
	}
	if n == 0 {
		h.writeError(w, http.StatusNotFound, "not_found", "channel not found", nil)
		return
	}
	h.reloadChannels(r.Context())
	w.WriteHeader(http.StatusNoContent)
}
