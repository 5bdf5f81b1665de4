package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"

	"github.com/P8labs/foxd/internal/presence"
	"github.com/P8labs/foxd/internal/sqlcgen"
)

type device struct {
	ID         int64     `json:"id"`
	MACAddress string    `json:"mac_address"`
	IPAddress  *string   `json:"ip_address"`
	Hostname   *string   `json:"hostname"`
	Nickname   *string   `json:"nickname"`
	Vendor     *string   `json:"vendor"`
	FirstSeen  time.Time `json:"first_seen"`
	LastSeen   time.Time `json:"last_seen"`
	Status     string    `json:"status"`
}

func toDevice(d sqlcgen.Device) device {
	return device{
		ID:         d.ID,
		MACAddress: d.MACAddress,
		IPAddress:  d.IPAddress,
		Hostname:   d.Hostname,
		Nickname:   d.Nickname,
		Vendor:     d.Vendor,
		FirstSeen:  d.FirstSeen,
		LastSeen:   d.LastSeen,
		Status:     string(d.Status),
	}
}

type updateNicknameRequest struct {
	Nickname *string `json:"nickname"`
}

func (h *Handler) handleListDevices(w http.ResponseWriter, r *http.Request) {
	if h.devices == nil {
		h.writeDBUnavailable(w)
		return
	}

	rows, err := h.devices.ListDevices(r.Context())
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "db_error", "failed to list devices", nil)
		return
	}

	out := make([]device, 0, len(rows))
	for _, d := range rows {
		out = append(out, toDevice(d))
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"devices": out})
}

func (h *Handler) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	if h.devices == nil {
		h.writeDBUnavailable(w)
		return
	}

	mac := presence.NormalizeMAC(chi.URLParam(r, "mac"))
	d, err := h.devices.GetDeviceByMAC(r.Context(), mac)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			h.writeError(w, http.StatusNotFound, "not_found", "device not found", nil)
			return
		}
		h.writeError(w, http.StatusInternalServerError, "db_error", "failed to get device", nil)
		return
	}
	h.writeJSON(w, http.StatusOK, toDevice(d))
}

func (h *Handler) handleUpdateNickname(w http.ResponseWriter, r *http.Request) {
	if h.devices == nil {
		h.writeDBUnavailable(w)
		return
	}

	var req updateNicknameRequest
	if err := decodeJSONStrict(r, &req); err != nil {
		h.writeInvalidBody(w, err)
		return
	}

	// Blank clears the nickname.
	if req.Nickname != nil {
		trimmed := strings.TrimSpace(*req.Nickname)
		if trimmed == "" {
			req.Nickname = nil
		} else if len(trimmed) > 128 {
			h.writeError(w, http.StatusBadRequest, "validation_failed", "nickname must be at most 128 characters", nil)
			return
		} else {
			req.Nickname = &trimmed
		}
	}

	mac := presence.NormalizeMAC(chi.URLParam(r, "mac"))
	d, err := h.devices.UpdateDeviceNickname(r.Context(), sqlcgen.UpdateDeviceNicknameParams{
		MACAddress: mac,
		Nickname:   req.Nickname,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			h.writeError(w, http.StatusNotFound, "not_found", "device not found", nil)
			return
		}
		h.writeError(w, http.StatusInternalServerError, "db_error", "failed to update device", nil)
		return
	}
	h.writeJSON(w, http.StatusOK, toDevice(d))
}
