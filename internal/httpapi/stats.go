package httpapi

import (
	"net/http"
	"time"

	"github.com/P8labs/foxd/internal/sqlcgen"
)

type stats struct {
	TotalDevices      int64  `json:"total_devices"`
	OnlineDevices     int64  `json:"online_devices"`
	OfflineDevices    int64  `json:"offline_devices"`
	TotalRules        int64  `json:"total_rules"`
	EnabledRules      int64  `json:"enabled_rules"`
	PacketsCaptured   uint64 `json:"packets_captured"`
	NotificationsSent uint64 `json:"notifications_sent"`
	UptimeSeconds     int64  `json:"uptime_seconds"`
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	if h.stats == nil {
		h.writeDBUnavailable(w)
		return
	}
	ctx := r.Context()

	var (
		out stats
		err error
	)
	if out.TotalDevices, err = h.stats.CountDevices(ctx); err != nil {
		h.writeError(w, http.StatusInternalServerError, "db_error", "failed to count devices", nil)
		return
	}
	if out.OnlineDevices, err = h.stats.CountDevicesByStatus(ctx, sqlcgen.DeviceStatusOnline); err != nil {
		h.writeError(w, http.StatusInternalServerError, "db_error", "failed to count devices", nil)
		return
	}
	if out.OfflineDevices, err = h.stats.CountDevicesByStatus(ctx, sqlcgen.DeviceStatusOffline); err != nil {
		h.writeError(w, http.StatusInternalServerError, "db_error", "failed to count devices", nil)
		return
	}
	if out.TotalRules, err = h.stats.CountRules(ctx); err != nil {
		h.writeError(w, http.StatusInternalServerError, "db_error", "failed to count rules", nil)
		return
	}
	if out.EnabledRules, err = h.stats.CountEnabledRules(ctx); err != nil {
		h.writeError(w, http.StatusInternalServerError, "db_error", "failed to count rules", nil)
		return
	}

	out.PacketsCaptured = h.metrics.PacketsCaptured()
	out.NotificationsSent = h.metrics.NotificationsSent()
	out.UptimeSeconds = int64(time.Since(h.startedAt).Seconds())

	h.writeJSON(w, http.StatusOK, out)
}
