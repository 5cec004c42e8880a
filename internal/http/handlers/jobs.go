package handlers

import (
	"net/http"
	"strconv"
)

// RecentJobs lists the latest recorded edit jobs. Only available when the
// history store is configured.
func (a *App) RecentJobs(w http.ResponseWriter, r *http.Request) {
	if a.History == nil {
		a.error(w, http.StatusNotFound, "job history not configured")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	records, err := a.History.Recent(r.Context(), limit)
	if err != nil {
		a.Logger.Error().Err(err).Msg("failed to load job history")
		a.error(w, http.StatusInternalServerError, "failed to load job history")
		return
	}
	items := make([]map[string]any, 0, len(records))
	for _, rec := range records {
		items = append(items, map[string]any{
			"job_id":      rec.JobID,
			"mode":        rec.Mode,
			"status":      rec.Status,
			"error":       rec.Error,
			"duration_ms": rec.Duration.Milliseconds(),
			"created_at":  rec.CreatedAt,
		})
	}
	a.json(w, http.StatusOK, map[string]any{"jobs": items})
}
