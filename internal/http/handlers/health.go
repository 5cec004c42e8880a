package handlers

import (
	"net/http"
)

// Health reports liveness. It deliberately never touches the backend
// queue or the database: a slow edit job must not fail the probe.
func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"history": a.History != nil,
	})
}
