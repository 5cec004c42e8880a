package handlers

import (
	"encoding/json"
	"net/http"

	"qwenedit/internal/edit"
	"qwenedit/internal/history"
	"qwenedit/internal/infra"
)

// App bundles the handler dependencies.
type App struct {
	Pipeline *edit.Pipeline
	Batch    *edit.Batch
	History  *history.Store
	Logger   infra.Logger

	// MaxBatchItems caps one batch request.
	MaxBatchItems int
}

func NewApp(pipeline *edit.Pipeline, batch *edit.Batch, logger infra.Logger) *App {
	return &App{Pipeline: pipeline, Batch: batch, Logger: logger, MaxBatchItems: 32}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, msg string) {
	a.json(w, code, map[string]string{"error": msg})
}
