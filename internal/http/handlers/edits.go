package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"qwenedit/internal/edit"
	"qwenedit/internal/middleware"
)

type editResponse struct {
	Image string `json:"image"`
}

type batchRequest struct {
	Items []edit.Request `json:"items"`
}

type batchResponse struct {
	Successful int              `json:"successful"`
	Failed     int              `json:"failed"`
	Results    []map[string]any `json:"results"`
}

// CreateEdit runs one edit synchronously and returns the generated image
// as a data URI, or the error shape with a status matching the failure
// class.
func (a *App) CreateEdit(w http.ResponseWriter, r *http.Request) {
	var req edit.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "invalid payload")
		return
	}
	item, err := req.Item()
	if err != nil {
		a.error(w, http.StatusBadRequest, err.Error())
		return
	}

	outcome, err := a.Pipeline.Edit(r.Context(), item)
	if err != nil {
		a.Logger.Warn().Err(err).
			Str("request_id", middleware.RequestIDFromContext(r.Context())).
			Msg("edit request failed")
		a.error(w, statusForError(err), err.Error())
		return
	}
	a.json(w, http.StatusOK, editResponse{Image: outcome.DataURI()})
}

// CreateBatch fans a list of edit requests through the pipeline. A bad or
// failing item never fails the batch; its slot in the ordered results
// carries the error instead.
func (a *App) CreateBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if len(req.Items) == 0 {
		a.error(w, http.StatusBadRequest, "items is required")
		return
	}
	if len(req.Items) > a.MaxBatchItems {
		a.error(w, http.StatusBadRequest, fmt.Sprintf("too many items: %d (max %d)", len(req.Items), a.MaxBatchItems))
		return
	}

	outcomes := make([]edit.Outcome, len(req.Items))
	items := make([]edit.Item, 0, len(req.Items))
	positions := make([]int, 0, len(req.Items))
	for i, itemReq := range req.Items {
		item, err := itemReq.Item()
		if err != nil {
			outcomes[i] = edit.Outcome{Err: err.Error()}
			continue
		}
		items = append(items, item)
		positions = append(positions, i)
	}

	if len(items) > 0 {
		result := a.Batch.Run(r.Context(), items)
		for j, outcome := range result.Outcomes {
			outcomes[positions[j]] = outcome
		}
	}

	resp := batchResponse{Results: make([]map[string]any, len(outcomes))}
	for i, outcome := range outcomes {
		if outcome.Success {
			resp.Successful++
			resp.Results[i] = map[string]any{"image": outcome.DataURI()}
		} else {
			resp.Failed++
			resp.Results[i] = map[string]any{"error": outcome.Err}
		}
	}
	a.json(w, http.StatusOK, resp)
}

// statusForError maps the pipeline error taxonomy onto HTTP statuses.
// Local failures are the caller's fault; everything past submission is a
// gateway problem.
func statusForError(err error) int {
	switch {
	case errors.Is(err, edit.ErrInvalidParameter),
		errors.Is(err, edit.ErrNotFound),
		errors.Is(err, edit.ErrFetch),
		errors.Is(err, edit.ErrDecode):
		return http.StatusBadRequest
	case errors.Is(err, edit.ErrTimedOut):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}
