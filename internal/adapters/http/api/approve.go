// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ApproveHandler handles out-of-band approval submissions.
type ApproveHandler struct {
	deps Dependencies
}

// NewApproveHandler creates a new approval handler.
func NewApproveHandler(deps Dependencies) *ApproveHandler {
	return &ApproveHandler{deps: deps}
}

// approveRequest mirrors the POST /api/approveUser body.
type approveRequest struct {
	Candidate string   `json:"candidate"`
	Nickname  string   `json:"nickname"`
	Link      string   `json:"link"`
	Approvers []string `json:"approvers"`
}

func (a approveRequest) validate() error {
	switch {
	case strings.TrimSpace(a.Candidate) == "":
		return errors.New("missing candidate")
	case strings.TrimSpace(a.Nickname) == "":
		return errors.New("missing nickname")
	case strings.TrimSpace(a.Link) == "":
		return errors.New("missing link")
	case a.Approvers == nil:
		return errors.New("approvers must be an array")
	}
	return nil
}

// HandleApproveUser handles POST /api/approveUser requests.
func (h *ApproveHandler) HandleApproveUser(w http.ResponseWriter, r *http.Request) {
	const op = "api.approve_user"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req approveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("%s: %w: %w", op, ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("%s: %w: %w", op, ErrBadRequest, err))
		return
	}

	if err := h.deps.ApproveUser(r.Context(), req.Candidate, req.Nickname, req.Link, req.Approvers); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Errorf("%s: %w", op, ErrStore))
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: "success"})
}
