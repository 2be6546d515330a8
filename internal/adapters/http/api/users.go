// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"net/http"
	"sort"
)

// UsersHandler handles connected-user listing requests.
type UsersHandler struct {
	deps Dependencies
}

// NewUsersHandler creates a new users handler.
func NewUsersHandler(deps Dependencies) *UsersHandler {
	return &UsersHandler{deps: deps}
}

// usersResponse mirrors the GET /users body.
type usersResponse struct {
	Users []string `json:"users"`
}

// HandleGetUsers handles GET /users requests.
func (h *UsersHandler) HandleGetUsers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	users := h.deps.ConnectedWallets()
	sort.Strings(users)
	if users == nil {
		users = []string{}
	}
	writeJSON(w, http.StatusOK, usersResponse{Users: users})
}
