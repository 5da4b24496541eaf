package http

import (
	"net/http"

	"github.com/math-dev-24/filevault"
)

type registerRequest struct {
	Email    string `json:"email" validate:"required"`
	Name     string `json:"name" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type issueKeyRequest struct {
	Password string `json:"password" validate:"required"`
}

type updateNameRequest struct {
	Name string `json:"name" validate:"required,max=100"`
}

type usersResponse struct {
	Users         []filevault.UserSummary `json:"users"`
	NumberOfUsers int                     `json:"number_of_users"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeBody(w, r, &req); err != nil {
		HandleError(w, r, err)
		return
	}
	if err := h.validateRequest(r, &req); err != nil {
		HandleError(w, r, err)
		return
	}

	user, err := h.service.Register(r.Context(), filevault.Registration{
		Email:    req.Email,
		Name:     req.Name,
		Password: req.Password,
	})
	if err != nil {
		HandleError(w, r, err)
		return
	}

	_ = WriteJSON(w, http.StatusCreated, user)
}

func (h *Handler) handleIssueKey(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userId")
	if err != nil {
		HandleError(w, r, err)
		return
	}

	var req issueKeyRequest
	if err := decodeBody(w, r, &req); err != nil {
		HandleError(w, r, err)
		return
	}
	if err := h.validateRequest(r, &req); err != nil {
		HandleError(w, r, err)
		return
	}

	key, err := h.service.IssueKey(r.Context(), userID, req.Password)
	if err != nil {
		HandleError(w, r, err)
		return
	}

	_ = WriteJSON(w, http.StatusCreated, key)
}

func (h *Handler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListUsers(r.Context())
	if err != nil {
		HandleError(w, r, err)
		return
	}

	_ = WriteJSON(w, http.StatusOK, usersResponse{Users: users, NumberOfUsers: len(users)})
}

func (h *Handler) handleProfile(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	profile, err := h.service.Profile(r.Context(), user)
	if err != nil {
		HandleError(w, r, err)
		return
	}

	_ = WriteJSON(w, http.StatusOK, profile)
}

func (h *Handler) handleUpdateName(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req updateNameRequest
	if err := decodeBody(w, r, &req); err != nil {
		HandleError(w, r, err)
		return
	}
	if err := h.validateRequest(r, &req); err != nil {
		HandleError(w, r, err)
		return
	}

	updated, err := h.service.UpdateName(r.Context(), user.ID, req.Name)
	if err != nil {
		HandleError(w, r, err)
		return
	}

	_ = WriteJSON(w, http.StatusOK, updated)
}
