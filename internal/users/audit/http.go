// Copyright (c) 2026 Ace Job Agency. All rights reserved.
// Author: platform@acejobs.sg

package audit

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/acejobs/portal/internal/platform/request"
	"github.com/acejobs/portal/internal/platform/respond"
	"github.com/acejobs/portal/pkg/pagination"
)

// Handler exposes the account activity trail over HTTP.
type Handler struct {
	store Store
}

// NewHandler creates the audit HTTP handler.
func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

// RegisterRoutes mounts the activity endpoints. The router passed in must
// already enforce authentication.
func (handler *Handler) RegisterRoutes(router chi.Router) {
	router.Get("/activity", handler.listActivity)
}

// listActivity returns a page of the caller's own activity trail.
func (handler *Handler) listActivity(writer http.ResponseWriter, httpRequest *http.Request) {
	identity, err := request.Identity(httpRequest)
	if err != nil {
		respond.Error(writer, httpRequest, err)
		return
	}

	params := pagination.FromRequest(httpRequest)

	entries, total, err := handler.store.ListByMember(httpRequest.Context(), identity.MemberID, params)
	if err != nil {
		respond.Error(writer, httpRequest, err)
		return
	}

	respond.Paginated(writer, entries, pagination.NewMeta(params.Page, params.Limit, total))
}
