// Package handlers contains the HTTP handlers of the skyview API.
package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"skyview/internal/core"
	"skyview/internal/types"
	"skyview/internal/view"
)

// WidgetService is the per-client widget pipeline. widget.Registry
// satisfies it.
type WidgetService interface {
	View(ctx context.Context, clientID string) view.ViewModel
	Lookup(ctx context.Context, clientID, city string) (view.ViewModel, error)
	SetLanguage(ctx context.Context, clientID, lang string) (view.ViewModel, error)
	WatchView(ctx context.Context, clientID string) (current func() view.ViewModel, changes <-chan struct{}, stop func())
}

// LookupRequest is the body of POST /v1/lookup. The city is only checked for
// presence; the weather provider decides whether it exists.
type LookupRequest struct {
	City string `json:"city" validate:"city"`
}

// LanguageRequest is the body of PUT /v1/language.
type LanguageRequest struct {
	Language string `json:"language" validate:"required,language"`
}

// LanguageResponse is returned by GET /v1/language.
type LanguageResponse struct {
	Language  types.Language   `json:"language"`
	Supported []types.Language `json:"supported"`
	Labels    view.LabelSet    `json:"labels"`
}

// WidgetHandler maps HTTP requests onto the widget pipeline.
type WidgetHandler struct {
	service   WidgetService
	identity  *ClientIdentity
	validator *core.Validator
	logger    *slog.Logger
	upgrader  websocket.Upgrader
}

// WidgetHandlerOption configures a WidgetHandler.
type WidgetHandlerOption func(*WidgetHandler)

// WithAllowedOrigins sets the browser origins that may open /v1/stream.
// "*" allows any origin. Without this option only same-host pages and
// clients that send no Origin header are accepted.
func WithAllowedOrigins(origins []string) WidgetHandlerOption {
	return func(h *WidgetHandler) {
		h.upgrader.CheckOrigin = originChecker(origins)
	}
}

// NewWidgetHandler creates a WidgetHandler.
func NewWidgetHandler(
	svc WidgetService,
	identity *ClientIdentity,
	val *core.Validator,
	logger *slog.Logger,
	opts ...WidgetHandlerOption,
) *WidgetHandler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &WidgetHandler{
		service:   svc,
		identity:  identity,
		validator: val,
		logger:    logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     originChecker(nil),
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterRoutes mounts the widget endpoints. Every route runs behind the
// client identity middleware.
func (h *WidgetHandler) RegisterRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.identity.Middleware)

		r.Get("/view", h.HandleGetView)
		r.Post("/lookup", h.HandleLookup)
		r.Get("/language", h.HandleGetLanguage)
		r.Put("/language", h.HandleSetLanguage)
		r.Get("/stream", h.HandleStream)
	})
}

// HandleGetView handles GET /v1/view.
func (h *WidgetHandler) HandleGetView(w http.ResponseWriter, r *http.Request) {
	clientID, _ := types.GetClientID(r.Context())
	core.Data(w, r, http.StatusOK, h.service.View(r.Context(), clientID))
}

// HandleLookup handles POST /v1/lookup. Upstream failures do not fail the
// request: they show up in the returned view's error field.
func (h *WidgetHandler) HandleLookup(w http.ResponseWriter, r *http.Request) {
	var req LookupRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	clientID, _ := types.GetClientID(r.Context())
	vm, err := h.service.Lookup(r.Context(), clientID, req.City)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	if vm.Error != "" {
		h.logger.InfoContext(r.Context(), "lookup finished without weather",
			"client_id", clientID,
			"city", vm.City,
			"error_code", vm.Error,
		)
	}
	core.Data(w, r, http.StatusOK, vm)
}

// HandleGetLanguage handles GET /v1/language.
func (h *WidgetHandler) HandleGetLanguage(w http.ResponseWriter, r *http.Request) {
	clientID, _ := types.GetClientID(r.Context())
	vm := h.service.View(r.Context(), clientID)

	core.Data(w, r, http.StatusOK, LanguageResponse{
		Language:  vm.Language,
		Supported: types.SupportedLanguages,
		Labels:    vm.Labels,
	})
}

// HandleSetLanguage handles PUT /v1/language. The preference is saved before
// the current city is refetched in the new language.
func (h *WidgetHandler) HandleSetLanguage(w http.ResponseWriter, r *http.Request) {
	var req LanguageRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	clientID, _ := types.GetClientID(r.Context())
	vm, err := h.service.SetLanguage(r.Context(), clientID, req.Language)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to set language",
			"client_id", clientID,
			"language", req.Language,
			"error", err,
		)
		core.Error(w, r, err)
		return
	}
	core.Data(w, r, http.StatusOK, vm)
}
