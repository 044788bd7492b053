// Package http exposes the verification flow to the dashboard host over
// REST. One sub-router per session; every step action is a POST against the
// session resource so the server-held state machine stays authoritative.
package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"fieldgate/internal/platform/middleware"
	"fieldgate/internal/profile"
	"fieldgate/internal/verification"
	dErrors "fieldgate/pkg/domain-errors"
	id "fieldgate/pkg/domain"
	"fieldgate/pkg/platform/httputil"
)

// Service defines the verification operations the transport depends on.
type Service interface {
	Start(ctx context.Context, desktop bool) (verification.Session, error)
	Get(ctx context.Context, sessionID id.SessionID) (verification.Session, error)
	SelectRole(ctx context.Context, sessionID id.SessionID, role profile.Role) (verification.Session, error)
	AuthenticateSSO(ctx context.Context, sessionID id.SessionID, credential string) (verification.Session, bool, error)
	SubmitIdentity(ctx context.Context, sessionID id.SessionID, name, email, passphrase string) (verification.Session, error)
	SubmitContact(ctx context.Context, sessionID id.SessionID, phone string) (verification.Session, error)
	ObserveScroll(ctx context.Context, sessionID id.SessionID, contentHeight, viewportHeight, scrollTop float64) (verification.Session, error)
	SetAgreement(ctx context.Context, sessionID id.SessionID, agreed bool) (verification.Session, error)
	ConfirmTerms(ctx context.Context, sessionID id.SessionID) (verification.Session, error)
	AcquireLocation(ctx context.Context, sessionID id.SessionID) (verification.Session, error)
	RefreshLocation(ctx context.Context, sessionID id.SessionID) (verification.Session, error)
	BypassLocation(ctx context.Context, sessionID id.SessionID) (verification.Session, error)
	ConfirmLocation(ctx context.Context, sessionID id.SessionID) (verification.Session, error)
	SwitchCamera(ctx context.Context, sessionID id.SessionID) (verification.Session, error)
	CaptureFace(ctx context.Context, sessionID id.SessionID) (verification.Session, error)
	ConfirmCapture(ctx context.Context, sessionID id.SessionID) (verification.Session, error)
	Complete(ctx context.Context, sessionID id.SessionID) (profile.Profile, error)
	Back(ctx context.Context, sessionID id.SessionID) (verification.Session, bool, error)
	Cancel(ctx context.Context, sessionID id.SessionID) error
}

// Handler wires verification endpoints to the service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a verification handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Register mounts verification endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/verification/sessions", func(r chi.Router) {
		r.Post("/", h.HandleStart)
		r.Route("/{sessionID}", func(r chi.Router) {
			r.Get("/", h.HandleGet)
			r.Delete("/", h.HandleCancel)
			r.Post("/back", h.HandleBack)
			r.Post("/role", h.HandleSelectRole)
			r.Post("/sso", h.HandleSSO)
			r.Post("/identity", h.HandleIdentity)
			r.Post("/contact", h.HandleContact)
			r.Post("/terms/scroll", h.HandleScroll)
			r.Post("/terms/agreement", h.HandleAgreement)
			r.Post("/terms/confirm", h.HandleConfirmTerms)
			r.Post("/location/acquire", h.HandleAcquireLocation)
			r.Post("/location/refresh", h.HandleRefreshLocation)
			r.Post("/location/bypass", h.HandleBypassLocation)
			r.Post("/location/confirm", h.HandleConfirmLocation)
			r.Post("/face/switch", h.HandleSwitchCamera)
			r.Post("/face/capture", h.HandleCapture)
			r.Post("/face/confirm", h.HandleConfirmCapture)
			r.Post("/complete", h.HandleComplete)
		})
	})
}

func (h *Handler) sessionID(w http.ResponseWriter, r *http.Request) (id.SessionID, bool) {
	sessionID, err := id.ParseSessionID(chi.URLParam(r, "sessionID"))
	if err != nil {
		httputil.WriteError(w, err)
		return id.SessionID{}, false
	}
	return sessionID, true
}

// HandleStart handles POST /verification/sessions.
func (h *Handler) HandleStart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	desktop := middleware.GetDeviceClass(ctx) == middleware.DeviceClassDesktop

	session, err := h.service.Start(ctx, desktop)
	if err != nil {
		h.logger.ErrorContext(ctx, "could not start verification session",
			"request_id", middleware.GetRequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, FromSession(session))
}

// HandleGet handles GET /verification/sessions/{sessionID}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	session, err := h.service.Get(r.Context(), sessionID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromSession(session))
}

// HandleSelectRole handles POST /verification/sessions/{sessionID}/role.
func (h *Handler) HandleSelectRole(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[SelectRoleRequest](w, r, h.logger, ctx, middleware.GetRequestID(ctx))
	if !ok {
		return
	}

	session, err := h.service.SelectRole(ctx, sessionID, req.ParsedRole())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromSession(session))
}

// HandleSSO handles POST /verification/sessions/{sessionID}/sso.
func (h *Handler) HandleSSO(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[SSORequest](w, r, h.logger, ctx, middleware.GetRequestID(ctx))
	if !ok {
		return
	}

	session, decoded, err := h.service.AuthenticateSSO(ctx, sessionID, req.Credential)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	resp := FromSession(session)
	resp.SSODecoded = &decoded
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// HandleIdentity handles POST /verification/sessions/{sessionID}/identity.
func (h *Handler) HandleIdentity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[IdentityRequest](w, r, h.logger, ctx, middleware.GetRequestID(ctx))
	if !ok {
		return
	}

	session, err := h.service.SubmitIdentity(ctx, sessionID, req.Name, req.Email, req.Passphrase)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromSession(session))
}

// HandleContact handles POST /verification/sessions/{sessionID}/contact.
func (h *Handler) HandleContact(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[ContactRequest](w, r, h.logger, ctx, middleware.GetRequestID(ctx))
	if !ok {
		return
	}

	session, err := h.service.SubmitContact(ctx, sessionID, req.Phone)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromSession(session))
}

// HandleScroll handles POST /verification/sessions/{sessionID}/terms/scroll.
func (h *Handler) HandleScroll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[ScrollRequest](w, r, h.logger, ctx, middleware.GetRequestID(ctx))
	if !ok {
		return
	}

	session, err := h.service.ObserveScroll(ctx, sessionID, req.ContentHeight, req.ViewportHeight, req.ScrollTop)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromSession(session))
}

// HandleAgreement handles POST /verification/sessions/{sessionID}/terms/agreement.
func (h *Handler) HandleAgreement(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[AgreementRequest](w, r, h.logger, ctx, middleware.GetRequestID(ctx))
	if !ok {
		return
	}

	session, err := h.service.SetAgreement(ctx, sessionID, req.Agreed)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromSession(session))
}

// action wraps the body-less step operations that share one shape.
func (h *Handler) action(op func(context.Context, id.SessionID) (verification.Session, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID, ok := h.sessionID(w, r)
		if !ok {
			return
		}
		session, err := op(r.Context(), sessionID)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, FromSession(session))
	}
}

func (h *Handler) HandleConfirmTerms(w http.ResponseWriter, r *http.Request) {
	h.action(h.service.ConfirmTerms)(w, r)
}

func (h *Handler) HandleAcquireLocation(w http.ResponseWriter, r *http.Request) {
	h.action(h.service.AcquireLocation)(w, r)
}

func (h *Handler) HandleRefreshLocation(w http.ResponseWriter, r *http.Request) {
	h.action(h.service.RefreshLocation)(w, r)
}

func (h *Handler) HandleBypassLocation(w http.ResponseWriter, r *http.Request) {
	h.action(h.service.BypassLocation)(w, r)
}

func (h *Handler) HandleConfirmLocation(w http.ResponseWriter, r *http.Request) {
	h.action(h.service.ConfirmLocation)(w, r)
}

func (h *Handler) HandleSwitchCamera(w http.ResponseWriter, r *http.Request) {
	h.action(h.service.SwitchCamera)(w, r)
}

func (h *Handler) HandleCapture(w http.ResponseWriter, r *http.Request) {
	h.action(h.service.CaptureFace)(w, r)
}

func (h *Handler) HandleConfirmCapture(w http.ResponseWriter, r *http.Request) {
	h.action(h.service.ConfirmCapture)(w, r)
}

// HandleComplete handles POST /verification/sessions/{sessionID}/complete.
func (h *Handler) HandleComplete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	built, err := h.service.Complete(ctx, sessionID)
	if err != nil {
		h.logger.WarnContext(ctx, "verification completion failed",
			"request_id", middleware.GetRequestID(ctx),
			"session_id", sessionID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromProfile(built))
}

// HandleBack handles POST /verification/sessions/{sessionID}/back.
func (h *Handler) HandleBack(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	session, cancelled, err := h.service.Back(r.Context(), sessionID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if cancelled {
		httputil.WriteJSON(w, http.StatusOK, CancelledResponse{Cancelled: true})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromSession(session))
}

// HandleCancel handles DELETE /verification/sessions/{sessionID}.
func (h *Handler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	if err := h.service.Cancel(r.Context(), sessionID); err != nil {
		// Cancelling an already gone session is fine from the client's view.
		if dErrors.Is(err, dErrors.CodeNotFound) {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
