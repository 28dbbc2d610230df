// Package httpapi serves the plain HTTP side of the server: a health
// check and the landing endpoint behind invite links.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/dmitrijs2005/vaultsync/internal/common"
	"github.com/dmitrijs2005/vaultsync/internal/invite"
	"github.com/dmitrijs2005/vaultsync/internal/logging"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// InviteService is the part of the services layer the landing page needs.
type InviteService interface {
	PreviewInvite(ctx context.Context, vaultID, inviteID, token string) (*invite.Invite, error)
	ClientURL() string
}

// InviteView is what an invitee sees before signing in.
type InviteView struct {
	VaultName string        `json:"vault_name"`
	Email     string        `json:"email"`
	Status    invite.Status `json:"status"`
	ExpiresAt time.Time     `json:"expires_at"`
	Link      string        `json:"link"`
}

type handler struct {
	invites InviteService
	logger  logging.Logger
}

// NewRouter mounts:
//
//	GET /healthz
//	GET /invite/{vaultID}/{inviteID}?verify=<token>
//	GET /invite/{vaultID}/{inviteID}/qr.png?verify=<token>
func NewRouter(invites InviteService, logger logging.Logger) http.Handler {
	h := &handler{invites: invites, logger: logger}

	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.Recoverer)
	r.Use(h.requestLogging)

	r.Get("/healthz", h.health)
	r.Route("/invite/{vaultID}/{inviteID}", func(r chi.Router) {
		r.Get("/", h.inviteLanding)
		r.Get("/qr.png", h.inviteQR)
	})
	return r
}

func (h *handler) requestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		h.logger.Debug(r.Context(), "http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", chiMiddleware.GetReqID(r.Context()))
	})
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) lookup(w http.ResponseWriter, r *http.Request) (*invite.Invite, invite.Link, bool) {
	link := invite.Link{
		BaseURL:  h.invites.ClientURL(),
		VaultID:  chi.URLParam(r, "vaultID"),
		InviteID: chi.URLParam(r, "inviteID"),
		Token:    r.URL.Query().Get("verify"),
	}
	inv, err := h.invites.PreviewInvite(r.Context(), link.VaultID, link.InviteID, link.Token)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			http.Error(w, "invite not found", http.StatusNotFound)
		} else {
			h.logger.Error(r.Context(), "invite lookup failed", "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
		}
		return nil, link, false
	}
	return inv, link, true
}

func (h *handler) inviteLanding(w http.ResponseWriter, r *http.Request) {
	inv, link, ok := h.lookup(w, r)
	if !ok {
		return
	}
	status := http.StatusOK
	if inv.Status == invite.StatusExpired {
		status = http.StatusGone
	}
	writeJSON(w, status, InviteView{
		VaultName: inv.VaultName,
		Email:     inv.Email,
		Status:    inv.Status,
		ExpiresAt: inv.ExpiresAt,
		Link:      link.String(),
	})
}

func (h *handler) inviteQR(w http.ResponseWriter, r *http.Request) {
	_, link, ok := h.lookup(w, r)
	if !ok {
		return
	}
	png, err := link.PNG(256)
	if err != nil {
		h.logger.Error(r.Context(), "qr encode failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(png)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
