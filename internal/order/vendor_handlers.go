package order

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-fees/internal/common"
)

// ToggleAction names the signed vendor toggle link.
const ToggleAction = "order.toggle_shipped"

// LinkSigner issues and checks tokens binding an action on an order to one user.
type LinkSigner interface {
	Sign(action, target, subject string) (string, error)
	Check(token, action, target, subject string) error
}

// VendorHandler lets vendors toggle shipment status from their dashboard.
type VendorHandler struct {
	Svc   *Service
	Links LinkSigner
	// Fallback is the redirect target when the request carries no usable referrer.
	Fallback string
	// BasePath prefixes generated toggle links.
	BasePath string
	Log      *zerolog.Logger
}

// ToggleLink handles GET /api/v1/vendor/orders/{id}/toggle-link and returns the
// signed toggle URL for the calling vendor.
func (h *VendorHandler) ToggleLink(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Svc == nil || h.Links == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "vendor handler not configured", nil)
		return
	}
	actor := ActorFromContext(r.Context())
	if actor.UserID == "" {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	id, err := h.Svc.Authorize(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	token, err := h.Links.Sign(ToggleAction, id, actor.UserID)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "could not sign link", nil)
		return
	}
	link := strings.TrimRight(h.basePath(), "/") + "/" + id + "/toggle-shipped?token=" + url.QueryEscape(token)
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]string{"url": link}})
}

// ToggleShipped handles GET /api/v1/vendor/orders/{id}/toggle-shipped?token=...
// Every outcome redirects back to the referring page; only a link signed for
// the caller and this order changes anything.
func (h *VendorHandler) ToggleShipped(w http.ResponseWriter, r *http.Request) {
	target := common.Referer(r, h.fallback())
	if h == nil || h.Svc == nil || h.Links == nil {
		http.Redirect(w, r, target, http.StatusFound)
		return
	}
	actor := ActorFromContext(r.Context())
	orderID := chi.URLParam(r, "id")
	id, err := parseID(orderID)
	if err == nil {
		err = h.Links.Check(r.URL.Query().Get("token"), ToggleAction, id, actor.UserID)
		if err != nil {
			err = errors.Join(ErrForbidden, err)
		}
	}
	if err == nil {
		_, err = h.Svc.Toggle(r.Context(), actor, id)
	}
	if err != nil && h.Log != nil {
		ev := h.Log.Warn()
		if !errors.Is(err, ErrForbidden) && !errors.Is(err, ErrNotShippable) &&
			!errors.Is(err, ErrInvalidInput) && !errors.Is(err, ErrNotFound) {
			ev = h.Log.Error()
		}
		ev.Err(err).Str("order_id", orderID).Str("vendor_id", actor.UserID).Msg("vendor shipment toggle rejected")
	}
	http.Redirect(w, r, target, http.StatusFound)
}

func (h *VendorHandler) fallback() string {
	if h == nil || h.Fallback == "" {
		return "/"
	}
	return h.Fallback
}

func (h *VendorHandler) basePath() string {
	if h.BasePath == "" {
		return "/api/v1/vendor/orders"
	}
	return h.BasePath
}
