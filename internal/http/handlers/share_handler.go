package handlers

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	mw "github.com/barberlink/bookings/internal/http/middleware"
	"github.com/barberlink/bookings/internal/http/response"
	"github.com/barberlink/bookings/internal/repo/postgres"
	"github.com/barberlink/bookings/internal/sharelink"
	"github.com/barberlink/bookings/pkg/config"
	"github.com/barberlink/bookings/pkg/logger"
	"github.com/go-chi/chi/v5"
)

// ShareHandler serves the share-link entry route and lets owners mint links.
type ShareHandler struct {
	Barbershops postgres.BarbershopRepository
	Tokens      *sharelink.Service
	Config      *config.Config
}

func NewShareHandler(barbershops postgres.BarbershopRepository, tokens *sharelink.Service, cfg *config.Config) *ShareHandler {
	return &ShareHandler{Barbershops: barbershops, Tokens: tokens, Config: cfg}
}

// Entry handles GET /s/{slug}?st=<token>. A valid token binds the visitor's
// session to the barbershop via cookies; anything else falls back to the
// general home without leaking why.
func (h *ShareHandler) Entry(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	token := r.URL.Query().Get("st")

	shop, err := h.Barbershops.GetByPublicSlug(r.Context(), slug)
	if err != nil {
		logger.ErrorContext(r.Context(), "Failed to resolve share link slug", "error", err, "slug", slug)
		h.redirectHome(w, r, false)
		return
	}
	if shop == nil {
		h.redirectHome(w, r, false)
		return
	}

	result := h.Tokens.Verify(token, shop.ID, shop.PublicSlug, time.Now())
	if !result.Valid {
		logger.WarnContext(r.Context(), "Rejected share link token",
			"reason", string(result.Reason), "slug", slug, "barbershop_id", shop.ID)
		h.redirectHome(w, r, false)
		return
	}

	maxAge := int(sharelink.ContextCookieMaxAge.Seconds())
	http.SetCookie(w, &http.Cookie{
		Name:     sharelink.ContextCookieName,
		Value:    shop.ID,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.secureCookies(),
		SameSite: http.SameSiteLaxMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name: sharelink.IntentCookieName,
		Value: sharelink.EncodeIntent(sharelink.Intent{
			EntrySource:   sharelink.EntryShareLink,
			BarbershopID:  shop.ID,
			ShareSlug:     shop.PublicSlug,
			HasShareProof: true,
			Timestamp:     time.Now().UnixMilli(),
		}),
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.secureCookies(),
		SameSite: http.SameSiteLaxMode,
	})
	// A fresh share entry overrides any earlier "stay on the general home".
	http.SetCookie(w, &http.Cookie{
		Name:     sharelink.ForceGeneralHomeCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookies(),
	})

	http.Redirect(w, r, "/", http.StatusFound)
}

// secureCookies reports whether entry cookies should carry the Secure flag.
// The public app URL is the deployment's source of truth for TLS.
func (h *ShareHandler) secureCookies() bool {
	return strings.HasPrefix(h.Config.Server.AppURL, "https://")
}

func (h *ShareHandler) redirectHome(w http.ResponseWriter, r *http.Request, keepContext bool) {
	if !keepContext {
		http.SetCookie(w, &http.Cookie{
			Name: sharelink.ContextCookieName, Value: "", Path: "/", MaxAge: -1,
			HttpOnly: true, Secure: h.secureCookies(),
		})
		http.SetCookie(w, &http.Cookie{
			Name: sharelink.IntentCookieName, Value: "", Path: "/", MaxAge: -1,
			HttpOnly: true, Secure: h.secureCookies(),
		})
		http.SetCookie(w, &http.Cookie{
			Name:     sharelink.ForceGeneralHomeCookieName,
			Value:    "1",
			Path:     "/",
			MaxAge:   int(sharelink.ContextCookieMaxAge.Seconds()),
			HttpOnly: true,
			Secure:   h.secureCookies(),
			SameSite: http.SameSiteLaxMode,
		})
	}
	http.Redirect(w, r, "/?share=invalid", http.StatusFound)
}

type shareLinkResponse struct {
	URL       string    `json:"url"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// IssueLink handles POST /admin/barbershops/{id}/share-link. Only the owner
// (or an admin) may mint links for a barbershop.
func (h *ShareHandler) IssueLink(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	claims := mw.Claims(r)
	if claims == nil {
		response.Unauthorized(w, "authentication required")
		return
	}

	shop, err := h.Barbershops.GetByID(r.Context(), id)
	if err != nil {
		logger.ErrorContext(r.Context(), "Failed to load barbershop", "error", err, "barbershop_id", id)
		response.InternalError(w, "error loading barbershop")
		return
	}
	if shop == nil {
		response.NotFound(w, "barbershop not found")
		return
	}
	if shop.OwnerID != claims.Sub && claims.Role != "admin" {
		response.Forbidden(w, "not the barbershop owner")
		return
	}

	slug, err := h.Barbershops.EnsurePublicSlug(r.Context(), id)
	if err != nil {
		logger.ErrorContext(r.Context(), "Failed to ensure public slug", "error", err, "barbershop_id", id)
		response.InternalError(w, "error preparing share link")
		return
	}

	now := time.Now()
	ttl := h.Config.ShareLink.TokenTTL
	token, err := h.Tokens.Issue(id, slug, ttl, now)
	if err != nil {
		logger.ErrorContext(r.Context(), "Failed to issue share link token", "error", err, "barbershop_id", id)
		response.InternalError(w, "error issuing share link")
		return
	}
	if ttl <= 0 {
		ttl = sharelink.DefaultTokenTTL
	}

	response.WriteJSON(w, http.StatusCreated, shareLinkResponse{
		URL:       h.Config.Server.AppURL + "/s/" + slug + "?st=" + url.QueryEscape(token),
		Token:     token,
		ExpiresAt: now.Add(ttl),
	})
}
