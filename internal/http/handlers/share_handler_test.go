package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/barberlink/bookings/internal/domain"
	"github.com/barberlink/bookings/internal/sharelink"
	"github.com/barberlink/bookings/pkg/config"
	"github.com/go-chi/chi/v5"
)

type stubShopRepo struct {
	shops   map[string]*domain.Barbershop
	slugErr error
}

func (r *stubShopRepo) GetByID(_ context.Context, id string) (*domain.Barbershop, error) {
	return r.shops[id], nil
}

func (r *stubShopRepo) GetByPublicSlug(_ context.Context, slug string) (*domain.Barbershop, error) {
	if r.slugErr != nil {
		return nil, r.slugErr
	}
	for _, shop := range r.shops {
		if shop.PublicSlug == slug {
			return shop, nil
		}
	}
	return nil, nil
}

func (r *stubShopRepo) EnsurePublicSlug(_ context.Context, id string) (string, error) {
	shop, ok := r.shops[id]
	if !ok {
		return "", errors.New("not found")
	}
	return shop.PublicSlug, nil
}

func newShareTestRouter(repo *stubShopRepo, tokens *sharelink.Service) *chi.Mux {
	cfg := &config.Config{}
	cfg.Server.AppURL = "http://localhost:8080"
	cfg.ShareLink.TokenTTL = time.Hour

	h := NewShareHandler(repo, tokens, cfg)
	r := chi.NewRouter()
	r.Get("/s/{slug}", h.Entry)
	return r
}

func cookieByName(res *http.Response, name string) *http.Cookie {
	for _, c := range res.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestShareEntryValidTokenSetsContext(t *testing.T) {
	repo := &stubShopRepo{shops: map[string]*domain.Barbershop{
		"shop-1": {ID: "shop-1", Name: "Navalha", PublicSlug: "navalha", OwnerID: "owner-1"},
	}}
	tokens := sharelink.NewService("test-secret")
	token, err := tokens.Issue("shop-1", "navalha", time.Hour, time.Now())
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	router := newShareTestRouter(repo, tokens)
	req := httptest.NewRequest(http.MethodGet, "/s/navalha?st="+url.QueryEscape(token), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	res := rec.Result()
	defer res.Body.Close()

	if res.StatusCode != http.StatusFound {
		t.Fatalf("status = %d, want 302", res.StatusCode)
	}
	if loc := res.Header.Get("Location"); loc != "/" {
		t.Errorf("redirect = %q, want /", loc)
	}

	ctxCookie := cookieByName(res, sharelink.ContextCookieName)
	if ctxCookie == nil || ctxCookie.Value != "shop-1" {
		t.Fatalf("context cookie = %+v, want shop-1", ctxCookie)
	}

	intentCookie := cookieByName(res, sharelink.IntentCookieName)
	if intentCookie == nil {
		t.Fatal("intent cookie missing")
	}
	intent := sharelink.DecodeIntent(intentCookie.Value)
	if intent == nil {
		t.Fatal("intent cookie did not decode")
	}
	if intent.EntrySource != sharelink.EntryShareLink || !intent.HasShareProof {
		t.Errorf("intent = %+v, want share_link with proof", intent)
	}

	forceHome := cookieByName(res, sharelink.ForceGeneralHomeCookieName)
	if forceHome == nil || forceHome.MaxAge != -1 {
		t.Errorf("force-home cookie should be cleared, got %+v", forceHome)
	}

	for _, c := range res.Cookies() {
		if !c.HttpOnly {
			t.Errorf("cookie %s must be HttpOnly", c.Name)
		}
		if c.Secure {
			t.Errorf("cookie %s must not be Secure behind an http app URL", c.Name)
		}
	}
}

func TestShareEntryCookiesSecureOverHTTPS(t *testing.T) {
	repo := &stubShopRepo{shops: map[string]*domain.Barbershop{
		"shop-1": {ID: "shop-1", PublicSlug: "navalha", OwnerID: "owner-1"},
	}}
	tokens := sharelink.NewService("test-secret")
	token, err := tokens.Issue("shop-1", "navalha", time.Hour, time.Now())
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	cfg := &config.Config{}
	cfg.Server.AppURL = "https://barberlink.example"
	cfg.ShareLink.TokenTTL = time.Hour
	h := NewShareHandler(repo, tokens, cfg)
	router := chi.NewRouter()
	router.Get("/s/{slug}", h.Entry)

	req := httptest.NewRequest(http.MethodGet, "/s/navalha?st="+url.QueryEscape(token), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	res := rec.Result()
	defer res.Body.Close()

	if len(res.Cookies()) == 0 {
		t.Fatal("expected entry cookies")
	}
	for _, c := range res.Cookies() {
		if !c.Secure {
			t.Errorf("cookie %s must be Secure behind an https app URL", c.Name)
		}
		if !c.HttpOnly {
			t.Errorf("cookie %s must be HttpOnly", c.Name)
		}
	}
}

func TestShareEntryInvalidTokenFallsBackToHome(t *testing.T) {
	repo := &stubShopRepo{shops: map[string]*domain.Barbershop{
		"shop-1": {ID: "shop-1", PublicSlug: "navalha", OwnerID: "owner-1"},
	}}
	tokens := sharelink.NewService("test-secret")

	router := newShareTestRouter(repo, tokens)
	req := httptest.NewRequest(http.MethodGet, "/s/navalha?st=not-a-token", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	res := rec.Result()
	defer res.Body.Close()

	if res.StatusCode != http.StatusFound {
		t.Fatalf("status = %d, want 302", res.StatusCode)
	}
	if loc := res.Header.Get("Location"); loc != "/?share=invalid" {
		t.Errorf("redirect = %q, want /?share=invalid", loc)
	}
	if c := cookieByName(res, sharelink.ContextCookieName); c == nil || c.MaxAge != -1 {
		t.Errorf("context cookie should be cleared, got %+v", c)
	}
	if c := cookieByName(res, sharelink.ForceGeneralHomeCookieName); c == nil || c.Value != "1" {
		t.Errorf("force-home cookie should be set, got %+v", c)
	}
}

func TestShareEntryTokenForAnotherShopRejected(t *testing.T) {
	repo := &stubShopRepo{shops: map[string]*domain.Barbershop{
		"shop-1": {ID: "shop-1", PublicSlug: "navalha", OwnerID: "owner-1"},
		"shop-2": {ID: "shop-2", PublicSlug: "tesoura", OwnerID: "owner-2"},
	}}
	tokens := sharelink.NewService("test-secret")
	token, err := tokens.Issue("shop-2", "tesoura", time.Hour, time.Now())
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	router := newShareTestRouter(repo, tokens)
	req := httptest.NewRequest(http.MethodGet, "/s/navalha?st="+url.QueryEscape(token), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	res := rec.Result()
	defer res.Body.Close()

	if loc := res.Header.Get("Location"); loc != "/?share=invalid" {
		t.Errorf("redirect = %q, want /?share=invalid", loc)
	}
}

func TestShareEntryUnknownSlug(t *testing.T) {
	repo := &stubShopRepo{shops: map[string]*domain.Barbershop{}}
	router := newShareTestRouter(repo, sharelink.NewService("test-secret"))

	req := httptest.NewRequest(http.MethodGet, "/s/nobody?st=whatever", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	res := rec.Result()
	defer res.Body.Close()

	if loc := res.Header.Get("Location"); loc != "/?share=invalid" {
		t.Errorf("redirect = %q, want /?share=invalid", loc)
	}
}
