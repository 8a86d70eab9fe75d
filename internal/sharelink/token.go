// Package sharelink issues and verifies the signed tokens embedded in
// barbershop share links, and encodes the ephemeral entry-intent cookie the
// routing layer uses to remember how a visitor arrived.
package sharelink

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

const TokenVersion = 1

const DefaultTokenTTL = 30 * 24 * time.Hour

// TokenPayload is the signed content of a share-link token. Timestamps are
// milliseconds since epoch to match the token wire format.
type TokenPayload struct {
	Version      int    `json:"v"`
	BarbershopID string `json:"barbershopId"`
	PublicSlug   string `json:"publicSlug"`
	IssuedAt     int64  `json:"iat"`
	ExpiresAt    int64  `json:"exp"`
}

type FailureReason string

const (
	ReasonMissingToken       FailureReason = "missing-token"
	ReasonMissingSecret      FailureReason = "missing-secret"
	ReasonMalformedToken     FailureReason = "malformed-token"
	ReasonInvalidSignature   FailureReason = "invalid-signature"
	ReasonInvalidPayload     FailureReason = "invalid-payload"
	ReasonExpired            FailureReason = "expired-token"
	ReasonBarbershopMismatch FailureReason = "barbershop-mismatch"
	ReasonSlugMismatch       FailureReason = "slug-mismatch"
)

type VerifyResult struct {
	Valid   bool
	Reason  FailureReason
	Payload *TokenPayload
}

var (
	ErrMissingSecret = errors.New("share link token secret is not configured")
	ErrMissingScope  = errors.New("barbershop id and public slug are required")
)

// Service signs and verifies share-link tokens with a process-wide secret.
// The secret is injected at construction; an empty secret disables issuance
// and fails every verification with ReasonMissingSecret.
type Service struct {
	secret []byte
}

func NewService(secret string) *Service {
	return &Service{secret: []byte(strings.TrimSpace(secret))}
}

// Issue builds a version-1 token scoped to one barbershop and its public
// slug: base64url(JSON payload) + "." + base64url(HMAC-SHA256 signature).
func (s *Service) Issue(barbershopID, publicSlug string, ttl time.Duration, now time.Time) (string, error) {
	barbershopID = strings.TrimSpace(barbershopID)
	publicSlug = strings.TrimSpace(publicSlug)

	if barbershopID == "" || publicSlug == "" {
		return "", ErrMissingScope
	}
	if len(s.secret) == 0 {
		return "", ErrMissingSecret
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}

	payload := TokenPayload{
		Version:      TokenVersion,
		BarbershopID: barbershopID,
		PublicSlug:   publicSlug,
		IssuedAt:     now.UnixMilli(),
		ExpiresAt:    now.Add(ttl).UnixMilli(),
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	encodedPayload := base64.RawURLEncoding.EncodeToString(raw)
	return encodedPayload + "." + s.sign(encodedPayload), nil
}

// Verify checks every gate in order and stops at the first failure. The
// signature is recomputed over the received payload segment and compared in
// constant time after an equal-length check; the payload is only parsed once
// the signature holds. Expiry is exclusive: exp <= now is expired. Expected
// barbershop id and slug are optional; empty strings skip those checks.
func (s *Service) Verify(token, expectedBarbershopID, expectedPublicSlug string, now time.Time) VerifyResult {
	token = strings.TrimSpace(token)
	if token == "" {
		return VerifyResult{Reason: ReasonMissingToken}
	}

	if len(s.secret) == 0 {
		return VerifyResult{Reason: ReasonMissingSecret}
	}

	parts := strings.Split(token, ".")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return VerifyResult{Reason: ReasonMalformedToken}
	}

	encodedPayload, signature := parts[0], parts[1]
	expectedSignature := s.sign(encodedPayload)

	if len(signature) != len(expectedSignature) {
		return VerifyResult{Reason: ReasonInvalidSignature}
	}
	if subtle.ConstantTimeCompare([]byte(signature), []byte(expectedSignature)) != 1 {
		return VerifyResult{Reason: ReasonInvalidSignature}
	}

	payload := parseTokenPayload(encodedPayload)
	if payload == nil {
		return VerifyResult{Reason: ReasonInvalidPayload}
	}

	if payload.ExpiresAt <= now.UnixMilli() {
		return VerifyResult{Reason: ReasonExpired}
	}

	if expected := strings.TrimSpace(expectedBarbershopID); expected != "" && payload.BarbershopID != expected {
		return VerifyResult{Reason: ReasonBarbershopMismatch}
	}

	if expected := strings.TrimSpace(expectedPublicSlug); expected != "" && payload.PublicSlug != expected {
		return VerifyResult{Reason: ReasonSlugMismatch}
	}

	return VerifyResult{Valid: true, Payload: payload}
}

func (s *Service) sign(encodedPayload string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(encodedPayload))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// wireTokenPayload uses pointers so absent fields are distinguishable from
// zero values during validation.
type wireTokenPayload struct {
	Version      *int    `json:"v"`
	BarbershopID *string `json:"barbershopId"`
	PublicSlug   *string `json:"publicSlug"`
	IssuedAt     *int64  `json:"iat"`
	ExpiresAt    *int64  `json:"exp"`
}

func parseTokenPayload(encodedPayload string) *TokenPayload {
	raw, err := base64.RawURLEncoding.DecodeString(encodedPayload)
	if err != nil {
		return nil
	}

	var wire wireTokenPayload
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil
	}

	if wire.Version == nil || *wire.Version != TokenVersion {
		return nil
	}
	if wire.BarbershopID == nil || strings.TrimSpace(*wire.BarbershopID) == "" {
		return nil
	}
	if wire.PublicSlug == nil || strings.TrimSpace(*wire.PublicSlug) == "" {
		return nil
	}
	if wire.IssuedAt == nil || wire.ExpiresAt == nil {
		return nil
	}

	return &TokenPayload{
		Version:      TokenVersion,
		BarbershopID: strings.TrimSpace(*wire.BarbershopID),
		PublicSlug:   strings.TrimSpace(*wire.PublicSlug),
		IssuedAt:     *wire.IssuedAt,
		ExpiresAt:    *wire.ExpiresAt,
	}
}
