package sharelink

import (
	"encoding/json"
	"net/url"
	"strings"
	"time"
)

// Cookie names for the barbershop entry context carried by the client.
const (
	ContextCookieName          = "bs_ctx"
	IntentCookieName           = "bs_intent"
	ForceGeneralHomeCookieName = "bs_force_home"

	ContextCookieMaxAge = 7 * 24 * time.Hour
)

type EntrySource string

const (
	EntryShareLink   EntrySource = "share_link"
	EntryGeneralList EntrySource = "general_list"
	EntryUnknown     EntrySource = "unknown"
)

func isEntrySource(value string) bool {
	switch EntrySource(value) {
	case EntryShareLink, EntryGeneralList, EntryUnknown:
		return true
	default:
		return false
	}
}

// Intent is the ephemeral, client-carried record of how a visitor reached a
// barbershop. It is never stored server-side.
type Intent struct {
	EntrySource   EntrySource `json:"entrySource"`
	BarbershopID  string      `json:"barbershopId"`
	ShareSlug     string      `json:"shareSlug,omitempty"`
	HasShareProof bool        `json:"hasShareProof,omitempty"`
	Timestamp     int64       `json:"timestamp"`
}

// EncodeIntent serializes the intent as URL-escaped JSON for cookie storage.
// Unrecognized entry sources collapse to "unknown".
func EncodeIntent(intent Intent) string {
	normalized := Intent{
		EntrySource:   intent.EntrySource,
		BarbershopID:  strings.TrimSpace(intent.BarbershopID),
		ShareSlug:     strings.TrimSpace(intent.ShareSlug),
		HasShareProof: intent.HasShareProof,
		Timestamp:     intent.Timestamp,
	}
	if !isEntrySource(string(normalized.EntrySource)) {
		normalized.EntrySource = EntryUnknown
	}

	raw, err := json.Marshal(normalized)
	if err != nil {
		return ""
	}
	return url.QueryEscape(string(raw))
}

// DecodeIntent parses a cookie value produced by EncodeIntent. Malformed
// input of any kind yields nil rather than an error; the caller treats a nil
// intent as no context.
func DecodeIntent(cookieValue string) *Intent {
	if cookieValue == "" {
		return nil
	}

	decoded, err := url.QueryUnescape(cookieValue)
	if err != nil {
		return nil
	}

	var intent Intent
	if err := json.Unmarshal([]byte(decoded), &intent); err != nil {
		return nil
	}

	intent.BarbershopID = strings.TrimSpace(intent.BarbershopID)
	if intent.BarbershopID == "" {
		return nil
	}
	if intent.Timestamp == 0 {
		return nil
	}

	if !isEntrySource(string(intent.EntrySource)) {
		intent.EntrySource = EntryUnknown
	}
	intent.ShareSlug = strings.TrimSpace(intent.ShareSlug)

	return &intent
}
