package gateway

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/spf13/cast"
	waTypes "go.mau.fi/whatsmeow/types"
)

// Payload is a decoded gateway response body. The gateway changes its
// response layout across versions, so callers read it through the
// matchers below instead of fixed structs.
type Payload map[string]interface{}

// nested returns the object stored under key, or nil.
func (p Payload) nested(key string) Payload {
	switch v := p[key].(type) {
	case map[string]interface{}:
		return Payload(v)
	case Payload:
		return v
	}
	return nil
}

// scopes lists p followed by its object under key, if any.
func (p Payload) scopes(key string) []Payload {
	out := []Payload{p}
	if n := p.nested(key); n != nil {
		out = append(out, n)
	}
	return out
}

func (p Payload) str(key string) string {
	v, ok := p[key]
	if !ok || v == nil {
		return ""
	}
	return strings.TrimSpace(cast.ToString(v))
}

type QrKind int

const (
	// QrUnrecognized means no matcher accepted the body.
	QrUnrecognized QrKind = iota
	// QrPending is the gateway's "count: 0" answer: no code generated yet.
	QrPending
	// QrImage carries an embeddable image (usually a data URI).
	QrImage
	// QrCode carries the raw pairing string that still has to be rendered.
	QrCode
)

func (k QrKind) String() string {
	switch k {
	case QrPending:
		return "pending"
	case QrImage:
		return "image"
	case QrCode:
		return "code"
	}
	return "unrecognized"
}

type QrMatch struct {
	Kind  QrKind
	Value string
}

type qrMatcher func(Payload) (QrMatch, bool)

// qrMatchers run in priority order, first match wins.
var qrMatchers = []qrMatcher{
	matchPendingCount,
	matchBase64,
	matchPairingCode,
}

func matchPendingCount(p Payload) (QrMatch, bool) {
	for _, s := range p.scopes("qrcode") {
		v, ok := s["count"]
		if !ok || v == nil {
			continue
		}
		if n, err := cast.ToIntE(v); err == nil && n == 0 {
			return QrMatch{Kind: QrPending}, true
		}
	}
	return QrMatch{}, false
}

func matchBase64(p Payload) (QrMatch, bool) {
	for _, s := range p.scopes("qrcode") {
		if img := s.str("base64"); img != "" {
			return QrMatch{Kind: QrImage, Value: img}, true
		}
	}
	return QrMatch{}, false
}

func matchPairingCode(p Payload) (QrMatch, bool) {
	for _, s := range p.scopes("qrcode") {
		if code := s.str("code"); code != "" {
			return QrMatch{Kind: QrCode, Value: code}, true
		}
	}
	return QrMatch{}, false
}

// MatchQr classifies a GetQrCode response.
func MatchQr(p Payload) QrMatch {
	if p == nil {
		return QrMatch{}
	}
	for _, m := range qrMatchers {
		if match, ok := m(p); ok {
			return match
		}
	}
	return QrMatch{}
}

// RenderQrURL builds an image URL for a raw pairing string using a
// "render text as QR" service. rendererBase must end where the data
// parameter value begins.
func RenderQrURL(rendererBase, code string) string {
	return rendererBase + url.QueryEscape(code)
}

type Status struct {
	State string
	Owner string
}

// Paired reports whether the gateway considers the instance logged in.
func (s Status) Paired() bool {
	switch strings.ToLower(s.State) {
	case "open", "connected":
		return true
	}
	return false
}

// Closed reports a state in which a previously paired instance is gone.
func (s Status) Closed() bool {
	switch strings.ToLower(s.State) {
	case "close", "closed", "disconnected":
		return true
	}
	return false
}

var ownerKeys = []string{"owner", "ownerJid", "wuid"}

// MatchStatus reads the state and owner from a GetStatus response. The
// state may sit at the top level or under "instance".
func MatchStatus(p Payload) Status {
	var st Status
	if p == nil {
		return st
	}
	for _, s := range p.scopes("instance") {
		if st.State == "" {
			st.State = s.str("state")
		}
		if st.Owner == "" {
			for _, k := range ownerKeys {
				if o := s.str(k); o != "" {
					st.Owner = o
					break
				}
			}
		}
	}
	return st
}

var nonDigits = regexp.MustCompile(`\D`)

// PhoneFromOwner extracts the phone number from an owner JID such as
// "5511999999999@s.whatsapp.net" or "5511999999999:12@s.whatsapp.net".
func PhoneFromOwner(owner string) string {
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return ""
	}
	if jid, err := waTypes.ParseJID(owner); err == nil && jid.User != "" {
		return jid.User
	}
	return nonDigits.ReplaceAllString(owner, "")
}
