// Package signature verifies the HMAC-SHA256 signature the voice platform
// attaches to webhook deliveries.
package signature

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"datemate/pkg/apperr"
)

// Header carries the hex-encoded body signature.
const Header = "x-vapi-signature"

// MaxBodyBytes bounds the body buffered for verification.
const MaxBodyBytes = 1 << 20

var (
	ErrMissingSignature = errors.New("missing signature header")
	ErrInvalidSignature = errors.New("invalid signature")
)

// Verifier checks webhook signatures against a shared secret. A Verifier with
// a blank secret is disabled and accepts every request.
type Verifier struct {
	secret []byte
	log    *slog.Logger
	warn   sync.Once
}

// NewVerifier builds a verifier; an empty secret disables verification. The
// secret is used byte for byte, surrounding whitespace included.
func NewVerifier(secret string, log *slog.Logger) *Verifier {
	if log == nil {
		log = slog.Default()
	}
	v := &Verifier{log: log.With("component", "signature.verifier")}
	if secret != "" {
		v.secret = []byte(secret)
	}
	return v
}

// Enabled reports whether a secret is configured.
func (v *Verifier) Enabled() bool {
	return v != nil && len(v.secret) > 0
}

// Sign returns hex(HMAC-SHA256(secret, body)).
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks header against the exact raw body bytes.
func (v *Verifier) Verify(body []byte, header string) error {
	if !v.Enabled() {
		v.warnDisabled()
		return nil
	}

	header = strings.TrimSpace(header)
	if header == "" {
		return ErrMissingSignature
	}

	mac := hmac.New(sha256.New, v.secret)
	mac.Write(body)
	expected := []byte(hex.EncodeToString(mac.Sum(nil)))
	if !hmac.Equal(expected, []byte(header)) {
		return ErrInvalidSignature
	}

	return nil
}

func (v *Verifier) warnDisabled() {
	if v == nil {
		return
	}
	v.warn.Do(func() {
		v.log.Warn("Webhook secret not configured; signature verification is disabled, which is insecure")
	})
}

// Middleware rejects unsigned or mis-signed requests with 403 before next
// sees them. The body is restored for next to read.
func (v *Verifier) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !v.Enabled() {
			v.warnDisabled()
			next.ServeHTTP(w, r)
			return
		}

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeError(w, apperr.BadInput("Request body too large"))
				return
			}
			writeError(w, apperr.BadInput("Unable to read request body"))
			return
		}

		if err := v.Verify(body, r.Header.Get(Header)); err != nil {
			v.log.WarnContext(r.Context(), "Webhook signature rejected",
				"path", r.URL.Path,
				"reason", err.Error(),
			)
			if errors.Is(err, ErrMissingSignature) {
				writeError(w, apperr.Forbidden("Missing "+Header+" header"))
				return
			}
			writeError(w, apperr.Forbidden("Invalid signature"))
			return
		}

		r.Body = io.NopCloser(bytes.NewReader(body))
		r.ContentLength = int64(len(body))
		next.ServeHTTP(w, r)
	})
}

func writeError(w http.ResponseWriter, err error) {
	rich := apperr.From(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(rich.Code)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"detail": rich.Message,
		"code":   rich.TextCode,
	})
}
