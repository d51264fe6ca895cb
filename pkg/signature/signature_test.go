package signature

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/require"
)

const (
	testSecret = "topsecret"
	testBody   = `{"x":1}`
)

func testLogger(buf *bytes.Buffer) *slog.Logger {
	if buf == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return slog.New(slog.NewTextHandler(buf, nil))
}

func TestSignMatchesHMACSHA256(t *testing.T) {
	t.Parallel()

	mac := hmac.New(sha256.New, []byte(testSecret))
	mac.Write([]byte(testBody))
	want := hex.EncodeToString(mac.Sum(nil))

	require.Equal(t, want, Sign(testSecret, []byte(testBody)))
}

func TestVerifyAcceptsExactSignature(t *testing.T) {
	t.Parallel()

	v := NewVerifier(testSecret, testLogger(nil))
	require.True(t, v.Enabled())
	require.NoError(t, v.Verify([]byte(testBody), Sign(testSecret, []byte(testBody))))
}

func TestVerifyRejectsMissingHeader(t *testing.T) {
	t.Parallel()

	v := NewVerifier(testSecret, testLogger(nil))
	require.ErrorIs(t, v.Verify([]byte(testBody), ""), ErrMissingSignature)
}

func TestVerifyRejectsOtherBody(t *testing.T) {
	t.Parallel()

	v := NewVerifier(testSecret, testLogger(nil))
	header := Sign(testSecret, []byte(testBody))
	require.ErrorIs(t, v.Verify([]byte(`{"x":2}`), header), ErrInvalidSignature)
}

// Any single-character change to a valid header must be rejected.
func TestVerifyRejectsSingleCharacterMutation(t *testing.T) {
	v := NewVerifier(testSecret, testLogger(nil))
	valid := Sign(testSecret, []byte(testBody))

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("mutated signature is rejected", prop.ForAll(
		func(pos int, replacement rune) bool {
			runes := []rune(valid)
			if runes[pos] == replacement {
				return true
			}
			runes[pos] = replacement
			return v.Verify([]byte(testBody), string(runes)) != nil
		},
		gen.IntRange(0, len(valid)-1),
		gen.RuneRange('0', 'z'),
	))

	properties.TestingRun(t)
}

func TestDisabledVerifierAcceptsAnythingAndWarnsOnce(t *testing.T) {
	t.Parallel()

	var logs bytes.Buffer
	v := NewVerifier("", testLogger(&logs))
	require.False(t, v.Enabled())

	require.NoError(t, v.Verify([]byte(testBody), ""))
	require.NoError(t, v.Verify([]byte(testBody), "not-a-signature"))
	require.NoError(t, v.Verify(nil, Sign(testSecret, []byte(testBody))))

	require.Equal(t, 1, strings.Count(logs.String(), "signature verification is disabled"))
}

func TestVerifierUsesSecretVerbatim(t *testing.T) {
	t.Parallel()

	padded := " " + testSecret + "\n"
	v := NewVerifier(padded, testLogger(nil))
	require.True(t, v.Enabled())

	require.NoError(t, v.Verify([]byte(testBody), Sign(padded, []byte(testBody))))
	require.ErrorIs(t, v.Verify([]byte(testBody), Sign(testSecret, []byte(testBody))), ErrInvalidSignature)

	require.True(t, NewVerifier("   ", testLogger(nil)).Enabled())
}

func TestMiddlewareRejectsBeforeNext(t *testing.T) {
	t.Parallel()

	called := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	})
	handler := NewVerifier(testSecret, testLogger(nil)).Middleware(next)

	req := httptest.NewRequest(http.MethodPost, "/api/vapi-webhook", strings.NewReader(testBody))
	req.Header.Set(Header, "deadbeef")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.False(t, called, "next handler must not run on rejection")
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Contains(t, rec.Body.String(), `"detail":"Invalid signature"`)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/vapi-webhook", strings.NewReader(testBody)))
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Contains(t, rec.Body.String(), `"detail":"Missing x-vapi-signature header"`)
}

func TestMiddlewareRestoresBodyForNext(t *testing.T) {
	t.Parallel()

	var seen string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("read body: %v", err)
		}
		seen = string(body)
		w.WriteHeader(http.StatusOK)
	})
	handler := NewVerifier(testSecret, testLogger(nil)).Middleware(next)

	req := httptest.NewRequest(http.MethodPost, "/api/vapi-webhook", strings.NewReader(testBody))
	req.Header.Set(Header, Sign(testSecret, []byte(testBody)))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, testBody, seen)
}

func TestMiddlewarePassesThroughWhenDisabled(t *testing.T) {
	t.Parallel()

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	handler := NewVerifier("", testLogger(nil)).Middleware(next)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/vapi-webhook", strings.NewReader(testBody)))
	require.Equal(t, http.StatusNoContent, rec.Code)
}
