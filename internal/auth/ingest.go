package auth

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Headers of a signed reading upload.
const (
	HeaderDeviceID  = "X-Device-Id"
	HeaderTimestamp = "X-Ingest-Timestamp"
	HeaderSignature = "X-Ingest-Signature"
)

// KeyResolver returns the signing key of a meter.
type KeyResolver func(deviceID string) ([]byte, bool)

// SharedKey signs every meter with the same secret.
func SharedKey(secret []byte) KeyResolver {
	return func(string) ([]byte, bool) {
		return secret, len(secret) > 0
	}
}

// DeviceKeys resolves per-meter keys, falling back to shared when set.
func DeviceKeys(keys map[string][]byte, shared []byte) KeyResolver {
	return func(deviceID string) ([]byte, bool) {
		if key, ok := keys[deviceID]; ok {
			return key, true
		}
		return shared, len(shared) > 0
	}
}

// ParseDeviceKeys parses "Room1:secret1,ESP32:secret2".
func ParseDeviceKeys(value string) (map[string][]byte, error) {
	keys := make(map[string][]byte)
	for _, pair := range strings.Split(value, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		deviceID, key, ok := strings.Cut(pair, ":")
		deviceID = strings.TrimSpace(deviceID)
		key = strings.TrimSpace(key)
		if !ok || deviceID == "" || key == "" {
			return nil, fmt.Errorf("%w: %q", ErrInvalidDeviceKey, pair)
		}
		keys[deviceID] = []byte(key)
	}
	return keys, nil
}

// IngestAuthMiddleware checks that a reading upload was signed by the meter
// named in X-Device-Id. The verified device id is stored in the request
// context so the handler can refuse items addressed to another meter.
type IngestAuthMiddleware struct {
	Keys    KeyResolver
	MaxSkew time.Duration
	now     func() time.Time
}

// NewIngestAuthMiddleware constructs ingest auth middleware.
func NewIngestAuthMiddleware(keys KeyResolver, maxSkew time.Duration) *IngestAuthMiddleware {
	return &IngestAuthMiddleware{Keys: keys, MaxSkew: maxSkew, now: time.Now}
}

// Wrap enforces ingest signature validation.
func (m *IngestAuthMiddleware) Wrap(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "read body error", http.StatusBadRequest)
			return
		}
		_ = r.Body.Close()

		deviceID, err := m.verify(r.Header, body)
		if err != nil {
			status := http.StatusUnauthorized
			if errors.Is(err, ErrUnknownDevice) {
				status = http.StatusForbidden
			}
			http.Error(w, err.Error(), status)
			return
		}

		r = r.WithContext(WithDevice(r.Context(), deviceID))
		r.Body = io.NopCloser(bytes.NewReader(body))
		next.ServeHTTP(w, r)
	})
}

func (m *IngestAuthMiddleware) verify(header http.Header, body []byte) (string, error) {
	deviceID := strings.TrimSpace(header.Get(HeaderDeviceID))
	timestamp := strings.TrimSpace(header.Get(HeaderTimestamp))
	signature := strings.ToLower(strings.TrimSpace(header.Get(HeaderSignature)))
	if deviceID == "" || timestamp == "" || signature == "" {
		return "", ErrMissingSignature
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return "", fmt.Errorf("%w: timestamp %q", ErrBadSignature, timestamp)
	}
	now := time.Now
	if m.now != nil {
		now = m.now
	}
	skew := now().Sub(time.Unix(ts, 0))
	if skew < 0 {
		skew = -skew
	}
	if m.MaxSkew > 0 && skew > m.MaxSkew {
		return "", ErrStaleSignature
	}

	if m.Keys == nil {
		return "", ErrUnknownDevice
	}
	key, ok := m.Keys(deviceID)
	if !ok || len(key) == 0 {
		return "", fmt.Errorf("%w: %s", ErrUnknownDevice, deviceID)
	}
	if !hmac.Equal([]byte(signature), []byte(SignIngest(key, deviceID, timestamp, body))) {
		return "", ErrBadSignature
	}
	return deviceID, nil
}

// SignIngest returns the hex HMAC-SHA256 of "timestamp\ndeviceID\nbody".
func SignIngest(key []byte, deviceID, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, key)
	_, _ = mac.Write([]byte(timestamp))
	_, _ = mac.Write([]byte("\n"))
	_, _ = mac.Write([]byte(deviceID))
	_, _ = mac.Write([]byte("\n"))
	_, _ = mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// DeviceMatches reports whether deviceID may be written by the request.
// Unsigned requests carry no device and match any id.
func DeviceMatches(ctx context.Context, deviceID string) bool {
	signed := DeviceFromContext(ctx)
	return signed == "" || signed == deviceID
}
