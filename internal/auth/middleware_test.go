package auth

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func mustToken(t *testing.T, secret []byte, role Role) string {
	t.Helper()
	token, err := IssueJWT(secret, "user-1", role, time.Hour, time.Now().Add(-time.Minute))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func TestAuthMiddleware_NoToken(t *testing.T) {
	mw := NewMiddleware([]byte("test-secret"), NewDefaultPolicy(nil, nil))
	req := httptest.NewRequest(http.MethodGet, "/api/v1/devices", nil)
	resp := httptest.NewRecorder()
	mw.Wrap(okHandler()).ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
}

func TestAuthMiddleware_ViewerCanRead(t *testing.T) {
	secret := []byte("test-secret")
	mw := NewMiddleware(secret, NewDefaultPolicy(nil, nil))
	var role Role
	handler := mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		role = RoleFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))
	req := httptest.NewRequest(http.MethodGet, "/api/v1/devices/Room1/usage", nil)
	req.Header.Set("Authorization", "Bearer "+mustToken(t, secret, RoleViewer))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK || role != RoleViewer {
		t.Fatalf("expected 200 as viewer, got %d role=%q", resp.Code, role)
	}
}

func TestAuthMiddleware_ViewerForbiddenRollupTrigger(t *testing.T) {
	secret := []byte("test-secret")
	mw := NewMiddleware(secret, NewDefaultPolicy(nil, nil))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/rollups", nil)
	req.Header.Set("Authorization", "Bearer "+mustToken(t, secret, RoleViewer))
	resp := httptest.NewRecorder()
	mw.Wrap(okHandler()).ServeHTTP(resp, req)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/v1/rollups", nil)
	req.Header.Set("Authorization", "Bearer "+mustToken(t, secret, RoleAdmin))
	resp = httptest.NewRecorder()
	mw.Wrap(okHandler()).ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin, got %d", resp.Code)
	}
}

func TestAuthMiddleware_ExemptPaths(t *testing.T) {
	mw := NewMiddleware([]byte("test-secret"), NewDefaultPolicy([]string{"/healthz", "/metrics"}, []string{"/ingest/"}))
	for _, path := range []string{"/healthz", "/metrics", "/ingest/readings"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		resp := httptest.NewRecorder()
		mw.Wrap(okHandler()).ServeHTTP(resp, req)
		if resp.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, resp.Code)
		}
	}
}

func TestParseJWTRejects(t *testing.T) {
	secret := []byte("test-secret")
	if _, err := ParseJWT("", secret); !errors.Is(err, ErrEmptyToken) {
		t.Fatalf("expected ErrEmptyToken, got %v", err)
	}
	token := mustToken(t, secret, RoleAdmin)
	if _, err := ParseJWT(token, []byte("other")); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
	expired, _ := IssueJWT(secret, "user-1", RoleViewer, time.Minute, time.Now().Add(-time.Hour))
	if _, err := ParseJWT(expired, secret); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected expired token rejected, got %v", err)
	}
	if _, err := IssueJWT(secret, "user-1", Role("operator"), time.Minute, time.Now()); !errors.Is(err, ErrInvalidRole) {
		t.Fatalf("expected ErrInvalidRole, got %v", err)
	}
}

func TestAuthMiddleware_ReportDownloadAcceptsQueryToken(t *testing.T) {
	secret := []byte("test-secret")
	mw := NewMiddleware(secret, NewDefaultPolicy(nil, nil))
	token := mustToken(t, secret, RoleViewer)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/devices/Room1/report?format=pdf&access_token="+token, nil)
	resp := httptest.NewRecorder()
	mw.Wrap(okHandler()).ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected report download with query token, got %d", resp.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/devices/Room1/usage?access_token="+token, nil)
	resp = httptest.NewRecorder()
	mw.Wrap(okHandler()).ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected query token refused outside reports, got %d", resp.Code)
	}
	if resp.Header().Get("WWW-Authenticate") == "" {
		t.Fatalf("expected WWW-Authenticate challenge")
	}
}

type ingestCall struct {
	device  string
	headers map[string]string
	body    string
}

func signedIngest(key []byte, device string, ts time.Time, body string) ingestCall {
	stamp := strconv.FormatInt(ts.Unix(), 10)
	return ingestCall{
		device: device,
		body:   body,
		headers: map[string]string{
			HeaderDeviceID:  device,
			HeaderTimestamp: stamp,
			HeaderSignature: SignIngest(key, device, stamp, []byte(body)),
		},
	}
}

func TestIngestAuthMiddleware(t *testing.T) {
	now := time.Unix(1700000000, 0)
	roomKey := []byte("room-key")
	keys, err := ParseDeviceKeys("Room1:room-key, ESP32:esp-key")
	if err != nil {
		t.Fatalf("parse keys: %v", err)
	}
	mw := NewIngestAuthMiddleware(DeviceKeys(keys, nil), 5*time.Minute)
	mw.now = func() time.Time { return now }

	var seenBody, seenDevice string
	handler := mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		seenBody = string(data)
		seenDevice = DeviceFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	body := `{"device_id":"Room1","items":[{"sortkey":1700000000,"reading":120}]}`
	tests := []struct {
		name string
		call ingestCall
		want int
	}{
		{name: "signed", call: signedIngest(roomKey, "Room1", now, body), want: http.StatusOK},
		{name: "stale", call: signedIngest(roomKey, "Room1", now.Add(-10*time.Minute), body), want: http.StatusUnauthorized},
		{name: "other meter key", call: signedIngest([]byte("esp-key"), "Room1", now, body), want: http.StatusUnauthorized},
		{name: "unknown meter", call: signedIngest(roomKey, "Garage", now, body), want: http.StatusForbidden},
		{name: "unsigned", call: ingestCall{body: body}, want: http.StatusUnauthorized},
	}
	for _, tt := range tests {
		seenBody, seenDevice = "", ""
		req := httptest.NewRequest(http.MethodPost, "/ingest/readings", strings.NewReader(tt.call.body))
		for k, v := range tt.call.headers {
			req.Header.Set(k, v)
		}
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)
		if resp.Code != tt.want {
			t.Fatalf("%s: expected %d, got %d", tt.name, tt.want, resp.Code)
		}
		if tt.want == http.StatusOK && (seenBody != body || seenDevice != "Room1") {
			t.Fatalf("%s: expected body and device passed on, got body=%q device=%q", tt.name, seenBody, seenDevice)
		}
	}
}

func TestIngestKeysAndDeviceMatch(t *testing.T) {
	if _, err := ParseDeviceKeys("Room1"); !errors.Is(err, ErrInvalidDeviceKey) {
		t.Fatalf("expected ErrInvalidDeviceKey, got %v", err)
	}
	keys, err := ParseDeviceKeys("")
	if err != nil || len(keys) != 0 {
		t.Fatalf("expected empty key list, got %v err=%v", keys, err)
	}

	resolve := DeviceKeys(map[string][]byte{"Room1": []byte("own")}, []byte("shared"))
	if key, ok := resolve("Room1"); !ok || string(key) != "own" {
		t.Fatalf("expected device key, got %q", key)
	}
	if key, ok := resolve("ESP32"); !ok || string(key) != "shared" {
		t.Fatalf("expected shared key fallback, got %q", key)
	}
	if _, ok := SharedKey(nil)("Room1"); ok {
		t.Fatalf("expected empty shared key unresolved")
	}

	ctx := WithDevice(httptest.NewRequest(http.MethodPost, "/", nil).Context(), "Room1")
	if !DeviceMatches(ctx, "Room1") || DeviceMatches(ctx, "ESP32") {
		t.Fatalf("unexpected device match result")
	}
	if !DeviceMatches(httptest.NewRequest(http.MethodPost, "/", nil).Context(), "ESP32") {
		t.Fatalf("expected unsigned request to match any device")
	}
}
