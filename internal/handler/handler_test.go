package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"mentormatch/internal/app/notification"
	"mentormatch/internal/app/realtime"
	"mentormatch/internal/app/user"
	"mentormatch/internal/configs"
	"mentormatch/internal/pkg/auth/jwt"
	"mentormatch/internal/pkg/errs"
	"mentormatch/internal/pkg/metrics"
	"mentormatch/internal/pkg/pow"
	"mentormatch/internal/pkg/resp"
)

const testSecret = "handler-test-secret"

type testEnv struct {
	srv     *httptest.Server
	deps    *AppDeps
	users   *user.MemoryStore
	metrics *metrics.Metrics
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	hub := realtime.NewHub(realtime.Options{Metrics: m})
	go hub.Run()
	t.Cleanup(func() {
		hub.Stop()
		<-hub.Done()
	})

	challenger := pow.NewChallenger(1)
	t.Cleanup(challenger.Stop)

	limiters := NewLimiters()
	t.Cleanup(limiters.Stop)

	users := user.NewMemoryStore()
	deps := &AppDeps{
		Config:        &configs.AppConfig{Environment: "development", JWTSecret: testSecret, TypingTimeoutMS: 3000, ActivityLogSize: 200},
		Hub:           hub,
		Users:         users,
		Verifier:      user.NewTokenVerifier(testSecret, users),
		Notifications: notification.NewService(notification.NewMemoryStore(), hub),
		Challenger:    challenger,
		Limiters:      limiters,
		Metrics:       m,
		Gatherer:      reg,
	}

	srv := httptest.NewServer(Router(deps))
	t.Cleanup(srv.Close)

	return &testEnv{srv: srv, deps: deps, users: users, metrics: m}
}

// account stores a user and returns a token for it.
func (e *testEnv) account(t *testing.T, id string) string {
	t.Helper()
	identity := user.Identity{ID: id, Name: "User " + id, Email: id + "@example.com", Role: user.RoleMentee}
	if err := e.users.Create(context.Background(), &user.Account{Identity: identity, PasswordHash: "-"}); err != nil {
		t.Fatalf("Create(%s) error = %v", id, err)
	}
	token, err := jwt.GenerateToken(identity.Payload(), testSecret, time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}
	return token
}

func (e *testEnv) wsURL() string {
	return "ws" + strings.TrimPrefix(e.srv.URL, "http") + "/ws"
}

func (e *testEnv) dial(t *testing.T, token string) *websocket.Conn {
	t.Helper()
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	conn, _, err := websocket.DefaultDialer.Dial(e.wsURL(), header)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any, header map[string]string) (*http.Response, resp.JSONResponse) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, e.srv.URL+path, reader)
	if err != nil {
		t.Fatal(err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}

	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("%s %s error = %v", method, path, err)
	}
	defer res.Body.Close()

	var out resp.JSONResponse
	raw, _ := io.ReadAll(res.Body)
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &out)
	}
	return res, out
}

func readEvent(t *testing.T, conn *websocket.Conn) realtime.Envelope {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage() error = %v", err)
	}
	env, err := realtime.DecodeEnvelope(raw)
	if err != nil {
		t.Fatalf("DecodeEnvelope(%s) error = %v", raw, err)
	}
	return env
}

// readUntil skips frames until one named event arrives.
func readUntil(t *testing.T, conn *websocket.Conn, event string) realtime.Envelope {
	t.Helper()
	for i := 0; i < 10; i++ {
		if env := readEvent(t, conn); env.Event == event {
			return env
		}
	}
	t.Fatalf("no %s event received", event)
	return realtime.Envelope{}
}

// readPresenceOf skips frames until a presence_update for userID arrives.
func readPresenceOf(t *testing.T, conn *websocket.Conn, userID string) realtime.PresenceEvent {
	t.Helper()
	for i := 0; i < 10; i++ {
		env := readUntil(t, conn, realtime.EventPresenceUpdate)
		var ev realtime.PresenceEvent
		if err := json.Unmarshal(env.Data, &ev); err != nil {
			t.Fatal(err)
		}
		if ev.UserID == userID {
			return ev
		}
	}
	t.Fatalf("no presence_update for %s received", userID)
	return realtime.PresenceEvent{}
}

func dataMap(t *testing.T, data any) map[string]any {
	t.Helper()
	raw, _ := json.Marshal(data)
	out := map[string]any{}
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("data %s is not an object", raw)
	}
	return out
}

func TestWebSocketRejectsMissingToken(t *testing.T) {
	env := newTestEnv(t)

	_, res, err := websocket.DefaultDialer.Dial(env.wsURL(), nil)
	if err != websocket.ErrBadHandshake {
		t.Fatalf("Dial() error = %v, want ErrBadHandshake", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", res.StatusCode)
	}
	var body resp.JSONResponse
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Code != errs.ErrAuthTokenMissing || body.Message != "Authentication token missing" {
		t.Fatalf("body = %+v", body)
	}

	stats, err := env.deps.Hub.Stats(context.Background())
	if err != nil || stats.Connections != 0 {
		t.Fatalf("Stats() = %+v, %v; rejected handshake must not register", stats, err)
	}
	if got := testutil.ToFloat64(env.metrics.AdmissionsRejected.WithLabelValues("missing_token")); got != 1 {
		t.Fatalf("missing_token rejections = %v, want 1", got)
	}
}

func TestWebSocketRejectsBadTokens(t *testing.T) {
	env := newTestEnv(t)

	forged, _ := jwt.GenerateToken(&jwt.Payload{ID: "u1"}, "other-secret", time.Hour)
	deleted, _ := jwt.GenerateToken(&jwt.Payload{ID: "ghost"}, testSecret, time.Hour)

	for name, token := range map[string]string{"garbage": "not-a-jwt", "forged": forged, "deleted account": deleted} {
		_, res, err := websocket.DefaultDialer.Dial(env.wsURL()+"?token="+token, nil)
		if err == nil {
			t.Fatalf("%s: Dial() succeeded", name)
		}
		var body resp.JSONResponse
		_ = json.NewDecoder(res.Body).Decode(&body)
		res.Body.Close()
		if res.StatusCode != http.StatusUnauthorized || body.Code != errs.ErrAuthTokenInvalid {
			t.Fatalf("%s: status %d body %+v", name, res.StatusCode, body)
		}
	}
}

func TestWebSocketPresenceAcrossUsers(t *testing.T) {
	env := newTestEnv(t)
	mentor := env.dial(t, env.account(t, "mentor"))

	snapshot := readEvent(t, mentor)
	if snapshot.Event != realtime.EventPresenceSnapshot {
		t.Fatalf("first frame = %s, want presence_snapshot", snapshot.Event)
	}

	mentee := env.dial(t, env.account(t, "mentee"))
	readUntil(t, mentee, realtime.EventPresenceSnapshot)

	if ev := readPresenceOf(t, mentor, "mentor"); ev.Status != realtime.StatusOnline {
		t.Fatalf("own presence update = %+v", ev)
	}
	if ev := readPresenceOf(t, mentor, "mentee"); ev.Status != realtime.StatusOnline {
		t.Fatalf("mentee presence update = %+v", ev)
	}

	observer := env.account(t, "observer")
	_, body := env.do(t, http.MethodGet, "/api/presence", observer, nil, nil)
	users, _ := dataMap(t, body.Data)["users"].([]any)
	if len(users) != 2 {
		t.Fatalf("GET /api/presence users = %v, want 2", users)
	}

	frame, _ := realtime.Encode(realtime.EventSessionActivity, map[string]any{
		"sessionId": 7,
		"activity":  map[string]any{"type": "note", "content": "hello"},
	})
	if err := mentee.WriteMessage(websocket.TextMessage, frame); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		_, body = env.do(t, http.MethodGet, "/api/sessions/7/activity", observer, nil, nil)
		entries, _ := dataMap(t, body.Data)["entries"].([]any)
		if len(entries) == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("session 7 history = %+v", body.Data)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestAuthFlow(t *testing.T) {
	env := newTestEnv(t)

	register := map[string]string{
		"name":     "Ada",
		"email":    "Ada@Example.com",
		"password": "secret123",
		"role":     user.RoleMentor,
	}

	res, body := env.do(t, http.MethodPost, "/api/auth/register", "", register, nil)
	if res.StatusCode != http.StatusForbidden || body.Code != errs.ErrPowChallengeRequired {
		t.Fatalf("register without proof: %d %+v", res.StatusCode, body)
	}

	_, body = env.do(t, http.MethodGet, "/api/auth/challenge", "", nil, nil)
	challenge := dataMap(t, body.Data)
	nonce, _ := challenge["nonce"].(string)
	counter := pow.Solve(nonce, int(challenge["difficulty"].(float64)))

	_, body = env.do(t, http.MethodPost, "/api/auth/challenge", "", map[string]string{"nonce": nonce, "counter": counter}, nil)
	powToken, _ := dataMap(t, body.Data)["powToken"].(string)
	if powToken == "" {
		t.Fatalf("solve challenge: %+v", body)
	}

	res, body = env.do(t, http.MethodPost, "/api/auth/register", "", register, map[string]string{pow.TokenHeaderKey: powToken})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("register: %d %+v", res.StatusCode, body)
	}
	registered := dataMap(t, body.Data)
	if dataMap(t, registered["user"])["email"] != "ada@example.com" {
		t.Fatalf("registered user = %+v", registered["user"])
	}

	res, body = env.do(t, http.MethodPost, "/api/auth/register", "", register, map[string]string{pow.TokenHeaderKey: powToken})
	if body.Code != errs.ErrPowChallengeRequired {
		t.Fatalf("proof token replay: %d %+v", res.StatusCode, body)
	}

	_, body = env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "ada@example.com", "password": "wrong-pass"}, nil)
	if body.Code != errs.ErrInvalidCredentials {
		t.Fatalf("login with wrong password: %+v", body)
	}

	_, body = env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "ADA@example.com", "password": "secret123"}, nil)
	token, _ := dataMap(t, body.Data)["token"].(string)
	if token == "" {
		t.Fatalf("login: %+v", body)
	}

	_, body = env.do(t, http.MethodGet, "/api/auth/me", token, nil, nil)
	me := dataMap(t, dataMap(t, body.Data)["user"])
	if me["name"] != "Ada" || me["role"] != user.RoleMentor {
		t.Fatalf("me = %+v", me)
	}

	res, body = env.do(t, http.MethodPost, "/api/auth/login", token, map[string]string{"email": "ada@example.com", "password": "secret123"}, nil)
	if res.StatusCode != http.StatusConflict || body.Code != errs.ErrAlreadyLoggedIn {
		t.Fatalf("login while signed in: %d %+v", res.StatusCode, body)
	}
}

func TestRegisterValidation(t *testing.T) {
	env := newTestEnv(t)
	env.deps.Challenger = nil

	tests := []struct {
		name string
		in   map[string]string
		code int
	}{
		{"bad email", map[string]string{"name": "A", "email": "nope", "password": "secret123", "role": "mentee"}, errs.ErrInvalidEmail},
		{"short password", map[string]string{"name": "A", "email": "a@b.co", "password": "123", "role": "mentee"}, errs.ErrInvalidPassword},
		{"admin role", map[string]string{"name": "A", "email": "a@b.co", "password": "secret123", "role": "admin"}, errs.ErrInvalidRole},
		{"empty name", map[string]string{"name": " ", "email": "a@b.co", "password": "secret123", "role": "mentee"}, errs.ErrInvalidParams},
	}
	for _, tt := range tests {
		_, body := env.do(t, http.MethodPost, "/api/auth/register", "", tt.in, nil)
		if body.Code != tt.code {
			t.Errorf("%s: code = %d, want %d", tt.name, body.Code, tt.code)
		}
	}

	ok := map[string]string{"name": "A", "email": "a@b.co", "password": "secret123", "role": "mentee"}
	if _, body := env.do(t, http.MethodPost, "/api/auth/register", "", ok, nil); body.Code != 0 {
		t.Fatalf("register: %+v", body)
	}
	if _, body := env.do(t, http.MethodPost, "/api/auth/register", "", ok, nil); body.Code != errs.ErrUserAlreadyExists {
		t.Fatalf("duplicate register: %+v", body)
	}
}

func TestNotificationLifecycle(t *testing.T) {
	env := newTestEnv(t)
	mentorToken := env.account(t, "mentor")
	menteeToken := env.account(t, "mentee")

	conn := env.dial(t, menteeToken)
	readUntil(t, conn, realtime.EventPresenceSnapshot)

	res, body := env.do(t, http.MethodPost, "/api/notifications", mentorToken, map[string]any{
		"userId":  "mentee",
		"title":   "Session booked",
		"message": "Tomorrow at 10:00",
		"type":    notification.TypeSession,
	}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("create: %d %+v", res.StatusCode, body)
	}
	id, _ := dataMap(t, body.Data)["id"].(string)

	pushed := readUntil(t, conn, notification.EventNotification)
	var payload notification.Pushed
	if err := json.Unmarshal(pushed.Data, &payload); err != nil {
		t.Fatal(err)
	}
	if payload.Notification.ID != id || payload.UnreadCount != 1 {
		t.Fatalf("pushed = %+v", payload)
	}

	_, body = env.do(t, http.MethodGet, "/api/notifications/unread-count", menteeToken, nil, nil)
	if dataMap(t, body.Data)["count"] != float64(1) {
		t.Fatalf("unread-count = %+v", body.Data)
	}

	_, body = env.do(t, http.MethodGet, "/api/notifications?unread=true", mentorToken, nil, nil)
	if list, _ := dataMap(t, body.Data)["notifications"].([]any); len(list) != 0 {
		t.Fatalf("mentor sees mentee notifications: %v", list)
	}

	if _, body = env.do(t, http.MethodPut, "/api/notifications/"+id+"/read", mentorToken, nil, nil); body.Code != errs.ErrNotificationNotFound {
		t.Fatalf("mark read by another user: %+v", body)
	}
	if _, body = env.do(t, http.MethodPut, "/api/notifications/"+id+"/read", menteeToken, nil, nil); body.Code != 0 {
		t.Fatalf("mark read: %+v", body)
	}

	_, body = env.do(t, http.MethodGet, "/api/notifications", menteeToken, nil, nil)
	list, _ := dataMap(t, body.Data)["notifications"].([]any)
	if len(list) != 1 || dataMap(t, list[0])["read"] != true {
		t.Fatalf("list = %v", list)
	}

	if _, body = env.do(t, http.MethodDelete, "/api/notifications/"+id, menteeToken, nil, nil); body.Code != 0 {
		t.Fatalf("delete: %+v", body)
	}
	if res, body = env.do(t, http.MethodDelete, "/api/notifications/"+id, menteeToken, nil, nil); res.StatusCode != http.StatusNotFound {
		t.Fatalf("second delete: %d %+v", res.StatusCode, body)
	}

	if _, body = env.do(t, http.MethodPost, "/api/notifications", mentorToken, map[string]any{"userId": "mentee", "title": "x", "type": "bogus"}, nil); body.Code != errs.ErrInvalidParams {
		t.Fatalf("invalid type: %+v", body)
	}
}

func TestProtectedRoutes(t *testing.T) {
	env := newTestEnv(t)
	token := env.account(t, "u1")

	res, body := env.do(t, http.MethodGet, "/api/presence", "", nil, nil)
	if res.StatusCode != http.StatusUnauthorized || body.Code != errs.ErrUnauthorized {
		t.Fatalf("anonymous presence: %d %+v", res.StatusCode, body)
	}

	if _, body = env.do(t, http.MethodGet, "/api/sessions/bad!id/activity", token, nil, nil); body.Code != errs.ErrSessionIDInvalid {
		t.Fatalf("invalid session id: %+v", body)
	}

	res, body = env.do(t, http.MethodPost, "/api/sessions/42/resources/presign", token, PresignUploadInput{FileName: "a.pdf", MimeType: "application/pdf", FileSize: 10}, nil)
	if res.StatusCode != http.StatusServiceUnavailable || body.Code != errs.ErrFileStorageDisabled {
		t.Fatalf("presign without storage: %d %+v", res.StatusCode, body)
	}
}

type fakeStorage struct{ lastKey string }

func (f *fakeStorage) PresignUpload(_ context.Context, key, _ string, _ int64, _ time.Duration) (string, error) {
	f.lastKey = key
	return "https://storage.test/put/" + key, nil
}

func (f *fakeStorage) PresignDownload(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://storage.test/get/" + key, nil
}

func TestResourcePresign(t *testing.T) {
	env := newTestEnv(t)
	store := &fakeStorage{}
	env.deps.Storage = store
	token := env.account(t, "u1")

	_, body := env.do(t, http.MethodPost, "/api/sessions/42/resources/presign", token, PresignUploadInput{FileName: "a.exe", MimeType: "application/octet-stream", FileSize: 10}, nil)
	if body.Code != errs.ErrFileTypeInvalid {
		t.Fatalf("bad type: %+v", body)
	}

	_, body = env.do(t, http.MethodPost, "/api/sessions/42/resources/presign", token, PresignUploadInput{FileName: "Notes.PDF", MimeType: "application/pdf", FileSize: 1024}, nil)
	data := dataMap(t, body.Data)
	key, _ := data["fileKey"].(string)
	if !strings.HasPrefix(key, "sessions/42/") || !strings.HasSuffix(key, ".pdf") || store.lastKey != key {
		t.Fatalf("presign = %+v", data)
	}

	res, _ := env.do(t, http.MethodGet, "/api/files/download?k="+key, token, nil, nil)
	if res.StatusCode != http.StatusFound || res.Header.Get("Location") != "https://storage.test/get/"+key {
		t.Fatalf("download: %d %s", res.StatusCode, res.Header.Get("Location"))
	}

	if _, body = env.do(t, http.MethodGet, "/api/files/download?k=other/key.pdf", token, nil, nil); body.Code != errs.ErrInvalidParams {
		t.Fatalf("foreign key: %+v", body)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	env := newTestEnv(t)

	_, body := env.do(t, http.MethodGet, "/health", "", nil, nil)
	if data := dataMap(t, body.Data); data["status"] != "ok" || data["realtime"] == nil {
		t.Fatalf("health = %+v", body.Data)
	}

	_, body = env.do(t, http.MethodGet, "/api/realtime/config", env.account(t, "u1"), nil, nil)
	if data := dataMap(t, body.Data); data["typingTimeoutMs"] != float64(3000) || data["activityLogSize"] != float64(200) {
		t.Fatalf("realtime config = %+v", body.Data)
	}

	res, err := http.Get(env.srv.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer res.Body.Close()
	raw, _ := io.ReadAll(res.Body)
	if !strings.Contains(string(raw), "mentormatch_") {
		t.Fatalf("metrics output missing mentormatch series:\n%s", raw)
	}
}
