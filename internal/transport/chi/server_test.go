package chi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gochi "github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/Vishal01x/reflekt-proximity/internal/domain/location"
	"github.com/Vishal01x/reflekt-proximity/internal/feed"
	"github.com/Vishal01x/reflekt-proximity/internal/usecase/health"
	"github.com/Vishal01x/reflekt-proximity/internal/usecase/session"
	"github.com/Vishal01x/reflekt-proximity/internal/usecase/vocabulary"
)

// --- Stubs ---

type stubAreaWatch struct {
	results *feed.Feed[[]location.DiscoveryResult]
	errsF   *feed.Feed[error]
	done    chan struct{}
}

func (w *stubAreaWatch) Update(location.DiscoveryFilter) error { return nil }
func (w *stubAreaWatch) Results() *feed.Subscription[[]location.DiscoveryResult] {
	return w.results.Subscribe()
}
func (w *stubAreaWatch) Errors() *feed.Subscription[error] { return w.errsF.Subscribe() }
func (w *stubAreaWatch) Done() <-chan struct{}             { return w.done }
func (w *stubAreaWatch) Close() {
	select {
	case <-w.done:
		return
	default:
	}
	w.results.Close()
	w.errsF.Close()
	close(w.done)
}

type stubAreaWatcher struct{}

func (stubAreaWatcher) Watch(_ context.Context, _ string, _ location.DiscoveryFilter) (session.AreaWatch, error) {
	return &stubAreaWatch{
		results: feed.New[[]location.DiscoveryResult](),
		errsF:   feed.New[error](),
		done:    make(chan struct{}),
	}, nil
}

type stubTracker struct {
	tracked *feed.Feed[[]location.TrackedPosition]
}

func newStubTracker() *stubTracker {
	return &stubTracker{tracked: feed.New[[]location.TrackedPosition]()}
}

func (s *stubTracker) SetWatchSet([]string) error { return nil }
func (s *stubTracker) Tracked() *feed.Subscription[[]location.TrackedPosition] {
	return s.tracked.Subscribe()
}
func (s *stubTracker) Clear() {}
func (s *stubTracker) Close() { s.tracked.Close() }

type stubPublisher struct{}

func (stubPublisher) Run(ctx context.Context, _ string) error {
	<-ctx.Done()
	return ctx.Err()
}

type stubRemover struct{}

func (stubRemover) Delete(context.Context, string) error { return nil }

type stubVocabRepo struct {
	values map[string][]string
}

func (s *stubVocabRepo) Fetch(_ context.Context, category string) ([]string, error) {
	return s.values[category], nil
}

func (s *stubVocabRepo) Add(_ context.Context, category, value string) error {
	s.values[category] = append(s.values[category], value)
	return nil
}

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

// --- Helpers ---

func newTestServer(t *testing.T) (*gochi.Mux, *stubTracker) {
	t.Helper()
	tracker := newStubTracker()
	newSession := func(userID string) *session.Session {
		consent := session.NewConsentSwitch(location.ConsentState{})
		coord := session.NewCoordinator(
			userID, stubAreaWatcher{}, tracker, stubPublisher{}, stubRemover{}, consent,
			session.Options{TeardownGrace: time.Second}, nil,
		)
		return &session.Session{
			UserID:      userID,
			Coordinator: coord,
			Consent:     consent,
			Location:    &session.ReportedLocation{},
		}
	}

	vocab := vocabulary.New(&stubVocabRepo{values: map[string][]string{
		"role": {"developer", "designer"},
	}}, nil)
	healthSvc := health.New(stubPinger{}, nil)

	srv := NewServer(newSession, vocab, healthSvc, zap.NewNop())
	t.Cleanup(srv.CloseSessions)

	r := gochi.NewRouter()
	srv.Routes(r)
	return r, tracker
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		rd = bytes.NewReader(data)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func createSession(t *testing.T, router http.Handler, userID string) string {
	t.Helper()
	rr := doJSON(t, router, "POST", "/api/v1/sessions", createSessionRequest{UserID: userID})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create session: got %d: %s", rr.Code, rr.Body.String())
	}
	var resp sessionResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode session response: %v", err)
	}
	if resp.SessionID == "" {
		t.Fatal("empty session id")
	}
	return resp.SessionID
}

func grantConsent(t *testing.T, router http.Handler, id string) {
	t.Helper()
	rr := doJSON(t, router, "PUT", "/api/v1/sessions/"+id+"/consent", location.ConsentState{
		LocationPermissionGranted: true,
		GPSEnabled:                true,
		PrivacyOptedIn:            true,
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("put consent: got %d: %s", rr.Code, rr.Body.String())
	}
}

func areaFilter() areaSearchRequest {
	return areaSearchRequest{
		Center:   location.LatLng{Lat: 12.97, Lng: 77.59},
		RadiusKm: 5,
	}
}

func errCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var resp errorResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	return resp.Code
}

// --- Tests ---

func TestCreateSession(t *testing.T) {
	router, _ := newTestServer(t)

	rr := doJSON(t, router, "POST", "/api/v1/sessions", createSessionRequest{UserID: "user-1"})
	if rr.Code != http.StatusCreated {
		t.Fatalf("got %d, want %d", rr.Code, http.StatusCreated)
	}

	var resp sessionResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.UserID != "user-1" {
		t.Errorf("user_id: got %q", resp.UserID)
	}
	if resp.Mode != "inactive" {
		t.Errorf("mode: got %q, want inactive", resp.Mode)
	}
	if loc := rr.Header().Get("Location"); loc != "/api/v1/sessions/"+resp.SessionID {
		t.Errorf("Location header: got %q", loc)
	}
}

func TestCreateSession_MissingUserID(t *testing.T) {
	router, _ := newTestServer(t)

	rr := doJSON(t, router, "POST", "/api/v1/sessions", createSessionRequest{})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("got %d, want %d", rr.Code, http.StatusBadRequest)
	}
	if code := errCode(t, rr); code != codeValidationFailed {
		t.Errorf("code: got %q", code)
	}
}

func TestGetSession_NotFound(t *testing.T) {
	router, _ := newTestServer(t)

	rr := doJSON(t, router, "GET", "/api/v1/sessions/nope", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("got %d, want %d", rr.Code, http.StatusNotFound)
	}
	if code := errCode(t, rr); code != codeSessionNotFound {
		t.Errorf("code: got %q", code)
	}
}

func TestAreaSearch_Lifecycle(t *testing.T) {
	router, _ := newTestServer(t)
	id := createSession(t, router, "user-1")
	grantConsent(t, router, id)

	rr := doJSON(t, router, "POST", "/api/v1/sessions/"+id+"/area-search", areaFilter())
	if rr.Code != http.StatusOK {
		t.Fatalf("area-search: got %d: %s", rr.Code, rr.Body.String())
	}
	var resp sessionResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Mode != "area_search" {
		t.Errorf("mode: got %q, want area_search", resp.Mode)
	}

	f := areaFilter()
	f.RadiusKm = 10
	if rr := doJSON(t, router, "PUT", "/api/v1/sessions/"+id+"/filter", f); rr.Code != http.StatusNoContent {
		t.Fatalf("filter update: got %d: %s", rr.Code, rr.Body.String())
	}

	if rr := doJSON(t, router, "DELETE", "/api/v1/sessions/"+id, nil); rr.Code != http.StatusNoContent {
		t.Fatalf("delete: got %d", rr.Code)
	}
	if rr := doJSON(t, router, "GET", "/api/v1/sessions/"+id, nil); rr.Code != http.StatusNotFound {
		t.Fatalf("get after delete: got %d", rr.Code)
	}
}

func TestAreaSearch_DeniedWithoutConsent(t *testing.T) {
	router, _ := newTestServer(t)
	id := createSession(t, router, "user-1")

	rr := doJSON(t, router, "POST", "/api/v1/sessions/"+id+"/area-search", areaFilter())
	if rr.Code != http.StatusForbidden {
		t.Fatalf("got %d, want %d", rr.Code, http.StatusForbidden)
	}
	if code := errCode(t, rr); code != codePermissionDenied {
		t.Errorf("code: got %q", code)
	}
}

func TestAreaSearch_InvalidRadius(t *testing.T) {
	router, _ := newTestServer(t)
	id := createSession(t, router, "user-1")
	grantConsent(t, router, id)

	f := areaFilter()
	f.RadiusKm = 0
	rr := doJSON(t, router, "POST", "/api/v1/sessions/"+id+"/area-search", f)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("got %d, want %d", rr.Code, http.StatusBadRequest)
	}
	if code := errCode(t, rr); code != codeValidationFailed {
		t.Errorf("code: got %q", code)
	}
}

func TestUpdateFilter_WrongMode(t *testing.T) {
	router, _ := newTestServer(t)
	id := createSession(t, router, "user-1")

	rr := doJSON(t, router, "PUT", "/api/v1/sessions/"+id+"/filter", areaFilter())
	if rr.Code != http.StatusConflict {
		t.Fatalf("got %d, want %d", rr.Code, http.StatusConflict)
	}
	if code := errCode(t, rr); code != codeInvalidState {
		t.Errorf("code: got %q", code)
	}
}

func TestTargetedWatch_Lifecycle(t *testing.T) {
	router, _ := newTestServer(t)
	id := createSession(t, router, "user-1")

	rr := doJSON(t, router, "POST", "/api/v1/sessions/"+id+"/targeted-watch",
		watchSetRequest{UserIDs: []string{"alice", "bob"}})
	if rr.Code != http.StatusOK {
		t.Fatalf("targeted-watch: got %d: %s", rr.Code, rr.Body.String())
	}
	var resp sessionResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Mode != "targeted_watch" {
		t.Errorf("mode: got %q, want targeted_watch", resp.Mode)
	}

	rr = doJSON(t, router, "PUT", "/api/v1/sessions/"+id+"/watch-set",
		watchSetRequest{UserIDs: []string{"bob", "carol"}})
	if rr.Code != http.StatusNoContent {
		t.Fatalf("watch-set: got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestPutLocation(t *testing.T) {
	router, _ := newTestServer(t)
	id := createSession(t, router, "user-1")

	rr := doJSON(t, router, "PUT", "/api/v1/sessions/"+id+"/location",
		location.LatLng{Lat: 12.97, Lng: 77.59})
	if rr.Code != http.StatusNoContent {
		t.Fatalf("got %d: %s", rr.Code, rr.Body.String())
	}

	rr = doJSON(t, router, "PUT", "/api/v1/sessions/"+id+"/location",
		location.LatLng{Lat: 999, Lng: 77.59})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("invalid coords: got %d", rr.Code)
	}
}

func TestVocabulary_GetAndAdd(t *testing.T) {
	router, _ := newTestServer(t)

	rr := doJSON(t, router, "GET", "/api/v1/vocabulary/role", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("get: got %d: %s", rr.Code, rr.Body.String())
	}
	var resp vocabularyResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Values) != 2 {
		t.Fatalf("expected 2 values, got %v", resp.Values)
	}

	rr = doJSON(t, router, "POST", "/api/v1/vocabulary/role", addVocabularyRequest{Value: "mentor"})
	if rr.Code != http.StatusCreated {
		t.Fatalf("add: got %d: %s", rr.Code, rr.Body.String())
	}

	rr = doJSON(t, router, "POST", "/api/v1/vocabulary/role", addVocabularyRequest{Value: "mentor"})
	if rr.Code != http.StatusOK {
		t.Fatalf("duplicate add: got %d", rr.Code)
	}
	var addResp addVocabularyResponse
	if err := json.NewDecoder(rr.Body).Decode(&addResp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if addResp.Inserted {
		t.Error("duplicate must not report inserted")
	}
}

func TestVocabulary_UnknownCategory(t *testing.T) {
	router, _ := newTestServer(t)

	rr := doJSON(t, router, "GET", "/api/v1/vocabulary/color", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("got %d, want %d", rr.Code, http.StatusNotFound)
	}
	if code := errCode(t, rr); code != codeUnknownCategory {
		t.Errorf("code: got %q", code)
	}
}

func TestHealthCheck(t *testing.T) {
	router, _ := newTestServer(t)

	rr := doJSON(t, router, "GET", "/health", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("got %d: %s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), `"ok"`) {
		t.Errorf("unexpected body: %s", rr.Body.String())
	}
}

func TestStreamTracked_SSE(t *testing.T) {
	router, tracker := newTestServer(t)
	id := createSession(t, router, "user-1")

	rr := doJSON(t, router, "POST", "/api/v1/sessions/"+id+"/targeted-watch",
		watchSetRequest{UserIDs: []string{"alice"}})
	if rr.Code != http.StatusOK {
		t.Fatalf("targeted-watch: got %d", rr.Code)
	}

	tracker.tracked.Publish([]location.TrackedPosition{{
		UserID:   "alice",
		Position: location.LatLng{Lat: 12.97, Lng: 77.59},
	}})

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest("GET", "/api/v1/sessions/"+id+"/tracked", http.NoBody).WithContext(ctx)
	rec := httptest.NewRecorder()
	done := make(chan struct{})
	go func() {
		router.ServeHTTP(rec, req)
		close(done)
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stream handler did not stop on cancel")
	}

	body := rec.Body.String()
	if !strings.Contains(body, "data:") || !strings.Contains(body, "alice") {
		t.Fatalf("expected SSE event with tracked position, got %q", body)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("content type: got %q", ct)
	}
}
