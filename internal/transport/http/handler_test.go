package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fieldgate/internal/camera"
	"fieldgate/internal/identity"
	"fieldgate/internal/location"
	"fieldgate/internal/platform/metrics"
	pmemory "fieldgate/internal/profile/store/memory"
	"fieldgate/internal/verification"
	vmemory "fieldgate/internal/verification/store/memory"
	"fieldgate/pkg/testutil"
)

// =============================================================================
// Transport test doubles
// =============================================================================

type stubLocator struct{ fix location.Fix }

func (l *stubLocator) RequestFix(context.Context) (location.Fix, error)      { return l.fix, nil }
func (l *stubLocator) RequestQuickFix(context.Context) (location.Fix, error) { return l.fix, nil }
func (l *stubLocator) BypassFix() location.Fix {
	return location.Fix{Latitude: -3.33, Longitude: 115.79, Accuracy: 999, Source: location.SourceBypass}
}

type stubCamera struct{ tracks int }

func (c *stubCamera) Start(context.Context, camera.Facing) error { c.tracks = 1; return nil }
func (c *stubCamera) Switch(context.Context) error               { return nil }
func (c *stubCamera) CaptureFrame(context.Context) ([]byte, error) {
	return []byte{0xFF, 0xD8}, nil
}
func (c *stubCamera) Stop()             { c.tracks = 0 }
func (c *stubCamera) ActiveTracks() int { return c.tracks }

type stubDecoder struct{}

func (stubDecoder) Decode(string) (identity.Claim, bool) { return identity.Claim{}, false }

func newTestRouter(t *testing.T) (http.Handler, *pmemory.Store) {
	t.Helper()

	sink := pmemory.NewStore()
	service := verification.NewService(
		vmemory.NewStore(),
		&stubLocator{fix: location.Fix{Latitude: -3.45, Longitude: 114.83, Accuracy: 8, Source: location.SourceDevice}},
		func() verification.Camera { return &stubCamera{} },
		stubDecoder{},
		sink,
		"",
		verification.WithSyncDelay(0),
		verification.WithBypassAfter(0),
	)
	handler := New(service, slog.Default())
	return NewRouter(handler, slog.Default(), &metrics.Metrics{}), sink
}

func startSession(t *testing.T, router http.Handler) string {
	t.Helper()
	rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/api/v1/verification/sessions/", nil))
	testutil.AssertStatus(t, rr, http.StatusCreated)
	resp := testutil.UnmarshalResponse[SessionResponse](t, rr)
	require.NotEmpty(t, resp.SessionID)
	return resp.SessionID
}

func post(t *testing.T, router http.Handler, path string, body any) *SessionResponse {
	t.Helper()
	rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, path, body))
	testutil.AssertStatus(t, rr, http.StatusOK)
	return testutil.UnmarshalResponse[SessionResponse](t, rr)
}

// =============================================================================
// Happy path through the whole flow
// =============================================================================

func TestFullGuestFlowOverHTTP(t *testing.T) {
	router, sink := newTestRouter(t)

	sessionID := startSession(t, router)
	base := "/api/v1/verification/sessions/" + sessionID

	resp := post(t, router, base+"/role", map[string]string{"role": "guest"})
	assert.Equal(t, "identity", resp.Step)

	resp = post(t, router, base+"/identity", map[string]string{
		"name":  "Budi Santoso",
		"email": "budi@example.com",
	})
	assert.Equal(t, "contact", resp.Step)

	resp = post(t, router, base+"/contact", map[string]string{"phone": "0811-2233-4455"})
	assert.Equal(t, "terms", resp.Step)

	resp = post(t, router, base+"/terms/scroll", map[string]float64{
		"content_height":  2000,
		"viewport_height": 600,
		"scroll_top":      1400,
	})
	assert.True(t, resp.Consent.ScrolledToEnd)

	resp = post(t, router, base+"/terms/agreement", map[string]bool{"agreed": true})
	assert.True(t, resp.Consent.Agreed)

	resp = post(t, router, base+"/terms/confirm", nil)
	assert.Equal(t, "location", resp.Step)

	resp = post(t, router, base+"/location/acquire", nil)
	assert.Equal(t, "locked", resp.Location.Status)
	require.NotNil(t, resp.Location.Fix)
	assert.Equal(t, 4, resp.Location.Fix.SignalStrength)

	resp = post(t, router, base+"/location/confirm", nil)
	assert.Equal(t, "face_scan", resp.Step)

	resp = post(t, router, base+"/face/capture", nil)
	assert.True(t, resp.Biometric.Captured)
	assert.True(t, resp.Biometric.HasPhoto)

	resp = post(t, router, base+"/face/confirm", nil)
	assert.Equal(t, "final", resp.Step)
	assert.InDelta(t, 1.0, resp.Progress, 1e-9)

	rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, base+"/complete", nil))
	testutil.AssertStatus(t, rr, http.StatusOK)
	built := testutil.UnmarshalResponse[ProfileResponse](t, rr)
	assert.Equal(t, "Budi Santoso", built.Name)
	assert.Equal(t, "Portal Member", built.Jabatan)
	assert.Contains(t, built.Photo, "ui-avatars.com")
	require.NotNil(t, built.GPSLat)
	assert.InDelta(t, -3.45, *built.GPSLat, 1e-9)

	assert.Equal(t, 1, sink.Len())

	// The session is gone after completion.
	rr = testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, base+"/"))
	testutil.AssertStatus(t, rr, http.StatusNotFound)
}

// =============================================================================
// Error shapes
// =============================================================================

func TestHandlerErrorShapes(t *testing.T) {
	router, _ := newTestRouter(t)
	sessionID := startSession(t, router)
	base := "/api/v1/verification/sessions/" + sessionID

	t.Run("malformed session id is invalid input", func(t *testing.T) {
		rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/api/v1/verification/sessions/not-a-uuid/"))
		testutil.AssertStatus(t, rr, http.StatusBadRequest)
		testutil.AssertErrorCode(t, rr, "invalid_input")
	})

	t.Run("unknown role is refused by request validation", func(t *testing.T) {
		rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, base+"/role", map[string]string{"role": "root"}))
		testutil.AssertStatus(t, rr, http.StatusBadRequest)
		testutil.AssertErrorCode(t, rr, "invalid_input")
	})

	t.Run("out-of-order action maps to conflict", func(t *testing.T) {
		rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, base+"/contact", map[string]string{"phone": "0811223344"}))
		testutil.AssertStatus(t, rr, http.StatusConflict)
		testutil.AssertErrorCode(t, rr, "invalid_state")
	})

	t.Run("bad email is refused before the service runs", func(t *testing.T) {
		_ = post(t, router, base+"/role", map[string]string{"role": "guest"})
		rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, base+"/identity", map[string]string{
			"name":  "Budi",
			"email": "nope",
		}))
		testutil.AssertStatus(t, rr, http.StatusBadRequest)
	})

	t.Run("unknown session is not found", func(t *testing.T) {
		rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet,
			"/api/v1/verification/sessions/00000000-0000-0000-0000-000000000001/"))
		testutil.AssertStatus(t, rr, http.StatusNotFound)
		testutil.AssertErrorCode(t, rr, "not_found")
	})
}

func TestCancelEndpoint(t *testing.T) {
	router, sink := newTestRouter(t)
	sessionID := startSession(t, router)
	base := "/api/v1/verification/sessions/" + sessionID

	rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodDelete, base+"/"))
	testutil.AssertStatus(t, rr, http.StatusNoContent)
	assert.Equal(t, 0, sink.Len())

	// Cancel is idempotent from the client's point of view.
	rr = testutil.DoRequest(router, testutil.NewRequest(t, http.MethodDelete, base+"/"))
	testutil.AssertStatus(t, rr, http.StatusNoContent)
}

func TestBackEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)
	sessionID := startSession(t, router)
	base := "/api/v1/verification/sessions/" + sessionID

	_ = post(t, router, base+"/role", map[string]string{"role": "guest"})
	resp := post(t, router, base+"/back", nil)
	assert.Equal(t, "welcome", resp.Step)

	// Backing out of the first step destroys the session.
	rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, base+"/back", nil))
	testutil.AssertStatus(t, rr, http.StatusOK)
	cancelled := testutil.UnmarshalResponse[CancelledResponse](t, rr)
	assert.True(t, cancelled.Cancelled)

	rr = testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, base+"/"))
	testutil.AssertStatus(t, rr, http.StatusNotFound)
}

func TestDesktopDeviceGetsImmediateBypass(t *testing.T) {
	router, _ := newTestRouter(t)

	req := testutil.NewJSONRequest(t, http.MethodPost, "/api/v1/verification/sessions/", nil)
	req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36")
	rr := testutil.DoRequest(router, req)
	testutil.AssertStatus(t, rr, http.StatusCreated)
	resp := testutil.UnmarshalResponse[SessionResponse](t, rr)

	base := fmt.Sprintf("/api/v1/verification/sessions/%s", resp.SessionID)
	_ = post(t, router, base+"/role", map[string]string{"role": "guest"})
	_ = post(t, router, base+"/identity", map[string]string{"name": "Budi", "email": "budi@example.com"})
	_ = post(t, router, base+"/contact", map[string]string{"phone": "0811223344"})
	_ = post(t, router, base+"/terms/scroll", map[string]float64{"content_height": 500, "viewport_height": 600, "scroll_top": 0})
	_ = post(t, router, base+"/terms/agreement", map[string]bool{"agreed": true})
	_ = post(t, router, base+"/terms/confirm", nil)

	got := post(t, router, base+"/location/bypass", nil)
	assert.Equal(t, "locked", got.Location.Status)
	require.NotNil(t, got.Location.Fix)
	assert.Equal(t, "bypass", got.Location.Fix.Source)
	assert.Equal(t, 1, got.Location.Fix.SignalStrength)
}
