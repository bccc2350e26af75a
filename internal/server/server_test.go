package server

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mindwell-dev/mindwell/internal/analyzer"
	"github.com/mindwell-dev/mindwell/internal/emotion"
	"github.com/mindwell-dev/mindwell/internal/orchestrator"
	"github.com/mindwell-dev/mindwell/internal/responder"
	"github.com/mindwell-dev/mindwell/pkg/guard"
	"github.com/mindwell-dev/mindwell/pkg/store"
)

func newTestServer(t *testing.T, limiter *guard.RateLimiter) *httptest.Server {
	t.Helper()

	analyzers := &analyzer.Set{
		Text:  analyzer.NewMock(emotion.ModalityText, emotion.LabelSadness, 0.9),
		Image: analyzer.NewMock(emotion.ModalityImage, emotion.LabelNeutral, 0.5),
		Audio: analyzer.NewMock(emotion.ModalityAudio, emotion.LabelNeutral, 0.5),
	}
	orch := orchestrator.New(orchestrator.DefaultConfig(), analyzers,
		responder.New(nil, time.Second), store.NewMemoryBackend(), nil)

	mux := http.NewServeMux()
	New(orch, limiter).Mount(mux)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func startSession(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	resp := postJSON(t, srv.URL+"/api/sessions", map[string]string{"user_id": "user-1"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	body := decode[map[string]string](t, resp)
	require.NotEmpty(t, body["session_id"])
	return body["session_id"]
}

func TestSessionLifecycleOverHTTP(t *testing.T) {
	srv := newTestServer(t, nil)
	id := startSession(t, srv)

	resp := postJSON(t, fmt.Sprintf("%s/api/sessions/%s/messages", srv.URL, id),
		map[string]string{"text": "I feel awful"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	turn := decode[map[string]any](t, resp)
	assert.NotEmpty(t, turn["reply"])
	assert.Equal(t, "fallback", turn["strategy"])

	resp = postJSON(t, fmt.Sprintf("%s/api/sessions/%s/frames", srv.URL, id),
		map[string]string{"image": base64.StdEncoding.EncodeToString([]byte("frame"))})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = postJSON(t, fmt.Sprintf("%s/api/sessions/%s/end", srv.URL, id), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	rep := decode[map[string]any](t, resp)
	assert.Contains(t, rep, "risk_score")
	assert.Contains(t, rep, "recommendations")
}

func TestMessageValidation(t *testing.T) {
	srv := newTestServer(t, nil)
	id := startSession(t, srv)

	resp := postJSON(t, fmt.Sprintf("%s/api/sessions/%s/messages", srv.URL, id),
		map[string]string{"text": ""})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUnknownSessionIs404(t *testing.T) {
	srv := newTestServer(t, nil)

	resp := postJSON(t, srv.URL+"/api/sessions/nope/messages", map[string]string{"text": "hi"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSubmitToEndedSessionConflicts(t *testing.T) {
	srv := newTestServer(t, nil)
	id := startSession(t, srv)

	resp := postJSON(t, fmt.Sprintf("%s/api/sessions/%s/end", srv.URL, id), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = postJSON(t, fmt.Sprintf("%s/api/sessions/%s/messages", srv.URL, id),
		map[string]string{"text": "hello?"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestInvalidBase64FrameRejected(t *testing.T) {
	srv := newTestServer(t, nil)
	id := startSession(t, srv)

	resp := postJSON(t, fmt.Sprintf("%s/api/sessions/%s/frames", srv.URL, id),
		map[string]string{"image": "not-base64!!!"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRiskEndpoint(t *testing.T) {
	srv := newTestServer(t, nil)
	id := startSession(t, srv)

	resp, err := http.Get(fmt.Sprintf("%s/api/sessions/%s/risk", srv.URL, id))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	snap := decode[map[string]any](t, resp)
	assert.Equal(t, "low", snap["level"])
}

func TestRateLimiting(t *testing.T) {
	srv := newTestServer(t, guard.NewRateLimiter(1, 1))

	first := postJSON(t, srv.URL+"/api/sessions", map[string]string{"user_id": "u"})
	require.Equal(t, http.StatusCreated, first.StatusCode)

	second := postJSON(t, srv.URL+"/api/sessions", map[string]string{"user_id": "u"})
	assert.Equal(t, http.StatusTooManyRequests, second.StatusCode)
}
