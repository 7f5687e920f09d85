package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skyview/internal/types"
	"skyview/internal/view"
)

// watchedView is a hand-driven WatchView implementation for one client.
type watchedView struct {
	mu      sync.Mutex
	vm      view.ViewModel
	changes chan struct{}
	stopped chan struct{}
	once    sync.Once
}

func newWatchedView(vm view.ViewModel) *watchedView {
	return &watchedView{vm: vm, changes: make(chan struct{}, 1), stopped: make(chan struct{})}
}

func (w *watchedView) current() view.ViewModel {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.vm
}

func (w *watchedView) set(vm view.ViewModel) {
	w.mu.Lock()
	w.vm = vm
	w.mu.Unlock()
	w.changes <- struct{}{}
}

func (w *watchedView) stop() {
	w.once.Do(func() { close(w.stopped) })
}

func dialStream(t *testing.T, srv *httptest.Server, header http.Header) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	if header == nil {
		header = http.Header{}
	}
	header.Set(ClientIDHeader, testClientID)
	conn, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/v1/stream", header)
	if conn != nil {
		t.Cleanup(func() { conn.Close() })
	}
	return conn, resp, err
}

func readStreamView(t *testing.T, conn *websocket.Conn) view.ViewModel {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg streamMessage
	require.NoError(t, conn.ReadJSON(&msg))
	return msg.Data
}

func TestHandleStream_PushesViewChanges(t *testing.T) {
	watched := newWatchedView(view.ViewModel{Language: types.LanguageEnglish, Labels: view.Labels(types.LanguageEnglish)})

	svc := new(mockWidgetService)
	svc.On("WatchView", testClientID).Return(watched.current, (<-chan struct{})(watched.changes), watched.stop)

	srv := httptest.NewServer(newTestWidgetRouter(svc))
	defer srv.Close()

	conn, resp, err := dialStream(t, srv, nil)
	require.NoError(t, err)
	assert.Equal(t, testClientID, resp.Header.Get(ClientIDHeader))

	first := readStreamView(t, conn)
	assert.Equal(t, types.LanguageEnglish, first.Language)
	assert.Nil(t, first.Weather)

	watched.set(view.ViewModel{Language: types.LanguageEnglish, City: "Paris", Loading: types.LoadingFlags{Weather: true}, Skeleton: true})
	loading := readStreamView(t, conn)
	assert.True(t, loading.Skeleton)
	assert.Equal(t, "Paris", loading.City)

	watched.set(parisView(types.LanguageEnglish))
	done := readStreamView(t, conn)
	require.NotNil(t, done.Weather)
	assert.Equal(t, "26.9", done.Weather.Temperature)
	assert.Equal(t, "https://images.example/rain.jpg", done.BackgroundURL)

	require.NoError(t, conn.Close())
	select {
	case <-watched.stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("watch was not stopped after the client disconnected")
	}
	svc.AssertExpectations(t)
}

func TestHandleStream_RejectsForeignOrigin(t *testing.T) {
	svc := new(mockWidgetService)
	srv := httptest.NewServer(newTestWidgetRouter(svc, WithAllowedOrigins([]string{"https://widget.example"})))
	defer srv.Close()

	_, resp, err := dialStream(t, srv, http.Header{"Origin": {"https://evil.example"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	svc.AssertNotCalled(t, "WatchView", testClientID)
}

func TestHandleStream_PlainGetIsRejected(t *testing.T) {
	svc := new(mockWidgetService)

	rec := doRequest(t, newTestWidgetRouter(svc), http.MethodGet, "/v1/stream", "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	svc.AssertNotCalled(t, "WatchView", testClientID)
}

func TestOriginChecker(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		origin  string
		host    string
		want    bool
	}{
		{"no origin header", nil, "", "api.example", true},
		{"same host", nil, "https://api.example", "api.example", true},
		{"other host", nil, "https://evil.example", "api.example", false},
		{"listed origin", []string{"https://widget.example"}, "https://widget.example", "api.example", true},
		{"wildcard", []string{"*"}, "https://anything.example", "api.example", true},
		{"malformed origin", nil, "://", "api.example", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/v1/stream", nil)
			req.Host = tc.host
			if tc.origin != "" {
				req.Header.Set("Origin", tc.origin)
			}
			assert.Equal(t, tc.want, originChecker(tc.allowed)(req))
		})
	}
}
