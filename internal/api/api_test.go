package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nspcc-dev/student-roster/internal/controller"
	"github.com/nspcc-dev/student-roster/internal/roster"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testController struct {
	mu    sync.Mutex
	state controller.State
	err   error
	calls []string
	ctx   context.Context

	states chan controller.State
}

func (t *testController) record(ctx context.Context, call string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls = append(t.calls, call)
	t.ctx = ctx
	return t.err
}

func (t *testController) Register(ctx context.Context, id, name string) error {
	return t.record(ctx, "register "+id+" "+name)
}

func (t *testController) Remove(ctx context.Context, id string) error {
	return t.record(ctx, "remove "+id)
}

func (t *testController) Refresh(ctx context.Context) error {
	return t.record(ctx, "refresh")
}

func (t *testController) State() controller.State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *testController) Subscribe() (<-chan controller.State, func()) {
	return t.states, func() {}
}

func newTestServer(t *testing.T, tc *testController) *Server {
	return New(Prm{
		Logger:           zaptest.NewLogger(t),
		Controller:       tc,
		OperationTimeout: time.Minute,
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("roster_busy 0\n"))
		}),
	})
}

func serve(s *Server, method, target, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestServer_Read(t *testing.T) {
	tc := &testController{state: controller.State{
		Roster:        roster.New([]roster.Student{{ID: 2, Name: "Grace"}, {ID: 1, Name: "Ada"}}),
		Status:        controller.StatusBusy,
		LastError:     "Please enter a valid Student ID to remove.",
		LastErrorKind: controller.KindValidation,
		Pending:       controller.PendingInput{RemoveID: "x"},
	}}
	s := newTestServer(t, tc)

	w := serve(s, http.MethodGet, "/api/students", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `[{"id":2,"name":"Grace"},{"id":1,"name":"Ada"}]`, w.Body.String())

	w = serve(s, http.MethodGet, "/api/state", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{
		"status": "busy",
		"last_error": "Please enter a valid Student ID to remove.",
		"last_error_kind": "validation",
		"pending": {"register_id": "", "register_name": "", "remove_id": "x"},
		"students": [{"id":2,"name":"Grace"},{"id":1,"name":"Ada"}]
	}`, w.Body.String())

	w = serve(s, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "roster_busy")

	require.Empty(t, tc.calls)
}

func TestServer_EmptyRoster(t *testing.T) {
	s := newTestServer(t, &testController{})

	w := serve(s, http.MethodGet, "/api/students", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `[]`, w.Body.String())
}

func TestServer_Operations(t *testing.T) {
	tc := &testController{state: controller.State{Roster: roster.New(nil)}}
	s := newTestServer(t, tc)

	w := serve(s, http.MethodPost, "/api/students", `{"id":"1","name":"Ada"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var st stateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &st))
	require.Equal(t, controller.StatusIdle, st.Status)

	w = serve(s, http.MethodDelete, "/api/students/1", "")
	require.Equal(t, http.StatusOK, w.Code)

	w = serve(s, http.MethodPost, "/api/refresh", "")
	require.Equal(t, http.StatusOK, w.Code)

	require.Equal(t, []string{"register 1 Ada", "remove 1", "refresh"}, tc.calls)

	_, ok := tc.ctx.Deadline()
	require.True(t, ok)

	w = serve(s, http.MethodPost, "/api/students", `{"id":1}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Len(t, tc.calls, 3)
}

func TestServer_Errors(t *testing.T) {
	for kind, code := range map[controller.Kind]int{
		controller.KindValidation:    http.StatusBadRequest,
		controller.KindAuthorization: http.StatusUnauthorized,
		controller.KindBinding:       http.StatusServiceUnavailable,
		controller.KindLedgerCall:    http.StatusBadGateway,
		controller.KindBusy:          http.StatusConflict,
	} {
		t.Run(kind.String(), func(t *testing.T) {
			tc := &testController{err: &controller.Error{
				Kind: kind,
				Op:   controller.OpRegister,
				Err:  errors.New("failure"),
			}}
			s := newTestServer(t, tc)

			w := serve(s, http.MethodPost, "/api/students", `{"id":"1","name":"Ada"}`)
			require.Equal(t, code, w.Code)

			var resp errorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			require.Equal(t, tc.err.Error(), resp.Error)
		})
	}
}

func TestServer_Events(t *testing.T) {
	tc := &testController{states: make(chan controller.State, 1)}
	tc.states <- controller.State{
		Roster: roster.New([]roster.Student{{ID: 1, Name: "Ada"}}),
		Status: controller.StatusBusy,
	}

	ts := httptest.NewServer(newTestServer(t, tc).Handler())
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/events", nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")

	sc := bufio.NewScanner(resp.Body)

	require.True(t, sc.Scan())
	require.Equal(t, "event:state", sc.Text())
	require.True(t, sc.Scan())

	data, ok := strings.CutPrefix(sc.Text(), "data:")
	require.True(t, ok)

	var st stateResponse
	require.NoError(t, json.Unmarshal([]byte(data), &st))
	require.Equal(t, controller.StatusBusy, st.Status)
	require.Equal(t, []roster.Student{{ID: 1, Name: "Ada"}}, st.Students)

	cancel()
}
