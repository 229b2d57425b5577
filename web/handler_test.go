package web

import (
	"bytes"
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
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"billsplit/bill"
	"billsplit/db/mem"
	"billsplit/libs/logging"
	"billsplit/mq/goch"
	"billsplit/service"
)

type stubSource struct {
	mu  sync.Mutex
	err error
}

func (s *stubSource) FetchOrders(_ context.Context, _ string) ([]bill.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return []bill.Order{
		{
			ID:    "501",
			Total: "39.00",
			Lines: []bill.OrderLine{
				{ID: "1", Name: "Lomo saltado", Quantity: 3, Subtotal: "30.00"},
				{ID: "2", Name: "Inca Kola", Quantity: 2, Subtotal: "9.00"},
			},
		},
		{ID: "502", Total: "11.00", Lines: []bill.OrderLine{{ID: "1", Name: "Suspiro", Quantity: 1, Subtotal: "11.00"}}},
	}, nil
}

func (s *stubSource) SetErr(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

func newTestRouter(t *testing.T, src *stubSource) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	queues := goch.NewGoChanSettlementMessageQueueWrapper()
	manager := service.NewManager(mem.NewInMemorySettlementDBWrapper(), src, queues, service.Options{
		PollInterval: time.Hour,
		PersistDelay: 5 * time.Millisecond,
		Logger:       logging.Discard(),
	})
	t.Cleanup(func() {
		_ = manager.Shutdown(context.Background())
		queues.Close()
	})
	return NewRouter(manager, true)
}

func do(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	return v
}

func openSession(t *testing.T, r http.Handler) service.Snapshot {
	t.Helper()
	w := do(t, r, http.MethodPost, "/api/sessions", gin.H{"tableId": "12"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[service.Snapshot](t, w)
}

func TestHealthAndMetrics(t *testing.T) {
	r := newTestRouter(t, &stubSource{})

	w := do(t, r, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)

	openSession(t, r)
	w = do(t, r, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "billsplit_open_sessions")
}

func TestOpenSession(t *testing.T) {
	r := newTestRouter(t, &stubSource{})

	snap := openSession(t, r)
	assert.NotEqual(t, uuid.Nil, snap.SessionID)
	assert.Equal(t, bill.ModeImmediate, snap.Mode)
	assert.InDelta(t, 50, snap.Total, 1e-9)
	assert.Len(t, snap.Entries, 3)

	w := do(t, r, http.MethodPost, "/api/sessions", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = do(t, r, http.MethodPost, "/api/sessions", gin.H{"tableId": "12", "sessionId": "nope"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, r, http.MethodGet, "/api/sessions/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = do(t, r, http.MethodGet, "/api/sessions/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestOpenSession_FetchFailure(t *testing.T) {
	src := &stubSource{err: errors.New("backend down")}
	r := newTestRouter(t, src)

	w := do(t, r, http.MethodPost, "/api/sessions", gin.H{"tableId": "12"})
	require.Equal(t, http.StatusBadGateway, w.Code)
	body := decode[struct {
		Error   string           `json:"error"`
		Session service.Snapshot `json:"session"`
	}](t, w)
	assert.Contains(t, body.Error, "backend down")
	base := "/api/sessions/" + body.Session.SessionID.String()

	// the session stays open and a manual refresh recovers
	w = do(t, r, http.MethodPost, base+"/refresh", nil)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	src.SetErr(nil)
	w = do(t, r, http.MethodPost, base+"/refresh", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[service.Snapshot](t, w).Entries, 3)
}

func TestEvenSplitRoutes(t *testing.T) {
	r := newTestRouter(t, &stubSource{})
	base := "/api/sessions/" + openSession(t, r).SessionID.String()

	w := do(t, r, http.MethodPut, base+"/mode", gin.H{"mode": "even"})
	require.Equal(t, http.StatusOK, w.Code)
	w = do(t, r, http.MethodPut, base+"/mode", gin.H{"mode": "by-seat"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.JSONEq(t, `{"accepted": false}`, w.Body.String())

	w = do(t, r, http.MethodPost, base+"/people/increment", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 3, decode[struct {
		PeopleCount int `json:"peopleCount"`
	}](t, w).PeopleCount)

	w = do(t, r, http.MethodGet, base+"/share", nil)
	require.Equal(t, http.StatusOK, w.Code)
	share := decode[struct {
		PerPersonShare float64 `json:"perPersonShare"`
		PeopleCount    int     `json:"peopleCount"`
	}](t, w)
	assert.InDelta(t, 50.0/3.0, share.PerPersonShare, 1e-9)

	do(t, r, http.MethodPost, base+"/people/decrement", nil)
	do(t, r, http.MethodPost, base+"/people/decrement", nil)
	w = do(t, r, http.MethodPost, base+"/people/decrement", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), `"peopleCount":1`)
}

func TestGroupRoutes(t *testing.T) {
	r := newTestRouter(t, &stubSource{})
	base := "/api/sessions/" + openSession(t, r).SessionID.String()

	w := do(t, r, http.MethodPut, base+"/staged/501-1", gin.H{"quantity": 2})
	require.Equal(t, http.StatusOK, w.Code)
	w = do(t, r, http.MethodPut, base+"/staged/501-1", gin.H{"quantity": 4})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	w = do(t, r, http.MethodPut, base+"/staged/501-1", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, r, http.MethodPost, base+"/groups", gin.H{"name": "   "})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	w = do(t, r, http.MethodPost, base+"/groups", gin.H{"name": "<script>"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = do(t, r, http.MethodPost, base+"/groups", gin.H{"name": "Ana"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	group := decode[struct {
		Group bill.PaymentGroup `json:"group"`
	}](t, w).Group
	assert.InDelta(t, 20, group.Subtotal, 1e-9)

	w = do(t, r, http.MethodGet, base+"/entries/501-1/max", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"maxAssignable":1`)
	w = do(t, r, http.MethodGet, base+"/entries/999-9/max", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"maxAssignable":0`)
	assert.Contains(t, w.Body.String(), `"known":false`)

	w = do(t, r, http.MethodPost, base+"/groups", gin.H{"name": "Luis", "selections": gin.H{"501-1": 2}})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	groupPath := base + "/groups/" + group.ID.String()
	w = do(t, r, http.MethodPost, groupPath+"/paid", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"paid":true`)

	w = do(t, r, http.MethodGet, base+"/pending", nil)
	require.Equal(t, http.StatusOK, w.Code)
	pending := decode[struct {
		PendingAmount float64 `json:"pendingAmount"`
		PaidAmount    float64 `json:"paidAmount"`
	}](t, w)
	assert.InDelta(t, 30, pending.PendingAmount, 1e-9)
	assert.InDelta(t, 20, pending.PaidAmount, 1e-9)

	w = do(t, r, http.MethodPost, base+"/groups/"+uuid.NewString()+"/paid", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = do(t, r, http.MethodDelete, base+"/groups/bad", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, r, http.MethodDelete, groupPath, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = do(t, r, http.MethodDelete, groupPath, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, r, http.MethodGet, base+"/entries/available", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]service.AvailableEntry](t, w), 3)

	do(t, r, http.MethodPut, base+"/staged/501-2", gin.H{"quantity": 1})
	w = do(t, r, http.MethodDelete, base+"/staged", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"staged": {}}`, w.Body.String())
}

func TestCloseSession(t *testing.T) {
	r := newTestRouter(t, &stubSource{})
	base := "/api/sessions/" + openSession(t, r).SessionID.String()

	w := do(t, r, http.MethodDelete, base+"?purge=true", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = do(t, r, http.MethodGet, base, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStream(t *testing.T) {
	r := newTestRouter(t, &stubSource{})
	srv := httptest.NewServer(r)
	defer srv.Close()
	base := "/api/sessions/" + openSession(t, r).SessionID.String()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + base + "/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var first StreamEvent
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, "snapshot", first.Type)

	// subscriptions register asynchronously, keep producing updates until one arrives
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(20 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				do(t, r, http.MethodPost, base+"/people/increment", nil)
			}
		}
	}()
	defer close(done)

	var ev StreamEvent
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, "settlement.update", ev.Type)
}

func TestVerifyGroupName(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{name: "plain", input: "Ana", want: true},
		{name: "accents and digits", input: "Mesa 4 José", want: true},
		{name: "safe symbols", input: "Ana & Luis's #2", want: true},
		{name: "empty left to the manager", input: "", want: true},
		{name: "markup", input: "<b>Ana</b>", want: false},
		{name: "too long", input: strings.Repeat("a", 101), want: false},
		{name: "exactly max", input: strings.Repeat("ñ", 100), want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, VerifyGroupName(tt.input))
		})
	}
}
