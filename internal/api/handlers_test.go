package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jisotalo/codesys-client/internal/api/middleware"
	"github.com/jisotalo/codesys-client/internal/iec"
	"github.com/jisotalo/codesys-client/internal/liststate"
)

const testDecls = `
lists:
  - name: Plant
    listId: 1
    variables:
      - name: running
        type: BOOL
      - name: temperature
        type: REAL
`

type fakePublisher struct {
	listID uint16
	values map[string]any
	err    error
}

func (f *fakePublisher) Publish(ctx context.Context, listID uint16, values map[string]any) error {
	f.listID = listID
	f.values = values
	return f.err
}

func newTestRouter(t *testing.T, pub Publisher, authCfg middleware.AuthConfig) (*gin.Engine, *liststate.Tracker) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	defs, err := iec.ParseDeclarations([]byte(testDecls))
	if err != nil {
		t.Fatalf("declarations: %v", err)
	}
	tracker := liststate.New(time.Minute)
	h := NewHandler(defs, tracker, nil, nil, pub, zap.NewNop())
	r := gin.New()
	RegisterRoutes(r, h, authCfg, zap.NewNop())
	return r, tracker
}

func doRequest(r *gin.Engine, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestListLists(t *testing.T) {
	r, tracker := newTestRouter(t, nil, middleware.AuthConfig{})
	tracker.OnMessage(1, 7, time.Now())

	w := doRequest(r, http.MethodGet, "/api/lists", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("code %d", w.Code)
	}
	var resp struct {
		Lists []struct {
			ListID     uint16 `json:"listId"`
			Name       string `json:"name"`
			ByteLength int    `json:"byteLength"`
			State      *struct {
				LastCounter uint16 `json:"lastCounter"`
			} `json:"state"`
		} `json:"lists"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("body: %v", err)
	}
	if len(resp.Lists) != 1 || resp.Lists[0].Name != "Plant" || resp.Lists[0].ByteLength != 5 {
		t.Fatalf("lists %+v", resp.Lists)
	}
	if resp.Lists[0].State == nil || resp.Lists[0].State.LastCounter != 7 {
		t.Fatalf("state %+v", resp.Lists[0].State)
	}
}

func TestGetValuesNoBackends(t *testing.T) {
	r, _ := newTestRouter(t, nil, middleware.AuthConfig{})

	w := doRequest(r, http.MethodGet, "/api/lists/1/values", "", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("code %d", w.Code)
	}
	w = doRequest(r, http.MethodGet, "/api/lists/99/values", "", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("unknown list code %d", w.Code)
	}
	w = doRequest(r, http.MethodGet, "/api/lists/abc/values", "", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad listId code %d", w.Code)
	}
}

func TestPostValues(t *testing.T) {
	pub := &fakePublisher{}
	r, _ := newTestRouter(t, pub, middleware.AuthConfig{})

	body := `{"running": true, "temperature": 21.5}`
	w := doRequest(r, http.MethodPost, "/api/lists/1/values", body, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("code %d body %s", w.Code, w.Body.String())
	}
	if pub.listID != 1 || pub.values["running"] != true {
		t.Fatalf("publish %d %+v", pub.listID, pub.values)
	}

	w = doRequest(r, http.MethodPost, "/api/lists/1/values", "{bad json", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad body code %d", w.Code)
	}

	pub.err = fmt.Errorf("socket closed")
	w = doRequest(r, http.MethodPost, "/api/lists/1/values", body, nil)
	if w.Code != http.StatusBadGateway {
		t.Fatalf("publish error code %d", w.Code)
	}
}

func TestGetMessagesWithoutDatabase(t *testing.T) {
	r, _ := newTestRouter(t, nil, middleware.AuthConfig{})
	w := doRequest(r, http.MethodGet, "/api/lists/1/messages", "", nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("code %d", w.Code)
	}
}

func TestGetStats(t *testing.T) {
	r, tracker := newTestRouter(t, nil, middleware.AuthConfig{})
	tracker.OnMessage(1, 3, time.Now())
	tracker.OnLoss(1)

	w := doRequest(r, http.MethodGet, "/api/stats", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("code %d", w.Code)
	}
	var resp struct {
		Lists []struct {
			ListID     uint16 `json:"listId"`
			Messages   uint64 `json:"messages"`
			LossEvents uint64 `json:"lossEvents"`
			Alive      bool   `json:"alive"`
		} `json:"lists"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("body: %v", err)
	}
	if len(resp.Lists) != 1 || resp.Lists[0].Messages != 1 || resp.Lists[0].LossEvents != 1 || !resp.Lists[0].Alive {
		t.Fatalf("stats %+v", resp.Lists)
	}
}

func TestAPIKeyAuth(t *testing.T) {
	auth := middleware.AuthConfig{Enabled: true, APIKeys: []string{"secret-key"}}
	r, _ := newTestRouter(t, nil, auth)

	w := doRequest(r, http.MethodGet, "/api/lists", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("missing key code %d", w.Code)
	}
	w = doRequest(r, http.MethodGet, "/api/lists", "", map[string]string{"X-API-Key": "wrong"})
	if w.Code != http.StatusForbidden {
		t.Fatalf("wrong key code %d", w.Code)
	}
	w = doRequest(r, http.MethodGet, "/api/lists", "", map[string]string{"X-API-Key": "secret-key"})
	if w.Code != http.StatusOK {
		t.Fatalf("valid key code %d", w.Code)
	}
	w = doRequest(r, http.MethodGet, "/api/lists", "", map[string]string{"Authorization": "Bearer secret-key"})
	if w.Code != http.StatusOK {
		t.Fatalf("bearer code %d", w.Code)
	}
}
