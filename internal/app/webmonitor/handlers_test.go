package webmonitor

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Quantix-Lab/vnpy/internal/gateway/sim"
	"github.com/Quantix-Lab/vnpy/pkg/engine"
	"github.com/Quantix-Lab/vnpy/pkg/event"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestServer wires a paper runtime behind the API routes without binding
// a listener.
func newTestServer(t *testing.T) (*engine.MainEngine, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	ee := event.New(time.Hour)
	m := engine.NewMainEngine(ee)
	t.Cleanup(func() { _ = m.Close() })

	require.NoError(t, m.AddGateway(sim.New(ee)))
	require.NoError(t, m.Connect(map[string]any{"balance": 1_000_000.0, "seed": 7}, sim.GatewayName))
	require.Eventually(t, func() bool {
		return len(m.GetAllContracts()) > 0
	}, time.Second, time.Millisecond)

	e := &WebEngine{main: m, ee: ee, hub: newHub()}
	router := gin.New()
	e.registerRoutes(router)
	return m, router
}

type apiResponse struct {
	Success bool            `json:"success"`
	Error   string          `json:"error"`
	Data    json.RawMessage `json:"data"`
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any) (int, apiResponse) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var resp apiResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return w.Code, resp
}

func TestGatewaysEndpoint(t *testing.T) {
	_, router := newTestServer(t)

	code, resp := doJSON(t, router, http.MethodGet, "/api/gateways", nil)
	require.Equal(t, http.StatusOK, code)
	require.True(t, resp.Success)

	var names []string
	require.NoError(t, json.Unmarshal(resp.Data, &names))
	assert.Equal(t, []string{sim.GatewayName}, names)
}

func TestContractsEndpoint(t *testing.T) {
	_, router := newTestServer(t)

	code, resp := doJSON(t, router, http.MethodGet, "/api/contracts/AAPL.NASDAQ", nil)
	require.Equal(t, http.StatusOK, code)
	require.True(t, resp.Success)

	code, resp = doJSON(t, router, http.MethodGet, "/api/contracts/NOPE.NOWHERE", nil)
	require.Equal(t, http.StatusNotFound, code)
	assert.False(t, resp.Success)
}

func TestSendOrderEndpoint(t *testing.T) {
	m, router := newTestServer(t)

	body := map[string]any{
		"gateway_name": sim.GatewayName,
		"request": map[string]any{
			"symbol":    "AAPL",
			"exchange":  "NASDAQ",
			"direction": "LONG",
			"offset":    "OPEN",
			"type":      "LIMIT",
			"price":     "100",
			"volume":    "10",
		},
	}
	code, resp := doJSON(t, router, http.MethodPost, "/api/orders", body)
	require.Equal(t, http.StatusOK, code)
	require.True(t, resp.Success)

	var data struct {
		VtOrderID string `json:"vt_orderid"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &data))
	assert.Equal(t, "SIM.1", data.VtOrderID)

	require.Eventually(t, func() bool {
		_, ok := m.GetOrder(data.VtOrderID)
		return ok
	}, time.Second, time.Millisecond)
}

func TestSendOrderRejectsInvalid(t *testing.T) {
	_, router := newTestServer(t)

	body := map[string]any{
		"gateway_name": sim.GatewayName,
		"request": map[string]any{
			"symbol":    "AAPL",
			"exchange":  "NASDAQ",
			"direction": "LONG",
			"type":      "LIMIT",
			"price":     "100",
			"volume":    "0",
		},
	}
	code, resp := doJSON(t, router, http.MethodPost, "/api/orders", body)
	require.Equal(t, http.StatusBadRequest, code)
	assert.False(t, resp.Success)
}

func TestSendOrderUnknownGateway(t *testing.T) {
	_, router := newTestServer(t)

	body := map[string]any{
		"gateway_name": "NOPE",
		"request": map[string]any{
			"symbol":    "AAPL",
			"exchange":  "NASDAQ",
			"direction": "LONG",
			"type":      "MARKET",
			"volume":    "1",
		},
	}
	code, resp := doJSON(t, router, http.MethodPost, "/api/orders", body)
	require.Equal(t, http.StatusNotFound, code)
	assert.False(t, resp.Success)
}

func TestCancelOrderEndpoint(t *testing.T) {
	m, router := newTestServer(t)

	// resting buy below the market
	body := map[string]any{
		"gateway_name": sim.GatewayName,
		"request": map[string]any{
			"symbol":    "AAPL",
			"exchange":  "NASDAQ",
			"direction": "LONG",
			"offset":    "OPEN",
			"type":      "LIMIT",
			"price":     "90",
			"volume":    "5",
		},
	}
	code, resp := doJSON(t, router, http.MethodPost, "/api/orders", body)
	require.Equal(t, http.StatusOK, code)

	var data struct {
		VtOrderID string `json:"vt_orderid"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &data))
	require.Eventually(t, func() bool {
		_, ok := m.GetOrder(data.VtOrderID)
		return ok
	}, time.Second, time.Millisecond)

	code, resp = doJSON(t, router, http.MethodDelete, "/api/orders/"+data.VtOrderID, nil)
	require.Equal(t, http.StatusOK, code)
	require.True(t, resp.Success)

	code, _ = doJSON(t, router, http.MethodDelete, "/api/orders/SIM.999", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestSubscribeEndpoint(t *testing.T) {
	m, router := newTestServer(t)

	body := map[string]any{
		"gateway_name": sim.GatewayName,
		"request":      map[string]any{"symbol": "AAPL", "exchange": "NASDAQ"},
	}
	code, resp := doJSON(t, router, http.MethodPost, "/api/subscribe", body)
	require.Equal(t, http.StatusOK, code)
	require.True(t, resp.Success)

	require.Eventually(t, func() bool {
		_, ok := m.GetTick("AAPL.NASDAQ")
		return ok
	}, time.Second, time.Millisecond)

	code, _ = doJSON(t, router, http.MethodGet, "/api/ticks", nil)
	assert.Equal(t, http.StatusOK, code)
}
