package transfer

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbd888/remitwise/internal/validation"
)

func init() {
	gin.SetMode(gin.TestMode)
	validation.RegisterBindings()
}

func setupRouter(t *testing.T) (*gin.Engine, fixture) {
	t.Helper()
	f := newFixture(t)
	r := gin.New()
	NewHandler(f.svc).RegisterRoutes(r.Group("/v1"))
	return r, f
}

func do(r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
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

func TestHandler_GetRate(t *testing.T) {
	r, _ := setupRouter(t)

	w := do(r, http.MethodGet, "/v1/rates/usd/php", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode[map[string]any](t, w)
	assert.Equal(t, 55.6525, body["ourRate"])
	assert.Equal(t, "static", body["rateSource"])

	w = do(r, http.MethodGet, "/v1/rates/USD/JPY", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "unsupported_currency", decode[map[string]any](t, w)["error"])
}

func TestHandler_StaticRoutesBeatParams(t *testing.T) {
	r, _ := setupRouter(t)

	w := do(r, http.MethodGet, "/v1/rates/currencies", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 9, decode[map[string]any](t, w)["total"])

	w = do(r, http.MethodGet, "/v1/rates/popular", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[map[string]any](t, w)["popularCorridors"], 6)

	w = do(r, http.MethodGet, "/v1/rates/live/GBP", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "GBP", decode[map[string]any](t, w)["baseCurrency"])
}

func TestHandler_Compare(t *testing.T) {
	r, _ := setupRouter(t)

	w := do(r, http.MethodGet, "/v1/rates/compare/USD/PHP", nil)
	require.Equal(t, http.StatusOK, w.Code)
	cmp := decode[Comparison](t, w)
	assert.Equal(t, 1000.0, cmp.Amount)
	assert.Equal(t, "Wise", cmp.Savings.VsCompetitor)

	w = do(r, http.MethodGet, "/v1/rates/compare/USD/PHP?amount=-5", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodGet, "/v1/rates/compare/USD/PHP?amount=lots", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "amount must be a number")
}

func TestHandler_Optimize(t *testing.T) {
	r, _ := setupRouter(t)

	w := do(r, http.MethodPost, "/v1/channels/optimize", map[string]any{
		"amount":           1000,
		"fromCurrency":     "USD",
		"toCurrency":       "PHP",
		"availableBrands":  []string{"Remitly", "xoom"},
		"brandDistancesKm": map[string]float64{"xoom": 0.5},
	})
	require.Equal(t, http.StatusOK, w.Code)
	res := decode[OptimizeResult](t, w)
	assert.Equal(t, "Xoom", res.Best.Name)
	require.NotNil(t, res.Best.DistanceKm)
	assert.Equal(t, 0.5, *res.Best.DistanceKm)
}

func TestHandler_OptimizeValidation(t *testing.T) {
	r, _ := setupRouter(t)

	w := do(r, http.MethodPost, "/v1/channels/optimize", map[string]any{
		"amount":           0,
		"fromCurrency":     "USD",
		"toCurrency":       "JPY",
		"brandDistancesKm": map[string]float64{"wise": -1},
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	body := decode[struct {
		Error   string                       `json:"error"`
		Details validation.ValidationErrors `json:"details"`
	}](t, w)
	assert.Equal(t, "invalid_request", body.Error)
	assert.Len(t, body.Details, 3)
}

func TestHandler_AssessFraud(t *testing.T) {
	r, _ := setupRouter(t)

	w := do(r, http.MethodPost, "/v1/fraud/assess", map[string]any{
		"senderId":       "alice",
		"amount":         1500,
		"sourceCurrency": "USD",
		"targetCurrency": "INR",
		"localHour":      14,
	})
	require.Equal(t, http.StatusOK, w.Code)
	body := decode[map[string]any](t, w)
	asmt := body["assessment"].(map[string]any)
	assert.EqualValues(t, 40, asmt["score"])
	assert.Equal(t, "review", asmt["decision"])

	w = do(r, http.MethodPost, "/v1/fraud/assess", map[string]any{"senderId": "alice", "amount": 10, "sourceCurrency": "USD", "targetCurrency": "PHP", "localHour": 24})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "localHour")
}

func TestHandler_SendAndHistory(t *testing.T) {
	r, f := setupRouter(t)

	w := do(r, http.MethodPost, "/v1/transfers", map[string]any{
		"senderId":       "erin",
		"recipientEmail": "maria@example.com",
		"amount":         250,
		"sourceCurrency": "USD",
		"targetCurrency": "MXN",
		"localHour":      11,
	})
	require.Equal(t, http.StatusCreated, w.Code)
	tr := decode[struct{ Transfer Transfer }](t, w).Transfer
	assert.Equal(t, StatusPending, tr.Status)
	f.svc.Wait()

	w = do(r, http.MethodGet, "/v1/transfers/history?senderId=erin", nil)
	require.Equal(t, http.StatusOK, w.Code)
	hist := decode[struct {
		Transfers []Transfer
		Count     int
	}](t, w)
	require.Equal(t, 1, hist.Count)
	assert.Equal(t, tr.ID, hist.Transfers[0].ID)
	assert.Equal(t, "maria@example.com", hist.Transfers[0].RecipientEmail)
	assert.Equal(t, "MXN", hist.Transfers[0].TargetCurrency)
	assert.Equal(t, StatusPending, hist.Transfers[0].Status)

	w = do(r, http.MethodGet, "/v1/transfers/"+tr.ID+"?senderId=erin", nil)
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[struct{ Transfer Transfer }](t, w).Transfer
	assert.Equal(t, tr.ID, got.ID)
	assert.Equal(t, tr.RecipientReceives, got.RecipientReceives)

	w = do(r, http.MethodGet, "/v1/transfers/"+tr.ID+"?senderId=mallory", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not_found", decode[map[string]any](t, w)["error"])

	w = do(r, http.MethodGet, "/v1/transfers/"+tr.ID, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodGet, "/v1/fraud/assessments?senderId=erin", nil)
	require.Equal(t, http.StatusOK, w.Code)
	page := decode[AssessmentPage](t, w)
	assert.Equal(t, 1, page.Count)
	assert.Empty(t, page.NextCursor)

	w = do(r, http.MethodGet, "/v1/fraud/assessments?senderId=erin&cursor=garbage!", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodGet, "/v1/transfers/history", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandler_SendBlocked(t *testing.T) {
	r, _ := setupRouter(t)

	w := do(r, http.MethodPost, "/v1/transfers", map[string]any{
		"senderId":          "mallory",
		"amount":            5000,
		"sourceCurrency":    "USD",
		"targetCurrency":    "NGN",
		"isNewRecipient":    true,
		"ipCountryMismatch": true,
		"deviceChanged":     true,
		"localHour":         12,
	})
	require.Equal(t, http.StatusForbidden, w.Code)
	body := decode[struct {
		Error    string
		Transfer Transfer
	}](t, w)
	assert.Equal(t, "transfer_blocked", body.Error)

	w = do(r, http.MethodGet, "/v1/transfers/"+body.Transfer.ID+"?senderId=mallory", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, StatusBlocked, decode[struct{ Transfer Transfer }](t, w).Transfer.Status)
}

func TestHandler_QuoteTransfer(t *testing.T) {
	r, _ := setupRouter(t)

	w := do(r, http.MethodPost, "/v1/transfers/quote", map[string]any{"amount": 100, "sourceCurrency": "USD", "targetCurrency": "PHP"})
	require.Equal(t, http.StatusOK, w.Code)
	q := decode[TransferQuote](t, w)
	assert.Equal(t, 3.5, q.Fees)
	assert.Equal(t, 5370.47, q.RecipientReceives)

	w = do(r, http.MethodPost, "/v1/transfers/quote", "not an object")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
