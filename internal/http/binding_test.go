// README: Request-binding tests for the handler payload shapes.
package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func bindBody(t *testing.T, body string, v any) (bool, int) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	return bindJSON(c, v), w.Code
}

const quoteBody = `{
	"customer_id": "cust_1",
	"pickup_address": "koramangala",
	"drop_address": "indiranagar",
	"size": "SMALL"
}`

func TestEstimateBindsWithoutPaymentMode(t *testing.T) {
	var req estimateReq
	ok, _ := bindBody(t, quoteBody, &req)
	if !ok {
		t.Fatal("quote rejected without payment_mode")
	}
	cmd := req.command()
	if cmd.PaymentMode != "" || cmd.IdempotencyKey != "" {
		t.Fatalf("quote command carries persistence fields: %+v", cmd)
	}
}

func TestCreateOrderRequiresPaymentMode(t *testing.T) {
	var req createOrderReq
	ok, code := bindBody(t, quoteBody, &req)
	if ok {
		t.Fatal("create bound without payment_mode")
	}
	if code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", code)
	}
}

func TestBindRejectsMalformedJSON(t *testing.T) {
	var req estimateReq
	ok, code := bindBody(t, `{"customer_id":`, &req)
	if ok {
		t.Fatal("malformed body bound")
	}
	if code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", code)
	}
}
