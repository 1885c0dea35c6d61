package response

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"wallet-ledger/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testContext(reqID string) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	if reqID != "" {
		c.Set(RequestIDKey, reqID)
	}
	return c, w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestSuccessWriters(t *testing.T) {
	cases := []struct {
		name   string
		write  func(*gin.Context, any)
		status int
	}{
		{"ok", OK, http.StatusOK},
		{"created", Created, http.StatusCreated},
		{"accepted", Accepted, http.StatusAccepted},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, w := testContext("req-" + tc.name)
			tc.write(c, map[string]string{"balance": "10.00"})

			assert.Equal(t, tc.status, w.Code)
			var resp SuccessResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, "req-"+tc.name, resp.RequestID)
			assert.NotEmpty(t, resp.Timestamp)
			assert.Equal(t, map[string]any{"balance": "10.00"}, resp.Data)
		})
	}
}

func TestSuccess_MintsRequestIDWhenMissing(t *testing.T) {
	c, w := testContext("")
	OK(c, nil)

	var resp SuccessResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.RequestID, 36)
}

func TestError_InsufficientFunds(t *testing.T) {
	c, w := testContext("req-debit")
	Error(c, apperror.ErrInsufficientFunds())

	assert.Equal(t, http.StatusPaymentRequired, w.Code)
	resp := decodeError(t, w)
	assert.Equal(t, "WAL_001", resp.ErrorCode)
	assert.Equal(t, "InsufficientFundsError", resp.Error)
	assert.Equal(t, http.StatusPaymentRequired, resp.StatusCode)
	assert.Equal(t, "req-debit", resp.RequestID)
}

func TestError_UnwrapsAppError(t *testing.T) {
	c, w := testContext("")
	Error(c, fmt.Errorf("redeem: %w", apperror.ErrQRExpired()))

	assert.Equal(t, http.StatusConflict, w.Code)
	resp := decodeError(t, w)
	assert.Equal(t, "StateConflictError", resp.Error)
	assert.Equal(t, "QR_001", resp.ErrorCode)
	assert.Equal(t, "expired", resp.Message)
}

func TestError_PlainErrorIsOpaque(t *testing.T) {
	c, w := testContext("")
	Error(c, fmt.Errorf("dial tcp 10.0.0.5:5432: connection refused"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	resp := decodeError(t, w)
	assert.Equal(t, "SYS_001", resp.ErrorCode)
	assert.NotContains(t, resp.Message, "10.0.0.5")
}

func TestAbort_StopsChain(t *testing.T) {
	r := gin.New()
	reached := false
	r.GET("/x",
		func(c *gin.Context) { Abort(c, apperror.ErrAdminRequired()) },
		func(c *gin.Context) { reached = true },
	)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.False(t, reached)
	assert.Equal(t, "ACL_002", decodeError(t, w).ErrorCode)
}
