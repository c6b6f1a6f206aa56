package main

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/allcitylocks/locksmith_backend/utils"
)

// Storage failures must never leak driver text to the client: not-found maps
// to 404, persistence maps to a generic 500, and only validation-shaped
// errors come back as 400 with their own message.
func TestRespondModelErrorStatusMapping(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"not found", utils.ErrorRecordNotFound, http.StatusNotFound},
		{"wrapped not found", fmt.Errorf("%w: invoice 42", utils.ErrorRecordNotFound), http.StatusNotFound},
		{"persistence", fmt.Errorf("%w: %v", utils.ErrorPersistence, errors.New("Error 1146: Table 'locksmith.invoice_details' doesn't exist")), http.StatusInternalServerError},
		{"domain rule", errors.New("quote is not pending"), http.StatusBadRequest},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/api/invoices/42", nil)

			respondModelError(c, "TestRespondModelErrorStatusMapping", tc.err)

			if w.Code != tc.wantStatus {
				t.Fatalf("status for %q = %d; want %d", tc.err, w.Code, tc.wantStatus)
			}
			if tc.wantStatus == http.StatusInternalServerError && strings.Contains(w.Body.String(), "1146") {
				t.Fatalf("driver text leaked into the 500 body: %s", w.Body.String())
			}
			if tc.wantStatus == http.StatusBadRequest && !strings.Contains(w.Body.String(), "quote is not pending") {
				t.Fatalf("400 body should carry the domain message, got %s", w.Body.String())
			}
		})
	}
}

// The sweep endpoint refuses to run without the shared secret, including when
// no secret is configured at all.
func TestSweepOverdueHandlerRequiresSecret(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := sweepOverdueHandler()

	call := func(t *testing.T, secret string, header string) int {
		t.Helper()
		t.Setenv("SWEEP_SECRET", secret)
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodPost, "/tasks/sweep-overdue", nil)
		if header != "" {
			c.Request.Header.Set("X-Sweep-Secret", header)
		}
		handler(c)
		return w.Code
	}

	if got := call(t, "s3cret", ""); got != http.StatusForbidden {
		t.Fatalf("missing header = %d; want 403", got)
	}
	if got := call(t, "s3cret", "wrong"); got != http.StatusForbidden {
		t.Fatalf("wrong header = %d; want 403", got)
	}
	if got := call(t, "", ""); got != http.StatusForbidden {
		t.Fatalf("unset secret = %d; want 403", got)
	}
}
