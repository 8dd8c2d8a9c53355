package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/fpfinfo/sosfu/internal/domain/entity"
)

type stubValidator struct {
	results []*entity.ValidationResult
}

func (s *stubValidator) ValidateReport(ctx context.Context, req *entity.Request) ([]*entity.ValidationResult, error) {
	return s.results, nil
}
func (s *stubValidator) Results(requestID string) []*entity.ValidationResult { return s.results }
func (s *stubValidator) Forget(requestID string)                             {}

func testContext(t *testing.T, method, path string) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(method, path, nil)
	return c, rec
}

func TestReportValidationEndpoints_RequireActingUser(t *testing.T) {
	h := NewHandlers(nil, nil, nil, &stubValidator{}, nil, nil, zap.NewNop())

	endpoints := []struct {
		name    string
		method  string
		handler gin.HandlerFunc
	}{
		{"run validation", http.MethodPost, h.ValidateReport},
		{"fetch results", http.MethodGet, h.ReportValidationResults},
	}

	for _, ep := range endpoints {
		t.Run(ep.name, func(t *testing.T) {
			c, rec := testContext(t, ep.method, "/api/requests/req-001/report/validation")

			ep.handler(c)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestReportValidationResults_WithActingUser(t *testing.T) {
	validator := &stubValidator{results: []*entity.ValidationResult{
		{ItemID: "item-1", Status: entity.ValidationValidated},
	}}
	h := NewHandlers(nil, nil, nil, validator, nil, nil, zap.NewNop())

	c, rec := testContext(t, http.MethodGet, "/api/requests/req-001/report/validation")
	c.Request.Header.Set(userIDHeader, "maria")
	c.Params = gin.Params{{Key: "id", Value: "req-001"}}

	h.ReportValidationResults(c)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "item-1")
}
