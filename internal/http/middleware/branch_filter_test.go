package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/garagedesk/workshop-api/internal/auth"
	"github.com/garagedesk/workshop-api/internal/domain"
	"github.com/garagedesk/workshop-api/internal/http/middleware"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func requestAs(t *testing.T, role domain.UserRoleType, branchID uuid.UUID, target string) *http.Request {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, target, nil)
	ctx := auth.WithUserContext(req.Context(), &auth.UserContext{
		UserID:   uuid.New(),
		Email:    "user@example.com",
		Role:     role,
		BranchID: branchID,
	})
	return req.WithContext(ctx)
}

func captureFilter(t *testing.T, handler func(http.Handler) http.Handler, req *http.Request) (*auth.BranchFilter, *httptest.ResponseRecorder) {
	t.Helper()

	var captured *auth.BranchFilter
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured, _ = auth.BranchFilterFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	handler(next).ServeHTTP(rec, req)
	return captured, rec
}

func TestBranchFilterScopesStaffToOwnBranch(t *testing.T) {
	m := middleware.NewBranchFilterMiddleware(zap.NewNop())
	branchID := uuid.New()

	filter, rec := captureFilter(t, m.Filter, requestAs(t, domain.RoleStaff, branchID, "/api/v1/orders"))
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, filter)
	require.NotNil(t, filter.BranchID)
	assert.Equal(t, branchID, *filter.BranchID)
}

func TestBranchFilterRejectsStaffBranchOverride(t *testing.T) {
	m := middleware.NewBranchFilterMiddleware(zap.NewNop())

	req := requestAs(t, domain.RoleStaff, uuid.New(), "/api/v1/orders?branch_id="+uuid.New().String())
	_, rec := captureFilter(t, m.Filter, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestBranchFilterAllowsStaffToNameOwnBranch(t *testing.T) {
	m := middleware.NewBranchFilterMiddleware(zap.NewNop())
	branchID := uuid.New()

	req := requestAs(t, domain.RoleStaff, branchID, "/api/v1/orders?branch_id="+branchID.String())
	filter, rec := captureFilter(t, m.Filter, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, filter)
	assert.Equal(t, branchID, *filter.BranchID)
}

func TestBranchFilterAdminOverride(t *testing.T) {
	m := middleware.NewBranchFilterMiddleware(zap.NewNop())
	otherBranch := uuid.New()

	req := requestAs(t, domain.RoleAdmin, uuid.New(), "/api/v1/orders?branch_id="+otherBranch.String())
	filter, rec := captureFilter(t, m.Filter, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, filter)
	require.NotNil(t, filter.BranchID)
	assert.Equal(t, otherBranch, *filter.BranchID)
}

func TestBranchFilterRejectsMalformedBranchID(t *testing.T) {
	m := middleware.NewBranchFilterMiddleware(zap.NewNop())

	req := requestAs(t, domain.RoleAdmin, uuid.New(), "/api/v1/orders?branch_id=not-a-uuid")
	_, rec := captureFilter(t, m.Filter, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBranchFilterAPIServiceSeesAllBranches(t *testing.T) {
	m := middleware.NewBranchFilterMiddleware(zap.NewNop())

	// The API service identity carries a nil branch and is unfiltered
	req := requestAs(t, domain.RoleAPIService, uuid.Nil, "/api/v1/orders")
	filter, rec := captureFilter(t, m.Filter, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, filter)
	assert.Nil(t, filter.BranchID)
}
