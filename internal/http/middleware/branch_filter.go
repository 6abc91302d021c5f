package middleware

import (
	"net/http"

	"github.com/garagedesk/workshop-api/internal/auth"
	"github.com/garagedesk/workshop-api/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// BranchFilterMiddleware handles per-branch data isolation.
// Staff users are always scoped to their token's branch; admins and the
// API service identity can select a branch with ?branch_id=<uuid>.
type BranchFilterMiddleware struct {
	logger *zap.Logger
}

// NewBranchFilterMiddleware creates a new branch filter middleware
func NewBranchFilterMiddleware(logger *zap.Logger) *BranchFilterMiddleware {
	return &BranchFilterMiddleware{
		logger: logger,
	}
}

// Filter sets the effective branch filter in the request context.
// - Admins and the API service may override with ?branch_id=<uuid>
// - All other users are always filtered to their own branch
// - The API service without a branch sees all branches
func (m *BranchFilterMiddleware) Filter(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userCtx, ok := auth.FromContext(r.Context())
		if !ok {
			// Authentication middleware rejects unauthenticated requests
			// before this point
			next.ServeHTTP(w, r)
			return
		}

		var filter *auth.BranchFilter

		requested := r.URL.Query().Get("branch_id")
		if requested != "" {
			branchID, err := uuid.Parse(requested)
			if err != nil {
				http.Error(w, "Invalid branch_id parameter", http.StatusBadRequest)
				return
			}

			if !userCtx.HasAnyRole(domain.RoleAdmin, domain.RoleAPIService) && branchID != userCtx.BranchID {
				m.logger.Warn("user attempted to access another branch",
					zap.String("user_id", userCtx.UserID.String()),
					zap.String("user_branch", userCtx.BranchID.String()),
					zap.String("requested_branch", requested),
				)
				http.Error(w, "Access denied: you cannot access data for this branch", http.StatusForbidden)
				return
			}

			filter = &auth.BranchFilter{BranchID: &branchID}
		} else {
			filter = &auth.BranchFilter{BranchID: userCtx.GetBranchFilter()}
		}

		ctx := auth.WithBranchFilter(r.Context(), filter)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
