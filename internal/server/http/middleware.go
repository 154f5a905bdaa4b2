package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/fraudwatch/fraudwatch/internal/common"
	"github.com/fraudwatch/fraudwatch/internal/server/auth"
)

type ctxKey string

const addressKey ctxKey = "walletAddress"

// requireAuth validates the bearer session token and stores the wallet
// address in the request context.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			s.writeError(w, r, common.ErrInvalidToken)
			return
		}

		address, err := auth.GetAddressFromToken(token, s.jwtSecret)
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		ctx := context.WithValue(r.Context(), addressKey, strings.ToLower(address))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireGovernance gates the broadcast and decision endpoints behind the
// configured governance allow-list.
func (s *Server) requireGovernance(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.governance[requestAddress(r.Context())] {
			s.writeJSON(w, http.StatusForbidden, errorResponse{Error: "governance access required"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func requestAddress(ctx context.Context) string {
	address, _ := ctx.Value(addressKey).(string)
	return address
}
