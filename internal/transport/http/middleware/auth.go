package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/baechuer/lms-auth-service/internal/application/auth"
	"github.com/baechuer/lms-auth-service/internal/domain"
)

type TokenVerifier interface {
	VerifyAccessToken(token string) (auth.TokenClaims, error)
}

type WriteErrFunc func(http.ResponseWriter, *http.Request, error)

// AccountReader lets the middleware see locks and role changes made after
// the access token was issued.
type AccountReader interface {
	GetByID(ctx context.Context, id string) (domain.Account, error)
}

// Auth verifies "Authorization: Bearer <access_token>" and puts the caller's
// id and role into the request context. With a non-nil accounts reader the
// role comes from the store and locked accounts are refused.
func Auth(verifier TokenVerifier, accounts AccountReader, writeErr WriteErrFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, err := bearerToken(r)
			if err != nil {
				writeErr(w, r, err)
				return
			}

			claims, err := verifier.VerifyAccessToken(raw)
			if err != nil {
				writeErr(w, r, err)
				return
			}
			if strings.TrimSpace(claims.UserID) == "" {
				writeErr(w, r, domain.ErrTokenInvalid())
				return
			}

			role := claims.Role
			if accounts != nil {
				acct, err := accounts.GetByID(r.Context(), claims.UserID)
				switch {
				case domain.Is(err, "user_not_found"):
					writeErr(w, r, domain.ErrTokenInvalid())
					return
				case err != nil:
					writeErr(w, r, err)
					return
				case acct.Locked:
					writeErr(w, r, domain.ErrAccountLocked())
					return
				}
				role = acct.Role
			}

			ctx := WithUser(r.Context(), claims.UserID, role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, error) {
	h := r.Header.Get("Authorization")
	if h == "" {
		return "", domain.ErrTokenMissing()
	}
	scheme, tok, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", domain.ErrTokenInvalid()
	}
	tok = strings.TrimSpace(tok)
	if tok == "" {
		return "", domain.ErrTokenInvalid()
	}
	return tok, nil
}
