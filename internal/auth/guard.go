package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sitedesk/apiserver/internal/store"
	"github.com/sitedesk/apiserver/types"
)

var (
	// ErrUnauthenticated means the request carries no usable credentials.
	ErrUnauthenticated = errors.New("could not validate credentials")
	// ErrInactiveUser means the credentials belong to a disabled account.
	ErrInactiveUser = errors.New("inactive user")
)

// IdentityStore loads administrators by id.
type IdentityStore interface {
	GetByID(ctx context.Context, id string) (types.AdminUser, error)
}

// Guard resolves the caller of a request from its Authorization header.
type Guard struct {
	tokens *TokenCodec
	admins IdentityStore
}

func NewGuard(tokens *TokenCodec, admins IdentityStore) *Guard {
	return &Guard{tokens: tokens, admins: admins}
}

// Resolve maps an Authorization header to an active administrator. It returns
// ErrUnauthenticated or ErrInactiveUser for rejected callers; any other error
// is a storage failure.
func (g *Guard) Resolve(ctx context.Context, header string) (types.AdminUser, error) {
	raw, ok := BearerToken(header)
	if !ok {
		return types.AdminUser{}, ErrUnauthenticated
	}
	subject, err := g.tokens.Verify(raw)
	if err != nil {
		return types.AdminUser{}, ErrUnauthenticated
	}

	admin, err := g.admins.GetByID(ctx, subject)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.AdminUser{}, ErrUnauthenticated
		}
		return types.AdminUser{}, fmt.Errorf("load identity: %w", err)
	}
	if !admin.IsActive {
		return types.AdminUser{}, ErrInactiveUser
	}
	return admin, nil
}

// BearerToken extracts the token from an "Authorization: Bearer <token>"
// header value. The scheme is matched case-insensitively.
func BearerToken(header string) (string, bool) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", false
	}
	return token, true
}

type contextKey struct{}

// WithAdmin returns a context carrying the resolved administrator.
func WithAdmin(ctx context.Context, admin types.AdminUser) context.Context {
	return context.WithValue(ctx, contextKey{}, admin)
}

// AdminFromContext returns the administrator placed by WithAdmin.
func AdminFromContext(ctx context.Context) (types.AdminUser, bool) {
	admin, ok := ctx.Value(contextKey{}).(types.AdminUser)
	return admin, ok
}
