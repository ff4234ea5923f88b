package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
)

// Identity is who placed a request. The zero value is a guest.
type Identity struct {
	UserID string
	Email  string
	Role   string
}

func Guest() Identity { return Identity{} }

func (i Identity) IsGuest() bool { return i.UserID == "" }

// UserLookup maps the email carried by a token to a stored user id.
type UserLookup interface {
	UserIDByEmail(ctx context.Context, email string) (string, error)
}

// Resolver turns an optional access token into an Identity. It never fails:
// guest checkout is a supported state, so any verification problem demotes
// the caller to a guest and is only logged.
type Resolver struct {
	keys  *Keys
	users UserLookup
	log   *slog.Logger
}

func NewResolver(keys *Keys, users UserLookup, log *slog.Logger) *Resolver {
	if log == nil {
		log = slog.Default()
	}
	return &Resolver{keys: keys, users: users, log: log}
}

func (r *Resolver) Resolve(ctx context.Context, token string) Identity {
	if token == "" {
		return Guest()
	}
	claims, err := r.keys.ValidateToken(token)
	if err != nil {
		r.log.InfoContext(ctx, "token rejected, continuing as guest", slog.String("reason", err.Error()))
		return Guest()
	}
	userID, err := r.users.UserIDByEmail(ctx, claims.Email)
	if err != nil || userID == "" {
		r.log.WarnContext(ctx, "token subject not resolvable, continuing as guest",
			slog.String("email", claims.Email), slog.Any("error", err))
		return Guest()
	}
	return Identity{UserID: userID, Email: claims.Email, Role: claims.Role}
}

// TokenFromRequest reads a bearer token from the Authorization header and
// falls back to the accessToken cookie.
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		parts := strings.SplitN(h, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	if ck, err := r.Cookie("accessToken"); err == nil {
		return ck.Value
	}
	return ""
}

const identityKey ctxKey = 2

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFrom returns the identity stored on ctx, or a guest.
func IdentityFrom(ctx context.Context) Identity {
	id, _ := ctx.Value(identityKey).(Identity)
	return id
}
