package identity

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"meetdesk/backend/internal/domain"
)

var ErrUnauthenticated = errors.New("unauthenticated")

// Claims carry the caller's role and the profile it acts for. ProfileID falls
// back to the subject when absent.
type Claims struct {
	Role      string `json:"role"`
	ProfileID string `json:"profile_id,omitempty"`
	jwt.RegisteredClaims
}

// Authenticator verifies HS256 bearer tokens and turns them into actors.
type Authenticator struct {
	secret []byte
	now    func() time.Time
}

func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{secret: []byte(secret), now: time.Now}
}

func (a *Authenticator) Authenticate(token string) (domain.Actor, error) {
	token = strings.TrimSpace(token)
	if token == "" || len(a.secret) == 0 {
		return domain.Actor{}, ErrUnauthenticated
	}

	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenMalformed
		}
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil || !parsed.Valid {
		return domain.Actor{}, ErrUnauthenticated
	}

	return actorFromClaims(claims)
}

// AuthenticateHeader accepts an Authorization header value of the form "Bearer <token>".
func (a *Authenticator) AuthenticateHeader(header string) (domain.Actor, error) {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return domain.Actor{}, ErrUnauthenticated
	}
	return a.Authenticate(parts[1])
}

// Issue signs a token for actor that expires after ttl. A zero ttl issues a
// token without expiry.
func (a *Authenticator) Issue(actor domain.Actor, ttl time.Duration) (string, error) {
	if !actor.Valid() {
		return "", errors.New("cannot issue token for invalid actor")
	}
	now := a.now()
	claims := Claims{
		Role:      string(actor.Role()),
		ProfileID: actor.ProfileID().String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  actor.ProfileID().String(),
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

func actorFromClaims(c Claims) (domain.Actor, error) {
	role, ok := domain.ParseRole(c.Role)
	if !ok {
		return domain.Actor{}, ErrUnauthenticated
	}
	raw := c.ProfileID
	if raw == "" {
		raw = c.Subject
	}
	profileID, err := uuid.Parse(raw)
	if err != nil || profileID == uuid.Nil {
		return domain.Actor{}, ErrUnauthenticated
	}

	switch role {
	case domain.RoleProvider:
		return domain.ProviderActor(profileID), nil
	default:
		return domain.CustomerActor(profileID), nil
	}
}
