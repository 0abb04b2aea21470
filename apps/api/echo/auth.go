package echoapi

import (
	"strconv"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/evasensorial/eva/core"
	"github.com/evasensorial/eva/core/therapist"
)

var (
	jwtContextKey        = "therapistToken"
	contextTherapistKey  = "therapist"
	errTokenSigningFails = errors.New("signing token")
)

// Claims represents the authorization claims transmitted via a JWT.
type Claims struct {
	jwt.StandardClaims
	ID           int    `json:"id"`
	Email        string `json:"email"`
	IsSuperAdmin bool   `json:"es_superadmin"`
}

func newJWTConfig(conf *core.Config) middleware.JWTConfig {
	return middleware.JWTConfig{
		SigningKey:    []byte(conf.SecretKey),
		SigningMethod: middleware.AlgorithmHS256,
		ContextKey:    jwtContextKey,
		Claims:        new(Claims),
	}
}

func GetTherapistClaims(t therapist.Therapist, conf *core.Config) *Claims {
	now := time.Now()
	ttl := conf.Server.JWTExpirationDelta
	if ttl <= 0 {
		ttl = 8 * time.Hour
	}
	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    conf.AppName,
			Subject:   strconv.Itoa(t.ID),
			ExpiresAt: now.Add(ttl).Unix(),
			IssuedAt:  now.Unix(),
		},
		ID:           t.ID,
		Email:        t.Email,
		IsSuperAdmin: t.IsSuperAdmin,
	}
}

// GenerateToken generates a signed JWT token string representing the therapist Claims.
func GenerateToken(claims *Claims, conf *core.Config) (string, error) {
	token := jwt.NewWithClaims(jwt.GetSigningMethod(middleware.AlgorithmHS256), claims)
	ss, err := token.SignedString([]byte(conf.SecretKey))
	if err != nil {
		return "", errors.Wrap(errTokenSigningFails, err.Error())
	}
	return ss, nil
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(jwtContextKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, errUnauthorized
}

// getContextTherapist returns the therapist loaded by therapistMiddleware.
func getContextTherapist(ctx echo.Context) (therapist.Therapist, bool) {
	t, ok := ctx.Get(contextTherapistKey).(therapist.Therapist)
	return t, ok
}
