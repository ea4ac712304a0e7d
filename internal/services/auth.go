package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/yungbote/coursegate-backend/internal/platform/ctxutil"
	"github.com/yungbote/coursegate-backend/internal/platform/logger"
)

var ErrInvalidToken = errors.New("invalid or expired token")

// JWTClaims is the access token payload issued by the identity service.
type JWTClaims struct {
	Role      string `json:"role"`
	SessionID string `json:"sid,omitempty"`
	jwt.RegisteredClaims
}

// TokenVerifier checks access tokens. Issuing and refreshing tokens happens
// elsewhere; this service only verifies them.
type TokenVerifier interface {
	Verify(ctx context.Context, tokenString string) (*ctxutil.RequestData, error)
	SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error)
}

type tokenVerifier struct {
	log       *logger.Logger
	secretKey []byte
	issuer    string
	leeway    time.Duration
}

func NewTokenVerifier(log *logger.Logger, secretKey, issuer string) TokenVerifier {
	return &tokenVerifier{
		log:       log.With("service", "TokenVerifier"),
		secretKey: []byte(secretKey),
		issuer:    strings.TrimSpace(issuer),
		leeway:    30 * time.Second,
	}
}

func (tv *tokenVerifier) Verify(ctx context.Context, tokenString string) (*ctxutil.RequestData, error) {
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" || len(tv.secretKey) == 0 {
		return nil, ErrInvalidToken
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(tv.leeway),
		jwt.WithExpirationRequired(),
	}
	if tv.issuer != "" {
		opts = append(opts, jwt.WithIssuer(tv.issuer))
	}
	parsed, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		return tv.secretKey, nil
	}, opts...)
	if err != nil {
		tv.log.Debug("Token rejected", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := parsed.Claims.(*JWTClaims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil || userID == uuid.Nil {
		return nil, fmt.Errorf("%w: bad subject", ErrInvalidToken)
	}
	rd := &ctxutil.RequestData{UserID: userID, Role: ctxutil.RoleStudent}
	if strings.EqualFold(claims.Role, string(ctxutil.RoleAdmin)) {
		rd.Role = ctxutil.RoleAdmin
	}
	if sid, err := uuid.Parse(claims.SessionID); err == nil {
		rd.SessionID = sid
	}
	return rd, nil
}

func (tv *tokenVerifier) SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error) {
	rd, err := tv.Verify(ctx, tokenString)
	if err != nil {
		return ctx, err
	}
	return ctxutil.WithRequestData(ctx, rd), nil
}

// SignAccessToken mints an HS256 token with the claims Verify expects. Used
// by tests and the local sync CLI.
func SignAccessToken(secretKey string, userID uuid.UUID, role ctxutil.Role, sessionID uuid.UUID, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := JWTClaims{
		Role: string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	if sessionID != uuid.Nil {
		claims.SessionID = sessionID.String()
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secretKey))
}
