package httpapi

import (
	"crypto/subtle"
	"errors"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"autoparts/backend/internal/domain"
)

const tokenIssuer = "autoparts"

// hashCost is lowered by tests.
var hashCost = bcrypt.DefaultCost

var errInvalidCredentials = errors.New("invalid credentials")

// AuthManager authenticates the single store operator and guards destructive
// actions behind a confirmation PIN.
type AuthManager struct {
	secret       []byte
	tokenTTL     time.Duration
	username     string
	passwordHash string
	confirmPIN   string
}

type operatorClaims struct {
	jwtlib.RegisteredClaims
}

func NewAuthManager(secret string, tokenTTL time.Duration, username string, password string, confirmPIN string) *AuthManager {
	if secret == "" {
		secret = "dev-change-me"
	}
	if tokenTTL <= 0 {
		tokenTTL = 8 * time.Hour
	}
	username = strings.TrimSpace(username)
	if username == "" {
		username = "admin"
	}

	manager := &AuthManager{
		secret:   []byte(secret),
		tokenTTL: tokenTTL,
		username: username,
	}
	if password != "" {
		if hash, err := hashPassword(password); err == nil {
			manager.passwordHash = hash
		}
	}
	if pin := strings.TrimSpace(confirmPIN); pin != "" {
		if hash, err := hashPassword(pin); err == nil {
			manager.confirmPIN = hash
		}
	}
	return manager
}

func (a *AuthManager) Login(req domain.LoginRequest) (domain.LoginResponse, error) {
	username := strings.TrimSpace(req.Username)
	validUser := subtle.ConstantTimeCompare([]byte(username), []byte(a.username)) == 1
	validPassword := verifyPassword(a.passwordHash, req.Password)
	if !validUser || !validPassword {
		return domain.LoginResponse{}, errInvalidCredentials
	}

	expiresAt := time.Now().UTC().Add(a.tokenTTL)
	token, err := a.sign(a.username, expiresAt)
	if err != nil {
		return domain.LoginResponse{}, err
	}

	return domain.LoginResponse{
		AccessToken: token,
		ExpiresAt:   expiresAt.Format(time.RFC3339),
	}, nil
}

func (a *AuthManager) ParseToken(tokenStr string) (domain.Actor, error) {
	claims := &operatorClaims{}
	token, err := jwtlib.ParseWithClaims(tokenStr, claims, func(t *jwtlib.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	}, jwtlib.WithValidMethods([]string{"HS256"}), jwtlib.WithIssuer(tokenIssuer))
	if err != nil || !token.Valid {
		return domain.Actor{}, errors.New("invalid or expired token")
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return domain.Actor{}, errors.New("invalid token subject")
	}
	return domain.Actor{Username: sub}, nil
}

func (a *AuthManager) sign(username string, expiresAt time.Time) (string, error) {
	claims := operatorClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   username,
			IssuedAt:  jwtlib.NewNumericDate(time.Now().UTC()),
			ExpiresAt: jwtlib.NewNumericDate(expiresAt),
			Issuer:    tokenIssuer,
		},
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

// ValidateConfirmPIN reports whether pin matches the configured confirmation
// PIN. It always fails when no PIN is configured.
func (a *AuthManager) ValidateConfirmPIN(pin string) bool {
	input := strings.TrimSpace(pin)
	if input == "" || !isPasswordHash(a.confirmPIN) {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(a.confirmPIN), []byte(input)) == nil
}

func verifyPassword(stored string, input string) bool {
	if stored == "" || strings.TrimSpace(input) == "" || !isPasswordHash(stored) {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(stored), []byte(input)) == nil
}

func hashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), hashCost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

func isPasswordHash(value string) bool {
	return strings.HasPrefix(value, "$2a$") || strings.HasPrefix(value, "$2b$") || strings.HasPrefix(value, "$2y$")
}
