package auth

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/arawak/scenes/internal/store"
)

var ErrInvalidCredentials = errors.New("invalid username or password")
var ErrInvalidToken = errors.New("invalid token")

const AdminRole = "admin"

// Service authenticates users and issues short-lived bearer tokens for the
// JSON API.
type Service struct {
	store  *store.Store
	secret []byte
	ttl    time.Duration
}

func New(st *store.Store, secret string, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Service{store: st, secret: []byte(secret), ttl: ttl}
}

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// Authenticate verifies a username/password pair against the user store.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*store.User, error) {
	user, err := s.store.GetUserByUsername(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// IssueToken mints a signed HS256 token for the user.
func (s *Service) IssueToken(user *store.User) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(user.ID, 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		ID:        uuid.NewString(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// VerifyToken validates a bearer token and returns the user id it names.
func (s *Service) VerifyToken(tokenString string) (int64, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return 0, ErrInvalidToken
	}
	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return 0, ErrInvalidToken
	}
	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return 0, ErrInvalidToken
	}
	return userID, nil
}

func (s *Service) HasRole(ctx context.Context, userID int64, role string) (bool, error) {
	return s.store.UserHasRole(ctx, userID, role)
}

// InitializeAdmin creates the admin account on first run. A no-op when any
// user already exists.
func (s *Service) InitializeAdmin(ctx context.Context, username, password string) (int64, error) {
	n, err := s.store.CountUsers(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		return 0, nil
	}
	hash, err := HashPassword(password)
	if err != nil {
		return 0, err
	}
	userID, err := s.store.CreateUser(ctx, username, nil, hash)
	if err != nil {
		return 0, err
	}
	if err := s.store.AssignRole(ctx, userID, AdminRole); err != nil {
		return 0, err
	}
	return userID, nil
}

// IPAllowed checks an address against the active whitelist entries. Entries
// are exact addresses or CIDR ranges. An empty whitelist allows everyone.
func (s *Service) IPAllowed(ctx context.Context, remoteAddr string) (bool, error) {
	entries, err := s.store.IPWhitelist(ctx, true)
	if err != nil {
		return false, err
	}
	if len(entries) == 0 {
		return true, nil
	}

	host := remoteAddr
	if i := strings.LastIndex(host, ":"); i > 0 && !strings.Contains(host[i:], "]") {
		host = host[:i]
	}
	host = strings.Trim(host, "[]")
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return false, nil
	}

	for _, entry := range entries {
		if strings.Contains(entry.IPAddress, "/") {
			prefix, err := netip.ParsePrefix(entry.IPAddress)
			if err == nil && prefix.Contains(addr) {
				return true, nil
			}
			continue
		}
		if allowed, err := netip.ParseAddr(entry.IPAddress); err == nil && allowed == addr {
			return true, nil
		}
	}
	return false, nil
}
