package mockapi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aryan0dhankhar/churchconsole/internal/domain"
	"github.com/aryan0dhankhar/churchconsole/internal/security/auth"
	"github.com/aryan0dhankhar/churchconsole/internal/security/ratelimit"
	"github.com/google/uuid"
)

// Config configures the development API
type Config struct {
	Secret      string
	TokenTTL    time.Duration
	LoginLimit  int
	LoginWindow time.Duration
}

// Server is a stand-in for the remote REST API.
// It issues HS256 tokens, renews them and serves tenant-scoped sample data.
type Server struct {
	tokens  *auth.TokenManager
	users   *auth.UserStore
	limiter *ratelimit.Limiter
	cfg     Config
	logger  *slog.Logger

	renewCalls  atomic.Int64
	rejectRenew atomic.Bool

	mu   sync.Mutex
	seen []string
}

type loginResponse struct {
	Token string      `json:"token"`
	User  domain.User `json:"user"`
}

type ctxKey struct{}

// New creates a development API server
func New(cfg Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 15 * time.Minute
	}
	if cfg.LoginLimit <= 0 {
		cfg.LoginLimit = 5
	}
	if cfg.LoginWindow <= 0 {
		cfg.LoginWindow = time.Minute
	}
	return &Server{
		tokens:  auth.NewTokenManager(cfg.Secret, "churchconsole-mockapi"),
		users:   auth.NewUserStore(),
		limiter: ratelimit.NewLimiter(cfg.LoginLimit, cfg.LoginWindow),
		cfg:     cfg,
		logger:  logger,
	}
}

// Users exposes the account store for seeding
func (s *Server) Users() *auth.UserStore {
	return s.users
}

// IssueToken signs a token for userID valid for ttl
func (s *Server) IssueToken(userID domain.ID, ttl time.Duration) (string, error) {
	return s.tokens.GenerateToken(string(userID), "", ttl)
}

// RenewCalls reports how many renew-token requests were served
func (s *Server) RenewCalls() int64 {
	return s.renewCalls.Load()
}

// RejectRenewals makes renew-token answer 401, as when the refresh credential is revoked
func (s *Server) RejectRenewals(reject bool) {
	s.rejectRenew.Store(reject)
}

// SeenTokens returns the bearer tokens accepted on resource endpoints
func (s *Server) SeenTokens() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.seen...)
}

// Close releases background resources
func (s *Server) Close() {
	s.limiter.Stop()
}

// Handler returns the API routes
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login", s.login)
	mux.HandleFunc("POST /auth/renew-token", s.renew)
	mux.Handle("GET /me", s.requireUser(http.HandlerFunc(s.me)))
	mux.Handle("GET /churches", s.requireUser(http.HandlerFunc(s.churches)))
	mux.Handle("GET /members", s.requireUser(http.HandlerFunc(s.members)))
	return mux
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var creds domain.Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	if creds.Email == "" || creds.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password required")
		return
	}

	key := "login:" + strings.ToLower(creds.Email)
	if ok, retryAfter := s.limiter.Reserve(key, s.cfg.LoginLimit, s.cfg.LoginWindow); !ok {
		w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
		writeError(w, http.StatusTooManyRequests, "too many login attempts")
		return
	}

	user, err := s.users.Authenticate(creds.Email, creds.Password)
	if err != nil {
		s.logger.Warn("authentication failed",
			slog.String("email", creds.Email),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := s.IssueToken(user.ID, s.cfg.TokenTTL)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "token generation failed")
		return
	}

	s.logger.Info("user logged in", slog.String("user_id", string(user.ID)))
	writeJSON(w, http.StatusOK, loginResponse{Token: token, User: *user})
}

func (s *Server) renew(w http.ResponseWriter, r *http.Request) {
	s.renewCalls.Add(1)

	if s.rejectRenew.Load() {
		writeError(w, http.StatusUnauthorized, "refresh credential revoked")
		return
	}
	user, _, err := s.authenticate(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}

	token, err := s.IssueToken(user.ID, s.cfg.TokenTTL)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "token generation failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, userFrom(r.Context()))
}

func (s *Server) churches(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, userFrom(r.Context()).Churches)
}

// Member is a sample tenant-scoped record
type Member struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	ChurchID   domain.ID `json:"churchId"`
	MinistryID domain.ID `json:"ministryId"`
}

func (s *Server) members(w http.ResponseWriter, r *http.Request) {
	churchID := domain.ID(r.Header.Get("X-Church-ID"))
	if churchID == "" {
		writeError(w, http.StatusBadRequest, "X-Church-ID header required")
		return
	}
	ministryID := domain.ID(r.Header.Get("X-Ministry-ID"))

	out := make([]Member, 0, 3)
	for i := 1; i <= 3; i++ {
		name := fmt.Sprintf("member-%s-%d", churchID, i)
		out = append(out, Member{
			ID:         uuid.NewSHA1(uuid.NameSpaceOID, []byte(name)).String(),
			Name:       name,
			ChurchID:   churchID,
			MinistryID: ministryID,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, token, err := s.authenticate(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
		s.mu.Lock()
		s.seen = append(s.seen, token)
		s.mu.Unlock()
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, user)))
	})
}

func (s *Server) authenticate(r *http.Request) (*domain.User, string, error) {
	token, err := auth.ExtractToken(r.Header.Get("Authorization"))
	if err != nil {
		return nil, "", err
	}
	claims, err := s.tokens.ValidateToken(token)
	if err != nil {
		return nil, "", fmt.Errorf("invalid token")
	}
	user, err := s.users.GetByID(domain.ID(claims.UserID))
	if err != nil {
		return nil, "", fmt.Errorf("unknown user")
	}
	return user, token, nil
}

func userFrom(ctx context.Context) *domain.User {
	u, _ := ctx.Value(ctxKey{}).(*domain.User)
	return u
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
