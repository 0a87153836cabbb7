package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plan2bill/access-service/internal/auth"
	"github.com/plan2bill/access-service/internal/core/domain"
	"github.com/plan2bill/access-service/internal/core/ports"
	"github.com/plan2bill/access-service/internal/core/service"
)

// memoryStore backs both repositories so that approval can update the
// requester's role the way the real stores do.
type memoryStore struct {
	mu       sync.Mutex
	seq      int
	users    map[string]*domain.User
	requests map[string]*domain.RoleChangeRequest
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		users:    make(map[string]*domain.User),
		requests: make(map[string]*domain.RoleChangeRequest),
	}
}

func (s *memoryStore) nextID(prefix string) string {
	s.seq++
	return fmt.Sprintf("%s-%d", prefix, s.seq)
}

type memoryUsers struct{ *memoryStore }

func (r memoryUsers) Create(_ context.Context, u *domain.User) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.Email == u.Email {
			return nil, domain.ErrUserExists
		}
	}
	clone := *u
	clone.ID = r.nextID("u")
	r.users[clone.ID] = &clone
	out := clone
	return &out, nil
}

func (r memoryUsers) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			out := *u
			return &out, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r memoryUsers) FindByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	out := *u
	return &out, nil
}

func (r memoryUsers) UpdateRole(_ context.Context, id, role string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	u.Role = role
	out := *u
	return &out, nil
}

type memoryRequests struct{ *memoryStore }

func (r memoryRequests) Insert(_ context.Context, req *domain.RoleChangeRequest) (*domain.RoleChangeRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.requests {
		if existing.UserID == req.UserID && existing.Status == domain.RoleRequestPending {
			return nil, domain.ErrDuplicatePending
		}
	}
	clone := *req
	clone.ID = r.nextID("rr")
	r.requests[clone.ID] = &clone
	out := clone
	return &out, nil
}

func (r memoryRequests) FindPendingByUser(_ context.Context, userID string) ([]*domain.RoleChangeRequest, error) {
	return r.filter(func(req *domain.RoleChangeRequest) bool {
		return req.UserID == userID && req.Status == domain.RoleRequestPending
	}), nil
}

func (r memoryRequests) Resolve(_ context.Context, in ports.ResolveRoleRequestInput) (*domain.RoleChangeRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.requests[in.ID]
	if !ok {
		return nil, domain.ErrRoleRequestNotFound
	}
	if !req.Status.CanTransitionTo(in.Status) {
		return nil, domain.ErrAlreadyResolved
	}
	req.Status = in.Status
	req.ReviewedBy = in.ReviewedBy
	req.UpdatedAt = in.At
	if in.Status == domain.RoleRequestApproved {
		r.users[req.UserID].Role = req.RequestedRole
	}
	out := *req
	return &out, nil
}

func (r memoryRequests) ListByUser(_ context.Context, userID string) ([]*domain.RoleChangeRequest, error) {
	return r.filter(func(req *domain.RoleChangeRequest) bool { return req.UserID == userID }), nil
}

func (r memoryRequests) ListAll(_ context.Context) ([]*domain.RoleChangeRequestView, error) {
	items := r.filter(func(*domain.RoleChangeRequest) bool { return true })
	r.mu.Lock()
	defer r.mu.Unlock()
	views := make([]*domain.RoleChangeRequestView, 0, len(items))
	for _, it := range items {
		v := &domain.RoleChangeRequestView{RoleChangeRequest: *it}
		if u, ok := r.users[it.UserID]; ok {
			v.RequesterEmail, v.RequesterName, v.RequesterRole = u.Email, u.Name, u.Role
		}
		views = append(views, v)
	}
	return views, nil
}

func (r memoryRequests) Delete(_ context.Context, id string) (*domain.RoleChangeRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.requests[id]
	if !ok {
		return nil, domain.ErrRoleRequestNotFound
	}
	delete(r.requests, id)
	return req, nil
}

func (r memoryRequests) filter(keep func(*domain.RoleChangeRequest) bool) []*domain.RoleChangeRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.RoleChangeRequest
	for _, req := range r.requests {
		if keep(req) {
			clone := *req
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// ---------------------------------------------------------------------------
// Harness
// ---------------------------------------------------------------------------

type testServer struct {
	e      *echo.Echo
	store  *memoryStore
	tokens *auth.TokenManager
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	return newTestServerWith(t, nil)
}

func newTestServerWith(t *testing.T, configure func(*Dependencies)) *testServer {
	t.Helper()
	store := newMemoryStore()
	users := memoryUsers{store}

	tokens, err := auth.NewTokenManager("test-secret", "plan2bill", time.Hour)
	require.NoError(t, err)

	deps := Dependencies{
		Auth:         service.NewAuthService(users, tokens, zerolog.Nop()),
		RoleRequests: service.NewRoleRequestService(memoryRequests{store}, nil, zerolog.Nop()),
		Tokens:       tokens,
		Profiles:     users,
		SessionTTL:   tokens.TTL(),
		Registerer:   prometheus.NewRegistry(),
		Log:          zerolog.Nop(),
	}
	if configure != nil {
		configure(&deps)
	}
	e := NewRouter(deps)
	return &testServer{e: e, store: store, tokens: tokens}
}

// seed stores a user directly and returns a bearer header for them.
func (s *testServer) seed(t *testing.T, email, role string) (*domain.User, string) {
	t.Helper()
	u, err := memoryUsers{s.store}.Create(context.Background(), &domain.User{Email: email, Role: role})
	require.NoError(t, err)
	token, err := s.tokens.Issue(u)
	require.NoError(t, err)
	return u, "Bearer " + token
}

func (s *testServer) do(t *testing.T, method, path, bearer, body string) (int, map[string]any) {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if bearer != "" {
		req.Header.Set(echo.HeaderAuthorization, bearer)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), "body: %s", rec.Body.String())
	return rec.Code, resp
}

// countingLimiter is a fixed budget per key that never resets.
type countingLimiter struct {
	mu   sync.Mutex
	hits map[string]int
}

func (l *countingLimiter) Allow(_ context.Context, key string, limit int, _ time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.hits[key]++
	return l.hits[key] <= limit, nil
}

// ---------------------------------------------------------------------------
// End-to-end scenarios
// ---------------------------------------------------------------------------

func TestRoleRequestScenarios(t *testing.T) {
	srv := newTestServer(t)
	member, memberAuth := srv.seed(t, "tm@example.com", domain.RoleTeamMember)
	_, adminAuth := srv.seed(t, "admin@example.com", domain.RoleAdmin)

	// 1. team member requests project_manager
	code, resp := srv.do(t, http.MethodPost, "/role-requests", memberAuth,
		`{"requested_role":"project_manager","reason":"need it"}`)
	require.Equal(t, http.StatusCreated, code, "%v", resp)
	assert.Equal(t, true, resp["success"])
	request := resp["request"].(map[string]any)
	assert.Equal(t, "pending", request["status"])
	requestID := request["id"].(string)

	// 2. a second request while one is pending
	code, resp = srv.do(t, http.MethodPost, "/role-requests", memberAuth,
		`{"requested_role":"project_manager","reason":"again"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, false, resp["success"])
	assert.Equal(t, string(domain.KindConflict), resp["kind"])
	assert.Equal(t, "You already have a pending role request.", resp["message"])

	// 4. non-admin cannot list everything
	code, resp = srv.do(t, http.MethodGet, "/role-requests", memberAuth, "")
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, string(domain.KindForbidden), resp["kind"])

	// 3. admin approves; the live profile now carries the new role
	code, resp = srv.do(t, http.MethodPut, "/role-requests/"+requestID, adminAuth, `{"status":"approved"}`)
	require.Equal(t, http.StatusOK, code, "%v", resp)
	assert.Equal(t, "approved", resp["request"].(map[string]any)["status"])

	// the old token still says team_member; authorization uses the profile
	code, resp = srv.do(t, http.MethodGet, "/auth/me", memberAuth, "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, domain.RoleProjectManager, resp["user"].(map[string]any)["role"])

	// resolving again never re-applies
	code, resp = srv.do(t, http.MethodPut, "/role-requests/"+requestID, adminAuth, `{"status":"rejected"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "This role request has already been resolved.", resp["message"])

	code, resp = srv.do(t, http.MethodGet, "/role-requests/my", memberAuth, "")
	require.Equal(t, http.StatusOK, code)
	mine := resp["requests"].([]any)
	require.Len(t, mine, 1)
	assert.Equal(t, member.ID, mine[0].(map[string]any)["user_id"])

	code, resp = srv.do(t, http.MethodGet, "/role-requests", adminAuth, "")
	require.Equal(t, http.StatusOK, code)
	all := resp["requests"].([]any)
	require.Len(t, all, 1)
	assert.Equal(t, "tm@example.com", all[0].(map[string]any)["requester_email"])
}

func TestRoleRequest_InvalidRequestedRole(t *testing.T) {
	srv := newTestServer(t)
	_, memberAuth := srv.seed(t, "tm@example.com", domain.RoleTeamMember)

	// 5. only project_manager can be requested
	code, resp := srv.do(t, http.MethodPost, "/role-requests", memberAuth, `{"requested_role":"admin"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, string(domain.KindValidation), resp["kind"])
	assert.Equal(t, "Invalid role request. You can only request project manager role.", resp["message"])
}

func TestRoleRequest_AlreadyHasRole(t *testing.T) {
	srv := newTestServer(t)
	_, pmAuth := srv.seed(t, "pm@example.com", domain.RoleProjectManager)

	code, resp := srv.do(t, http.MethodPost, "/role-requests", pmAuth, `{"requested_role":"project_manager"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "You already have this role.", resp["message"])
}

func TestRoleRequest_ResolveValidation(t *testing.T) {
	srv := newTestServer(t)
	_, adminAuth := srv.seed(t, "admin@example.com", domain.RoleAdmin)

	code, resp := srv.do(t, http.MethodPut, "/role-requests/rr-404", adminAuth, `{"status":"maybe"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Invalid status. Must be approved or rejected.", resp["message"])

	code, resp = srv.do(t, http.MethodPut, "/role-requests/rr-404", adminAuth, `{"status":"approved"}`)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, string(domain.KindNotFound), resp["kind"])
}

func TestRoleRequest_Unauthenticated(t *testing.T) {
	srv := newTestServer(t)

	code, resp := srv.do(t, http.MethodGet, "/role-requests/my", "", "")
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "Access denied. No token provided.", resp["message"])

	code, resp = srv.do(t, http.MethodGet, "/role-requests/my", "Bearer garbage", "")
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "Invalid token.", resp["message"])
}

func TestRoleRequest_AdminDelete(t *testing.T) {
	srv := newTestServer(t)
	_, memberAuth := srv.seed(t, "tm@example.com", domain.RoleTeamMember)
	_, adminAuth := srv.seed(t, "admin@example.com", domain.RoleAdmin)

	_, resp := srv.do(t, http.MethodPost, "/role-requests", memberAuth, `{"requested_role":"project_manager"}`)
	id := resp["request"].(map[string]any)["id"].(string)

	code, _ := srv.do(t, http.MethodDelete, "/role-requests/"+id, memberAuth, "")
	assert.Equal(t, http.StatusForbidden, code)

	code, resp = srv.do(t, http.MethodDelete, "/role-requests/"+id, adminAuth, "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, resp["success"])

	code, _ = srv.do(t, http.MethodDelete, "/role-requests/"+id, adminAuth, "")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestAuthFlow(t *testing.T) {
	srv := newTestServer(t)

	code, resp := srv.do(t, http.MethodPost, "/auth/register", "",
		`{"email":"new@example.com","password":"pass1234","name":"New"}`)
	require.Equal(t, http.StatusCreated, code, "%v", resp)
	user := resp["user"].(map[string]any)
	assert.Equal(t, domain.RoleTeamMember, user["role"])
	assert.NotContains(t, user, "password_hash")

	code, resp = srv.do(t, http.MethodPost, "/auth/register", "",
		`{"email":"new@example.com","password":"pass1234"}`)
	assert.Equal(t, http.StatusConflict, code)

	code, resp = srv.do(t, http.MethodPost, "/auth/register", "", `{"email":"bad","password":"short"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, string(domain.KindValidation), resp["kind"])

	code, resp = srv.do(t, http.MethodPost, "/auth/login", "", `{"email":"new@example.com","password":"wrong-pass"}`)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "Invalid email or password.", resp["message"])

	code, resp = srv.do(t, http.MethodPost, "/auth/login", "", `{"email":"new@example.com","password":"pass1234"}`)
	require.Equal(t, http.StatusOK, code)
	token := resp["token"].(string)

	code, resp = srv.do(t, http.MethodGet, "/auth/me", "Bearer "+token, "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "new@example.com", resp["user"].(map[string]any)["email"])
}

func TestChangeRole_AdminOnly(t *testing.T) {
	srv := newTestServer(t)
	member, memberAuth := srv.seed(t, "tm@example.com", domain.RoleTeamMember)
	_, adminAuth := srv.seed(t, "admin@example.com", domain.RoleAdmin)

	code, _ := srv.do(t, http.MethodPut, "/users/"+member.ID+"/role", memberAuth, `{"role":"admin"}`)
	assert.Equal(t, http.StatusForbidden, code)

	code, resp := srv.do(t, http.MethodPut, "/users/"+member.ID+"/role", adminAuth, `{"role":"project_manager"}`)
	require.Equal(t, http.StatusOK, code, "%v", resp)
	assert.Equal(t, domain.RoleProjectManager, resp["user"].(map[string]any)["role"])

	code, _ = srv.do(t, http.MethodPut, "/users/u-missing/role", adminAuth, `{"role":"admin"}`)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)

	code, resp := srv.do(t, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", resp["status"])

	code, _ = srv.do(t, http.MethodGet, "/health/ready", "", "")
	assert.Equal(t, http.StatusOK, code)
}

func TestRegister_SharesLoginBudgetInOwnScope(t *testing.T) {
	limiter := &countingLimiter{hits: map[string]int{}}
	srv := newTestServerWith(t, func(d *Dependencies) {
		d.Limiter = limiter
		d.RateLimits = RateLimits{LoginPerMinute: 2, RoleRequestsPerMinute: 5}
	})

	for i := 0; i < 2; i++ {
		code, resp := srv.do(t, http.MethodPost, "/auth/register", "",
			fmt.Sprintf(`{"email":"user%d@example.com","password":"pass1234"}`, i))
		require.Equal(t, http.StatusCreated, code, "%v", resp)
	}
	code, _ := srv.do(t, http.MethodPost, "/auth/register", "",
		`{"email":"user9@example.com","password":"pass1234"}`)
	assert.Equal(t, http.StatusTooManyRequests, code)

	// login keeps its own counter with the same budget
	code, _ = srv.do(t, http.MethodPost, "/auth/login", "", `{"email":"user0@example.com","password":"pass1234"}`)
	assert.Equal(t, http.StatusOK, code)

	limiter.mu.Lock()
	defer limiter.mu.Unlock()
	var registerHits, loginHits int
	for key, n := range limiter.hits {
		switch {
		case strings.HasPrefix(key, "register:"):
			registerHits += n
		case strings.HasPrefix(key, "login:"):
			loginHits += n
		}
	}
	assert.Equal(t, 3, registerHits)
	assert.Equal(t, 1, loginHits)
}
