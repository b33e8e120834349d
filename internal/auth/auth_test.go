package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"tomdash/pkg/database/databasetest"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testTokens() TokenService {
	return TokenService{Secret: []byte("test-secret"), Issuer: "tomdash-test", Duration: time.Hour}
}

func mustCreate(t *testing.T, repo *Repo, username string) User {
	t.Helper()
	u, err := NewUser(username, username+"@example.org", "password123", false)
	if err != nil {
		t.Fatalf("NewUser: %v", err)
	}
	if err := repo.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	return u
}

func TestTokenRoundTrip(t *testing.T) {
	ts := testTokens()
	u := &User{ID: "u1", Username: "alice", IsSuperuser: true, TokenVersion: 3}

	raw, exp, err := ts.Sign(u)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if time.Until(exp) <= 0 {
		t.Fatalf("expiry in the past: %v", exp)
	}

	claims, err := ts.Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if claims.UserID != "u1" || claims.Username != "alice" || !claims.Superuser || claims.TokenVersion != 3 {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestTokenRejectsOtherSecretAndIssuer(t *testing.T) {
	raw, _, err := testTokens().Sign(&User{ID: "u1", Username: "alice"})
	if err != nil {
		t.Fatal(err)
	}

	other := testTokens()
	other.Secret = []byte("different")
	if _, err := other.Parse(raw); err == nil {
		t.Fatal("expected failure with different secret")
	}

	other = testTokens()
	other.Issuer = "someone-else"
	if _, err := other.Parse(raw); err == nil {
		t.Fatal("expected failure with different issuer")
	}
}

func TestNewUserValidation(t *testing.T) {
	cases := []struct {
		name, username, email, password, want string
	}{
		{"short username", "al", "a@b.c", "password123", "username must be 3-30 chars"},
		{"bad email", "alice", "alice", "password123", "invalid email"},
		{"short password", "alice", "a@b.c", "short", "password must be 8-72 chars"},
		{"ok", "alice", "A@B.C", "password123", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			u, err := NewUser(tc.username, tc.email, tc.password, false)
			if tc.want == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if u.Email != "a@b.c" {
					t.Fatalf("email not normalized: %q", u.Email)
				}
				return
			}
			if !errors.Is(err, ErrInvalidUser) || !strings.HasSuffix(err.Error(), tc.want) {
				t.Fatalf("err = %v, want %q", err, tc.want)
			}
		})
	}
}

func TestLookupUsername(t *testing.T) {
	repo := NewRepo(databasetest.New(t))
	created := mustCreate(t, repo, "alice")

	u, err := repo.LookupUsername(context.Background(), "alice")
	if err != nil {
		t.Fatalf("LookupUsername: %v", err)
	}
	if u.ID != created.ID || u.IsSuperuser {
		t.Fatalf("unexpected user: %+v", u)
	}

	_, err = repo.LookupUsername(context.Background(), "bob")
	if !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("err = %v, want ErrUserNotFound", err)
	}

	if err := repo.SetSuperuser(context.Background(), created.ID, true); err != nil {
		t.Fatalf("SetSuperuser: %v", err)
	}
	u, _ = repo.GetByID(context.Background(), created.ID)
	if !u.IsSuperuser {
		t.Fatal("superuser flag not stored")
	}
}

func TestMiddlewareRejectsAfterLogout(t *testing.T) {
	repo := NewRepo(databasetest.New(t))
	ts := testTokens()
	u := mustCreate(t, repo, "alice")

	raw, _, err := ts.Sign(&u)
	if err != nil {
		t.Fatal(err)
	}

	r := gin.New()
	r.GET("/who", AuthMiddleware(ts, repo), func(c *gin.Context) {
		name, _ := ViewerFrom(c.Request.Context())
		c.String(http.StatusOK, name)
	})

	do := func(setup func(*http.Request)) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/who", nil)
		setup(req)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	w := do(func(req *http.Request) {})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("no token: code = %d", w.Code)
	}

	w = do(func(req *http.Request) { req.Header.Set("Authorization", "Bearer "+raw) })
	if w.Code != http.StatusOK || w.Body.String() != "alice" {
		t.Fatalf("bearer: code = %d body = %q", w.Code, w.Body.String())
	}

	w = do(func(req *http.Request) { req.AddCookie(&http.Cookie{Name: CookieName, Value: raw}) })
	if w.Code != http.StatusOK {
		t.Fatalf("cookie: code = %d", w.Code)
	}

	if err := repo.BumpTokenVersion(context.Background(), u.ID); err != nil {
		t.Fatal(err)
	}
	w = do(func(req *http.Request) { req.Header.Set("Authorization", "Bearer "+raw) })
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("after logout: code = %d", w.Code)
	}
}

func TestRegisterThenLogin(t *testing.T) {
	repo := NewRepo(databasetest.New(t))
	h := NewHandler(repo, testTokens(), nil)

	r := gin.New()
	h.RegisterRoutes(r.Group("/auth"))

	post := func(path, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	w := post("/auth/register", `{"username":"alice","email":"alice@example.org","password":"password123"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("register: code = %d body = %s", w.Code, w.Body.String())
	}

	w = post("/auth/register", `{"username":"alice","email":"other@example.org","password":"password123"}`)
	if w.Code != http.StatusConflict {
		t.Fatalf("duplicate register: code = %d", w.Code)
	}

	w = post("/auth/register", `{"username":"al","email":"al@example.org","password":"password123"}`)
	if w.Code != http.StatusBadRequest || !strings.Contains(w.Body.String(), `"username must be 3-30 chars"`) {
		t.Fatalf("invalid register: code = %d body = %s", w.Code, w.Body.String())
	}

	w = post("/auth/login", `{"username":"alice","password":"wrong-password"}`)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("bad login: code = %d", w.Code)
	}

	w = post("/auth/login", `{"username":"alice","password":"password123"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("login: code = %d body = %s", w.Code, w.Body.String())
	}
	var body struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil || body.Token == "" {
		t.Fatalf("login body: %s (%v)", w.Body.String(), err)
	}

	var sawCookie bool
	for _, c := range w.Result().Cookies() {
		if c.Name == CookieName && c.Value == body.Token {
			sawCookie = true
		}
	}
	if !sawCookie {
		t.Fatal("login did not set session cookie")
	}
}
