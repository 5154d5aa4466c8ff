package identitysvc

import (
	"fmt"
	"net/http"

	"github.com/mkrupp/storefront/internal/domain"
	"github.com/mkrupp/storefront/internal/infra/logging"
	http_ "github.com/mkrupp/storefront/internal/infra/transport/http"
)

// SignupRequest is the body of POST /auth/signup.
type SignupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// MeResponse is the body of GET /auth/me. User is null for guests.
type MeResponse struct {
	User *domain.UserResponse `json:"user"`
}

// HTTPTransport handles HTTP requests for the identity service.
type HTTPTransport struct {
	identitySvc *IdentityService
	log         logging.Logger
	mux         *http.ServeMux
}

var _ http_.HTTPTransport = (*HTTPTransport)(nil)

// NewHTTPTransport creates a new HTTPTransport for the given identity service.
func NewHTTPTransport(identitySvc *IdentityService) *HTTPTransport {
	ht := &HTTPTransport{
		identitySvc: identitySvc,
		log:         logging.GetLogger("svc.identitysvc.http_transport"),
		mux:         http.NewServeMux(),
	}

	ht.RegisterRoutes(ht.mux)

	return ht
}

// RegisterRoutes adds the identity endpoints:
// - POST /auth/signup: Register and log in
// - POST /auth/login: Log in
// - POST /auth/logout: Log out
// - GET /auth/me: Current identity.
func (ht *HTTPTransport) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /auth/signup", http_.Handle(ht.log, "signup", ht.handleSignup))
	mux.HandleFunc("POST /auth/login", http_.Handle(ht.log, "login", ht.handleLogin))
	mux.HandleFunc("POST /auth/logout", http_.Handle(ht.log, "logout", ht.handleLogout))
	mux.HandleFunc("GET /auth/me", http_.Handle(ht.log, "current user", ht.handleMe))
}

// ServeHTTP implements http.Handler.
func (ht *HTTPTransport) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ht.mux.ServeHTTP(w, r)
}

func (ht *HTTPTransport) handleSignup(r *http.Request) (int, any, error) {
	var req SignupRequest
	if err := http_.ReadJSON(r, &req); err != nil {
		return 0, nil, err
	}

	user, err := ht.identitySvc.Register(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		return 0, nil, fmt.Errorf("register user: %w", err)
	}

	return http.StatusCreated, user.Response(), nil
}

func (ht *HTTPTransport) handleLogin(r *http.Request) (int, any, error) {
	var req LoginRequest
	if err := http_.ReadJSON(r, &req); err != nil {
		return 0, nil, err
	}

	user, err := ht.identitySvc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		return 0, nil, fmt.Errorf("login user: %w", err)
	}

	return http.StatusOK, user.Response(), nil
}

func (ht *HTTPTransport) handleLogout(r *http.Request) (int, any, error) {
	ht.identitySvc.Logout(r.Context())

	return http.StatusNoContent, nil, nil
}

func (ht *HTTPTransport) handleMe(r *http.Request) (int, any, error) {
	var resp MeResponse

	if _, user := ht.identitySvc.Current(r.Context()); user != nil {
		view := user.Response()
		resp.User = &view
	}

	return http.StatusOK, resp, nil
}
