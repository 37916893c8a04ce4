package http

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/keymint/keymint-server/internal/api/http/handler"
	"github.com/keymint/keymint-server/internal/api/http/middleware"
)

// Router wires handlers and middleware into the HTTP surface.
type Router struct {
	auth         *handler.Auth
	admin        *handler.Admin
	jwks         *handler.JWKSHandler
	authenticate *middleware.Authenticate
	logging      *middleware.Logging
}

// New creates a Router over the handler set.
func New(
	auth *handler.Auth,
	admin *handler.Admin,
	jwks *handler.JWKSHandler,
	authenticate *middleware.Authenticate,
	logging *middleware.Logging,
) *Router {
	return &Router{
		auth:         auth,
		admin:        admin,
		jwks:         jwks,
		authenticate: authenticate,
		logging:      logging,
	}
}

// Register builds the route tree. Login, refresh and the key set are public;
// everything else sits behind bearer authentication.
func (r *Router) Register() http.Handler {
	root := mux.NewRouter()
	root.Use(r.logging.Handle)

	root.HandleFunc("/.well-known/jwks.json", r.jwks.Serve).Methods(http.MethodGet)
	root.HandleFunc("/auth/token", r.auth.Login).Methods(http.MethodPost)
	root.HandleFunc("/auth/refresh", r.auth.Refresh).Methods(http.MethodPost)
	root.HandleFunc("/auth/logout", r.auth.Logout).Methods(http.MethodPost)

	authed := root.PathPrefix("/").Subrouter()
	authed.Use(r.authenticate.Handle)
	authed.HandleFunc("/auth/logout/all", r.auth.LogoutAll).Methods(http.MethodPost)
	authed.HandleFunc("/admin/keys", r.admin.GenerateKey).Methods(http.MethodPost)
	authed.HandleFunc("/admin/keys/rotate", r.admin.RotateKeys).Methods(http.MethodPost)
	authed.HandleFunc("/admin/keys/{kid}/retire", r.admin.RetireKey).Methods(http.MethodPost)
	authed.HandleFunc("/admin/tokens/revoke", r.admin.RevokeAccessToken).Methods(http.MethodPost)
	authed.HandleFunc("/admin/tokens/revoked/count", r.admin.DenylistCount).Methods(http.MethodGet)

	return root
}
