package http

import (
	"crypto/subtle"
	"net/http"

	"golang.org/x/crypto/bcrypt"
)

// requireAdmin checks HTTP basic credentials against the configured bcrypt hash.
func (h *Handler) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.admin.PasswordHash == "" {
			next.ServeHTTP(w, r)
			return
		}
		user, pass, ok := r.BasicAuth()
		if !ok || !h.checkAdmin(user, pass) {
			w.Header().Set("WWW-Authenticate", `Basic realm="quiz admin"`)
			writeJSON(w, http.StatusUnauthorized, errorPayload{Code: "unauthorized", Message: "admin credentials required"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) checkAdmin(user, pass string) bool {
	userOK := subtle.ConstantTimeCompare([]byte(user), []byte(h.admin.Username)) == 1
	passOK := bcrypt.CompareHashAndPassword([]byte(h.admin.PasswordHash), []byte(pass)) == nil
	return userOK && passOK
}

// HashPassword returns a bcrypt hash suitable for the admin.password_hash setting.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
