package server

import (
	"encoding/hex"
	"net/http"
	"sync"

	"github.com/ssd-technologies/mixfile/internal/crypto"
)

// authenticator guards every route with the access password when one is
// configured. The password arrives as the Basic auth password or the
// accessKey query parameter.
type authenticator struct {
	hash    []byte
	secret  []byte
	limiter *rateLimiter

	mu       sync.RWMutex
	accepted map[string]bool
}

func newAuthenticator(password string, limiter *rateLimiter) *authenticator {
	a := &authenticator{limiter: limiter}
	if password != "" {
		a.hash = crypto.HashPassword(password)
		a.secret = crypto.RandomBytes(32)
		a.accepted = make(map[string]bool)
	}
	return a
}

func (a *authenticator) enabled() bool { return a.hash != nil }

func credential(r *http.Request) string {
	if key := r.URL.Query().Get("accessKey"); key != "" {
		return key
	}
	if _, pass, ok := r.BasicAuth(); ok {
		return pass
	}
	return ""
}

// verify checks a credential. Credentials that passed once are remembered by
// fingerprint so argon2 runs only for new ones, and those runs are rate
// limited per client.
func (a *authenticator) verify(r *http.Request) (ok, limited bool) {
	cred := credential(r)
	if cred == "" {
		return false, false
	}
	fp := hex.EncodeToString(crypto.Fingerprint(a.secret, cred))

	a.mu.RLock()
	known := a.accepted[fp]
	a.mu.RUnlock()
	if known {
		return true, false
	}

	if !a.limiter.allow(getIP(r)) {
		return false, true
	}
	if !crypto.VerifyPassword(cred, a.hash) {
		return false, false
	}
	a.mu.Lock()
	a.accepted[fp] = true
	a.mu.Unlock()
	return true, false
}

func (a *authenticator) middleware(next http.Handler) http.Handler {
	if !a.enabled() {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ok, limited := a.verify(r)
		switch {
		case limited:
			http.Error(w, "too many attempts", http.StatusTooManyRequests)
		case !ok:
			w.Header().Set("WWW-Authenticate", `Basic realm="mixfile"`)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
		default:
			next.ServeHTTP(w, r)
		}
	})
}
