package http

import (
	"crypto/subtle"
	"net/http"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	httpcmn "github.com/aukilabs/hagall-common/http"
	"golang.org/x/net/websocket"
)

const (
	ErrTypeUnauthorized = "unauthorized"
)

func verifyToken(expected string, r *http.Request) error {
	if expected == "" {
		return nil
	}

	if subtle.ConstantTimeCompare([]byte(httpcmn.GetUserTokenFromHTTPRequest(r)), []byte(expected)) != 1 {
		return errors.New("invalid auth token").
			WithType(ErrTypeUnauthorized).
			WithTag("client_id", r.Header.Get(httpcmn.HeaderPosemeshClientID)).
			WithTag("remote_addr", r.RemoteAddr)
	}
	return nil
}

// VerifyAuthToken returns a websocket handshake that rejects connections
// without the given token. An empty token accepts every connection.
func VerifyAuthToken(token string) func(*websocket.Config, *http.Request) error {
	return func(c *websocket.Config, r *http.Request) error {
		if err := verifyToken(token, r); err != nil {
			logs.Debug(err)
			return err
		}
		return nil
	}
}

// VerifyAuthTokenHandler answers 401 to the requests without the given token.
// An empty token accepts every request.
func VerifyAuthTokenHandler(token string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := verifyToken(token, r); err != nil {
			logs.Debug(err)
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}
