package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"

	"github.com/golang-jwt/jwt/v4"
	"github.com/zenazn/goji/web"

	"github.com/janelia-flyem/cardiowave/cardio"
)

var (
	// authorized users and their privileges: "read", "write" or "readwrite".
	// The user "*" applies to anyone not listed.
	authorizedUsers map[string]string
	authMu          sync.RWMutex
)

// authConfig holds the key used to sign JWTs and an optional user privilege file.
// Without a secret key, mutating requests are not authenticated.
type authConfig struct {
	AuthFile  string `toml:"auth_file"`
	SecretKey string `toml:"secret_key"`
}

// AuthRequired returns true if mutating requests need a JWT.
func AuthRequired() bool {
	return tc.Auth.SecretKey != ""
}

// GenerateJWT returns a JWT for the user signed with the configured secret key.
func GenerateJWT(user string) (string, error) {
	if tc.Auth.SecretKey == "" {
		return "", fmt.Errorf("no secret key configured for JWT signing")
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"user": user})
	tokenString, err := token.SignedString([]byte(tc.Auth.SecretKey))
	if err != nil {
		return "", fmt.Errorf("error with JWT signing: %v", err)
	}
	return tokenString, nil
}

// parseUser validates the bearer token of a request and returns its user.
func parseUser(r *http.Request) (string, error) {
	reqToken := r.Header.Get("Authorization")
	if len(reqToken) == 0 {
		return "", fmt.Errorf("JWT required via Authorization in request header")
	}
	splitToken := strings.Split(reqToken, "Bearer")
	if len(splitToken) != 2 {
		return "", fmt.Errorf("bearer not in proper format")
	}
	reqToken = strings.TrimSpace(splitToken[1])
	if len(reqToken) == 0 {
		return "", fmt.Errorf("requests require JWT authentication")
	}
	token, err := jwt.Parse(reqToken, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("error signing method: %v", token.Header["alg"])
		}
		return []byte(tc.Auth.SecretKey), nil
	})
	if err != nil {
		return "", fmt.Errorf("error parsing JWT: %v", err)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("failed authorization")
	}
	user, ok := claims["user"].(string)
	if !ok {
		return "", fmt.Errorf("user %v is not a simple string", claims["user"])
	}
	return user, nil
}

// authorized wraps a handler so that, when a secret key is configured, it only runs
// for requests with a valid JWT whose user holds the needed privilege.  The user is
// stored in c.Env["user"].
func authorized(h web.HandlerFunc) web.HandlerFunc {
	return func(c web.C, w http.ResponseWriter, r *http.Request) {
		if !AuthRequired() {
			h(c, w, r)
			return
		}
		user, err := parseUser(r)
		if err != nil {
			Unauthorized(w, r, "%v", err)
			return
		}
		if !globalIsAuthorized(user, r.Method) {
			Unauthorized(w, r, "user %q is not authorized", user)
			return
		}
		if c.Env == nil {
			c.Env = make(map[interface{}]interface{})
		}
		c.Env["user"] = user
		h(c, w, r)
	}
}

func loadAuthFile() error {
	authMu.Lock()
	defer authMu.Unlock()
	authorizedUsers = nil
	if len(tc.Auth.AuthFile) == 0 {
		if AuthRequired() {
			cardio.Infof("No authorization file given.  Any user with a valid JWT may modify the simulation.\n")
		}
		return nil
	}
	data, err := os.ReadFile(tc.Auth.AuthFile)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, &authorizedUsers); err != nil {
		return fmt.Errorf("bad authorization file %q: %v", tc.Auth.AuthFile, err)
	}
	return nil
}

// globalIsAuthorized returns true if the user has the privilege needed for the method.
// Without an authorization file every user is authorized.
func globalIsAuthorized(user string, httpMethod string) bool {
	authMu.RLock()
	defer authMu.RUnlock()
	if authorizedUsers == nil {
		return true
	}
	method := strings.ToLower(httpMethod)
	readReq := method == "get" || method == "head"
	priv, found := authorizedUsers[user]
	if !found {
		priv, found = authorizedUsers["*"]
		if !found {
			return false
		}
	}
	switch priv {
	case "readwrite":
		return true
	case "read":
		return readReq
	case "write":
		return !readReq
	default:
		cardio.Errorf("Authorized user %q has unparsable privilege %q\n", user, priv)
		return false
	}
}
