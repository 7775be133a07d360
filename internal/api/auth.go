package api

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/urielssan/subite/internal/config"

	"github.com/gin-gonic/gin"
)

const (
	apiKeyHeaderDefault   = "x-api-key"
	apiExtraHeaderDefault = "x-api-extra"

	PermAdminRead  = "admin:read"
	PermAdminWrite = "admin:write"

	clientNameKey = "api_client"
)

var (
	errMissingHeaders   = errors.New("missing api key headers")
	errInvalidAPIKey    = errors.New("invalid api key")
	errInvalidExtra     = errors.New("invalid extra header")
	errPermissionDenied = errors.New("permission denied")
)

// AdminAuth checks the API key pair and per-key permissions on admin routes.
type AdminAuth struct {
	cfg         config.APIAuthConfig
	clients     map[string]config.APIClientKey
	keyHeader   string
	extraHeader string
}

func NewAdminAuth(cfg config.APIAuthConfig) *AdminAuth {
	m := make(map[string]config.APIClientKey, len(cfg.APIKeys))
	for _, k := range cfg.APIKeys {
		if strings.TrimSpace(k.Key) == "" {
			continue
		}
		m[k.Key] = k
	}

	keyHeader := strings.ToLower(strings.TrimSpace(cfg.HeaderAPIKey))
	if keyHeader == "" {
		keyHeader = apiKeyHeaderDefault
	}
	extraHeader := strings.ToLower(strings.TrimSpace(cfg.HeaderExtra))
	if extraHeader == "" {
		extraHeader = apiExtraHeaderDefault
	}

	return &AdminAuth{cfg: cfg, clients: m, keyHeader: keyHeader, extraHeader: extraHeader}
}

// Require authenticates the caller and checks it holds permission.
func (a *AdminAuth) Require(permission string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !a.cfg.Enabled {
			c.Set(clientNameKey, "anonymous")
			c.Next()
			return
		}

		client, err := a.authenticate(c.Request)
		if err != nil {
			respondError(c, http.StatusUnauthorized, "unauthorized", err.Error(), nil)
			return
		}
		if !hasPermission(client, permission) {
			respondError(c, http.StatusForbidden, "forbidden", errPermissionDenied.Error(), nil)
			return
		}

		name := client.Name
		if name == "" {
			name = "api-key"
		}
		c.Set(clientNameKey, name)
		c.Next()
	}
}

func (a *AdminAuth) authenticate(r *http.Request) (config.APIClientKey, error) {
	apiKey := strings.TrimSpace(r.Header.Get(a.keyHeader))
	extra := strings.TrimSpace(r.Header.Get(a.extraHeader))
	if apiKey == "" || extra == "" {
		return config.APIClientKey{}, errMissingHeaders
	}

	client, ok := a.clients[apiKey]
	if !ok {
		return config.APIClientKey{}, errInvalidAPIKey
	}
	if subtle.ConstantTimeCompare([]byte(client.Extra), []byte(extra)) != 1 {
		return config.APIClientKey{}, errInvalidExtra
	}
	return client, nil
}

// hasPermission treats an empty permission list as allow-all. admin:write
// implies admin:read.
func hasPermission(client config.APIClientKey, required string) bool {
	if len(client.Permissions) == 0 {
		return true
	}
	for _, p := range client.Permissions {
		p = strings.TrimSpace(p)
		if p == required || (required == PermAdminRead && p == PermAdminWrite) {
			return true
		}
	}
	return false
}

// changedBy names the authenticated admin client for audit logs and events.
func changedBy(c *gin.Context) string {
	if name := c.GetString(clientNameKey); name != "" {
		return name
	}
	return "unknown"
}
