package opensearch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/poiesic/reviewpipe/index"
	"github.com/poiesic/reviewpipe/storage"
)

// Default secret names holding the cluster credentials.
const (
	DefaultUsernameSecret = "os-username"
	DefaultPasswordSecret = "os-password"
)

// DefaultPort is used when an endpoint names only a host.
const DefaultPort = 443

// ErrEndpointRequired is returned when no cluster endpoint is given.
var ErrEndpointRequired = errors.New("search endpoint required")

// Connector opens Clients for endpoints, resolving credentials by secret name.
type Connector struct {
	credentials    storage.CredentialProvider
	usernameSecret string
	passwordSecret string
	port           int
	transport      http.RoundTripper
	logger         *slog.Logger
}

var _ index.Connector = (*Connector)(nil)

// ConnectorOption configures a Connector.
type ConnectorOption func(*Connector)

// WithSecretNames sets the secret names for the username and password.
func WithSecretNames(username, password string) ConnectorOption {
	return func(c *Connector) {
		if username != "" {
			c.usernameSecret = username
		}
		if password != "" {
			c.passwordSecret = password
		}
	}
}

// WithPort sets the port appended to bare host endpoints.
func WithPort(port int) ConnectorOption {
	return func(c *Connector) {
		if port > 0 {
			c.port = port
		}
	}
}

// WithTransport sets the HTTP transport for created clients.
func WithTransport(rt http.RoundTripper) ConnectorOption {
	return func(c *Connector) {
		c.transport = rt
	}
}

// NewConnector creates a Connector. A nil credentials provider connects
// without authentication.
func NewConnector(credentials storage.CredentialProvider, opts ...ConnectorOption) *Connector {
	c := &Connector{
		credentials:    credentials,
		usernameSecret: DefaultUsernameSecret,
		passwordSecret: DefaultPasswordSecret,
		port:           DefaultPort,
		logger:         slog.Default().With("component", "opensearch-connector"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect resolves credentials and returns a client for endpoint.
func (c *Connector) Connect(ctx context.Context, endpoint string) (index.SearchEngine, error) {
	address, err := Address(endpoint, c.port)
	if err != nil {
		return nil, err
	}

	cfg := Config{Addresses: []string{address}, Transport: c.transport}
	if c.credentials != nil {
		if cfg.Username, err = c.credentials.GetSecret(ctx, c.usernameSecret); err != nil {
			return nil, fmt.Errorf("resolve search username: %w", err)
		}
		if cfg.Password, err = c.credentials.GetSecret(ctx, c.passwordSecret); err != nil {
			return nil, fmt.Errorf("resolve search password: %w", err)
		}
	}

	c.logger.Debug("connecting to search cluster", "address", address, "authenticated", cfg.Username != "")
	return NewClient(cfg)
}

// Address turns an endpoint into a cluster URL. Endpoints with a scheme are
// used as given; bare hosts get https and port unless they carry a port.
func Address(endpoint string, port int) (string, error) {
	endpoint = strings.TrimRight(strings.TrimSpace(endpoint), "/")
	if endpoint == "" {
		return "", ErrEndpointRequired
	}
	if strings.Contains(endpoint, "://") {
		return endpoint, nil
	}
	if _, _, err := net.SplitHostPort(endpoint); err == nil {
		return "https://" + endpoint, nil
	}
	if port <= 0 {
		port = DefaultPort
	}
	return "https://" + net.JoinHostPort(endpoint, strconv.Itoa(port)), nil
}
