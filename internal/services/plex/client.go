package plex

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"plexrotate/internal/config"
	"plexrotate/internal/logging"
	"plexrotate/internal/services"
)

const (
	productName    = "plexrotate"
	productVersion = "1.0.0"
	userAgent      = "plexrotate/1.0.0"
	deviceName     = "Linux"
	platformName   = "xcid"
	platformVer    = "0.9"
	tokenParam     = "X-Plex-Token"
	maxBodyBytes   = 1 << 20
	excerptBytes   = 2048
)

var (
	// ErrTokenMissing is returned when plex.tv answers sign-in without a token.
	ErrTokenMissing = errors.New("plex sign-in response carried no authentication token")
	// ErrUnexpectedContent is returned when the server answers with something other than XML.
	ErrUnexpectedContent = errors.New("plex response is not xml")
	// ErrRefresh is returned when the server rejects a library refresh.
	ErrRefresh = errors.New("plex library refresh failed")
)

// HTTPDoer abstracts http.Client.Do for testing.
type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// Settings describes where the client signs in and which server it talks to.
type Settings struct {
	SignInURL        string
	ServerURL        string
	Login            string
	Password         string
	ClientIdentifier string
	Timeout          time.Duration
}

// ClientOption customises Client construction.
type ClientOption func(*Client)

// WithHTTPClient overrides the HTTP client used for Plex API calls.
func WithHTTPClient(client HTTPDoer) ClientOption {
	return func(c *Client) {
		c.http = client
	}
}

// WithLogger attaches a logger for request-level debug output.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logging.NewComponentLogger(logger, "plex")
	}
}

// Client performs sign-in, section listing, and refresh calls.
type Client struct {
	settings Settings
	http     HTTPDoer
	logger   *slog.Logger
}

// NewClient builds a Client. An empty ClientIdentifier is derived from the
// login and server so repeated runs present the same device to Plex.
func NewClient(settings Settings, opts ...ClientOption) *Client {
	settings.ServerURL = strings.TrimRight(strings.TrimSpace(settings.ServerURL), "/")
	settings.SignInURL = strings.TrimSpace(settings.SignInURL)
	if strings.TrimSpace(settings.ClientIdentifier) == "" {
		settings.ClientIdentifier = DeriveClientIdentifier(settings.Login, settings.ServerURL)
	}
	if settings.Timeout <= 0 {
		settings.Timeout = 30 * time.Second
	}

	client := &Client{settings: settings}
	for _, opt := range opts {
		opt(client)
	}
	if client.http == nil {
		client.http = &http.Client{Timeout: settings.Timeout}
	}
	if client.logger == nil {
		client.logger = logging.NewNop()
	}
	return client
}

// NewConfiguredClient builds a Client from application configuration.
func NewConfiguredClient(cfg *config.Config, opts ...ClientOption) *Client {
	return NewClient(Settings{
		SignInURL:        cfg.Plex.SignInURL,
		ServerURL:        cfg.ServerURL(),
		Login:            cfg.Plex.Login,
		Password:         cfg.Plex.Password,
		ClientIdentifier: cfg.Plex.ClientIdentifier,
		Timeout:          cfg.RequestTimeout(),
	}, opts...)
}

// ClientIdentifier returns the X-Plex-Client-Identifier sent with every request.
func (c *Client) ClientIdentifier() string {
	return c.settings.ClientIdentifier
}

// DeriveClientIdentifier returns a stable name-based UUID for login and server.
func DeriveClientIdentifier(login, serverURL string) string {
	id := uuid.NewSHA1(uuid.NameSpaceURL, []byte(productName+":"+strings.ToLower(login)+"@"+serverURL))
	return strings.ReplaceAll(id.String(), "-", "")
}

func (c *Client) applyStandardHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/xml")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("X-Plex-Client-Identifier", c.settings.ClientIdentifier)
	req.Header.Set("X-Plex-Product", productName)
	req.Header.Set("X-Plex-Version", productVersion)
	req.Header.Set("X-Plex-Device-Name", productName)
	req.Header.Set("X-Plex-Device", deviceName)
	req.Header.Set("X-Plex-Platform", platformName)
	req.Header.Set("X-Plex-Platform-Version", platformVer)
	req.Header.Set("X-Plex-Provides", "controller")
}

// serverRequest builds a GET against the media server with the token attached.
func (c *Client) serverRequest(ctx context.Context, path, token string) (*http.Request, error) {
	if c.settings.ServerURL == "" {
		return nil, services.Wrap(services.ErrConfiguration, "plex", "", "server url not configured", nil)
	}
	target, err := url.Parse(c.settings.ServerURL + path)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "plex", "", "invalid server url", err)
	}
	query := target.Query()
	query.Set(tokenParam, token)
	target.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build plex request: %w", err)
	}
	c.applyStandardHeaders(req)
	return req, nil
}

func (c *Client) do(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, redactError(err)
	}
	c.logger.Debug("plex request",
		logging.String("method", req.Method),
		logging.String("path", req.URL.Path),
		logging.Int("status", resp.StatusCode),
		logging.Duration("elapsed", time.Since(start)),
	)
	return resp, nil
}

func readExcerpt(body io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(body, excerptBytes))
	return strings.TrimSpace(string(data))
}

func drain(body io.Reader) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, maxBodyBytes))
}

// redactError strips the token from URLs embedded in transport errors.
func redactError(err error) error {
	var urlErr *url.Error
	if !errors.As(err, &urlErr) {
		return err
	}
	clone := *urlErr
	clone.URL = redactURL(clone.URL)
	return &clone
}

func redactURL(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	query := parsed.Query()
	if query.Has(tokenParam) {
		query.Set(tokenParam, "REDACTED")
		parsed.RawQuery = query.Encode()
	}
	return parsed.String()
}
