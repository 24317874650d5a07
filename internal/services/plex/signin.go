package plex

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"

	"plexrotate/internal/logging"
	"plexrotate/internal/services"
)

// Session is the result of a successful sign-in. Token is valid for the rest
// of the run and is never persisted.
type Session struct {
	Token    string
	Username string
	Email    string
}

type signInResponse struct {
	Username       string `xml:"username,attr"`
	Email          string `xml:"email,attr"`
	TokenAttribute string `xml:"authenticationToken,attr"`
	TokenElement   string `xml:"authentication-token"`
}

func (r signInResponse) token() string {
	if token := strings.TrimSpace(r.TokenElement); token != "" {
		return token
	}
	return strings.TrimSpace(r.TokenAttribute)
}

// SignIn exchanges the configured login and password for a session token.
// A rejected login is reported as services.ErrAuthentication; an accepted
// request whose body has no token is reported as ErrTokenMissing with a short
// excerpt of the body.
func (c *Client) SignIn(ctx context.Context) (Session, error) {
	if c.settings.Login == "" || c.settings.Password == "" {
		return Session{}, services.Wrap(services.ErrConfiguration, "plex", "sign in", "login and password are required", nil)
	}
	if c.settings.SignInURL == "" {
		return Session{}, services.Wrap(services.ErrConfiguration, "plex", "sign in", "sign-in url not configured", nil)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.settings.SignInURL, nil)
	if err != nil {
		return Session{}, fmt.Errorf("build plex sign-in request: %w", err)
	}
	req.SetBasicAuth(c.settings.Login, c.settings.Password)
	c.applyStandardHeaders(req)

	resp, err := c.do(req)
	if err != nil {
		return Session{}, services.Wrap(services.ErrExternal, "plex", "sign in", "request failed", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		message := fmt.Sprintf("plex.tv rejected the credentials (%d): %s", resp.StatusCode, readExcerpt(resp.Body))
		return Session{}, services.Wrap(services.ErrAuthentication, "plex", "sign in", message, nil)
	case resp.StatusCode >= http.StatusMultipleChoices:
		message := fmt.Sprintf("plex.tv returned %d: %s", resp.StatusCode, readExcerpt(resp.Body))
		return Session{}, services.Wrap(services.ErrExternal, "plex", "sign in", message, nil)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return Session{}, services.Wrap(services.ErrExternal, "plex", "sign in", "read response", err)
	}

	session, err := parseSignIn(body)
	if err != nil {
		return Session{}, err
	}
	c.logger.Debug("plex sign-in succeeded", logging.String("username", session.Username))
	return session, nil
}

func parseSignIn(body []byte) (Session, error) {
	var parsed signInResponse
	decodeErr := xml.NewDecoder(bytes.NewReader(body)).Decode(&parsed)
	token := parsed.token()
	if decodeErr != nil || token == "" {
		excerpt := strings.TrimSpace(string(body))
		if len(excerpt) > excerptBytes {
			excerpt = excerpt[:excerptBytes]
		}
		message := fmt.Sprintf("response: %s", excerpt)
		if decodeErr != nil {
			return Session{}, services.Wrap(services.ErrAuthentication, "plex", "sign in", message, fmt.Errorf("%w: %w", ErrTokenMissing, decodeErr))
		}
		return Session{}, services.Wrap(services.ErrAuthentication, "plex", "sign in", message, ErrTokenMissing)
	}
	return Session{
		Token:    token,
		Username: strings.TrimSpace(parsed.Username),
		Email:    strings.TrimSpace(parsed.Email),
	}, nil
}
