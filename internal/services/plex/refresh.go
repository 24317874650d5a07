package plex

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"plexrotate/internal/services"
)

// Refresh asks the media server to rescan one library section. Any non-2xx
// answer is fatal for the caller.
func (c *Client) Refresh(ctx context.Context, token string, sectionID int) error {
	if sectionID <= 0 {
		return services.Wrap(services.ErrConfiguration, "plex", "refresh", "library section id must be positive", nil)
	}

	path := "/library/sections/" + strconv.Itoa(sectionID) + "/refresh"
	req, err := c.serverRequest(ctx, path, token)
	if err != nil {
		return err
	}

	resp, err := c.do(req)
	if err != nil {
		return services.Wrap(services.ErrExternal, "plex", "refresh", "request failed", fmt.Errorf("%w: %w", ErrRefresh, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		drain(resp.Body)
		return services.Wrap(services.ErrAuthentication, "plex", "refresh", "server rejected the token", ErrRefresh)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		message := fmt.Sprintf("section %d returned %d: %s", sectionID, resp.StatusCode, readExcerpt(resp.Body))
		return services.Wrap(services.ErrExternal, "plex", "refresh", message, ErrRefresh)
	}
	drain(resp.Body)
	return nil
}
