package plex

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"

	"plexrotate/internal/services"
)

// Section is one library section as reported by /library/sections.
type Section struct {
	Key       string
	Title     string
	Type      string
	Locations []string
}

type sectionsContainer struct {
	Directories []struct {
		Key       string `xml:"key,attr"`
		Title     string `xml:"title,attr"`
		Type      string `xml:"type,attr"`
		Locations []struct {
			Path string `xml:"path,attr"`
		} `xml:"Location"`
	} `xml:"Directory"`
}

// Sections lists the library sections on the media server. The response must
// be XML; anything else yields ErrUnexpectedContent so callers can degrade to a
// warning.
func (c *Client) Sections(ctx context.Context, token string) ([]Section, error) {
	req, err := c.serverRequest(ctx, "/library/sections", token)
	if err != nil {
		return nil, err
	}

	resp, err := c.do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrExternal, "plex", "list sections", "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		drain(resp.Body)
		return nil, services.Wrap(services.ErrAuthentication, "plex", "list sections", "server rejected the token", nil)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		message := fmt.Sprintf("server returned %d: %s", resp.StatusCode, readExcerpt(resp.Body))
		return nil, services.Wrap(services.ErrExternal, "plex", "list sections", message, nil)
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.Contains(strings.ToLower(contentType), "xml") {
		drain(resp.Body)
		message := fmt.Sprintf("content type %q", contentType)
		return nil, services.Wrap(services.ErrExternal, "plex", "list sections", message, ErrUnexpectedContent)
	}

	var container sectionsContainer
	if err := xml.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&container); err != nil {
		return nil, services.Wrap(services.ErrExternal, "plex", "list sections", "decode response", err)
	}

	sections := make([]Section, 0, len(container.Directories))
	for _, dir := range container.Directories {
		section := Section{
			Key:   strings.TrimSpace(dir.Key),
			Title: strings.TrimSpace(dir.Title),
			Type:  strings.TrimSpace(dir.Type),
		}
		for _, loc := range dir.Locations {
			if path := strings.TrimSpace(loc.Path); path != "" {
				section.Locations = append(section.Locations, path)
			}
		}
		sections = append(sections, section)
	}
	return sections, nil
}
