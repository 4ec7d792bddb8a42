// Package catalog implements the song.Catalog boundary against the
// external catalog service's HTTP API.
package catalog

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"rehearsal-api/internal/domain/song"
)

// Client resolves songs over HTTP.
type Client struct {
	http *resty.Client
	log  zerolog.Logger
}

// NewClient creates a catalog client for the given base URL.
func NewClient(baseURL string, timeout time.Duration, log zerolog.Logger) *Client {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("User-Agent", "rehearsal-api/1.0")

	return &Client{
		http: client,
		log:  log.With().Str("component", "song-catalog").Logger(),
	}
}

// Resolve fetches a song's display metadata by id.
func (c *Client) Resolve(ctx context.Context, id string) (*song.Song, error) {
	var result song.Song
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&result).
		SetPathParam("id", id).
		Get("/v1/songs/{id}")
	if err != nil {
		return nil, fmt.Errorf("query song catalog: %w", err)
	}

	switch resp.StatusCode() {
	case http.StatusOK:
		if result.ID == "" {
			result.ID = id
		}
		return &result, nil
	case http.StatusNotFound:
		return nil, song.ErrNotFound
	default:
		return nil, fmt.Errorf("song catalog returned status %d", resp.StatusCode())
	}
}
