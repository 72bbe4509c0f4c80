package util

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
)

// RobotsCache stores robots.txt bodies per origin.
type RobotsCache interface {
	GetRobotsTXT(ctx context.Context, origin string) (string, bool, error)
	SetRobotsTXT(ctx context.Context, origin, content string) error
}

// RobotsGate answers whether a user agent may fetch a URL.
type RobotsGate struct {
	agent  string
	client *http.Client
	cache  RobotsCache

	mu     sync.Mutex
	parsed map[string]*robotstxt.RobotsData
}

// NewRobotsGate creates a gate. cache may be nil, parsed files are always
// kept in memory for the lifetime of the gate.
func NewRobotsGate(agent string, cache RobotsCache, timeout time.Duration) *RobotsGate {
	return &RobotsGate{
		agent:  agent,
		client: &http.Client{Timeout: timeout},
		cache:  cache,
		parsed: make(map[string]*robotstxt.RobotsData),
	}
}

func (g *RobotsGate) Allowed(ctx context.Context, rawURL string) (bool, error) {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		// assume not allowed if we cant parse url
		return false, nil
	}
	origin := Origin(parsedURL)

	robots, err := g.robotsFor(ctx, origin)
	if err != nil {
		return false, err
	}
	path := parsedURL.EscapedPath()
	if parsedURL.RawQuery != "" {
		path += "?" + parsedURL.RawQuery
	}
	return robots.TestAgent(path, g.agent), nil
}

func (g *RobotsGate) robotsFor(ctx context.Context, origin string) (*robotstxt.RobotsData, error) {
	g.mu.Lock()
	robots, ok := g.parsed[origin]
	g.mu.Unlock()
	if ok {
		return robots, nil
	}

	content, cached := "", false
	if g.cache != nil {
		c, hit, err := g.cache.GetRobotsTXT(ctx, origin)
		if err != nil {
			return nil, fmt.Errorf("robots cache: %w", err)
		}
		content, cached = c, hit
	}

	if !cached {
		status, body, err := FetchRobotsTXT(ctx, g.client, origin)
		if err != nil {
			return nil, err
		}
		if status >= 500 {
			return nil, fmt.Errorf("robots.txt for %s: status %d", origin, status)
		}
		if status >= 400 {
			// missing robots.txt allows everything
			body = ""
		}
		content = body
		if g.cache != nil {
			if err := g.cache.SetRobotsTXT(ctx, origin, content); err != nil {
				return nil, fmt.Errorf("robots cache: %w", err)
			}
		}
	}

	robots, err := robotstxt.FromString(content)
	if err != nil {
		// if we cant parse robots.txt, assume its allowed
		robots, _ = robotstxt.FromString("")
	}

	g.mu.Lock()
	g.parsed[origin] = robots
	g.mu.Unlock()
	return robots, nil
}

// FetchRobotsTXT fetches origin/robots.txt and returns its status and body.
func FetchRobotsTXT(ctx context.Context, client *http.Client, origin string) (int, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, origin+"/robots.txt", http.NoBody)
	if err != nil {
		return 0, "", err
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 512*1024))
	if err != nil {
		return resp.StatusCode, "", err
	}
	return resp.StatusCode, string(body), nil
}
