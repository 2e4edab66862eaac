package content

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/araddon/dateparse"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"
)

// ErrUpstream wraps any failure talking to the blog API other than a 404.
var ErrUpstream = errors.New("content: blog upstream failure")

const (
	defaultBlogTimeout  = 5 * time.Second
	defaultBlogCacheTTL = time.Minute
	listCacheKey        = "\x00list"
)

// Post is a blog entry fetched from the content API.
type Post struct {
	Slug        string        `json:"slug"`
	Title       string        `json:"title"`
	Summary     string        `json:"summary,omitempty"`
	Author      string        `json:"author,omitempty"`
	Tags        []string      `json:"tags,omitempty"`
	PublishedAt time.Time     `json:"published_at,omitempty"`
	HTML        template.HTML `json:"html,omitempty"`
}

type rawPost struct {
	Slug        string   `json:"slug"`
	Title       string   `json:"title"`
	Summary     string   `json:"summary"`
	Excerpt     string   `json:"excerpt"`
	Author      string   `json:"author"`
	Tags        []string `json:"tags"`
	PublishedAt string   `json:"published_at"`
	Date        string   `json:"date"`
	Body        string   `json:"body"`
	Content     string   `json:"content"`
}

type rawList struct {
	Items []rawPost `json:"items"`
	Posts []rawPost `json:"posts"`
}

type blogEntry struct {
	posts   []Post
	expires time.Time
}

// BlogDeps wires a BlogClient.
type BlogDeps struct {
	BaseURL    string
	Timeout    time.Duration
	CacheTTL   time.Duration
	HTTPClient *http.Client
	Logger     *zap.Logger
	Now        func() time.Time
}

// BlogClient proxies read-only blog requests to the external content API.
type BlogClient struct {
	baseURL string
	http    *http.Client
	ttl     time.Duration
	logger  *zap.Logger
	now     func() time.Time
	policy  *bluemonday.Policy

	mu    sync.RWMutex
	cache map[string]blogEntry
}

// NewBlogClient returns nil when no base URL is configured.
func NewBlogClient(deps BlogDeps) *BlogClient {
	base := strings.TrimRight(strings.TrimSpace(deps.BaseURL), "/")
	if base == "" {
		return nil
	}
	c := &BlogClient{
		baseURL: base,
		http:    deps.HTTPClient,
		ttl:     deps.CacheTTL,
		logger:  deps.Logger,
		now:     deps.Now,
		policy:  NewHTMLPolicy(),
		cache:   map[string]blogEntry{},
	}
	if c.http == nil {
		timeout := deps.Timeout
		if timeout <= 0 {
			timeout = defaultBlogTimeout
		}
		c.http = &http.Client{Timeout: timeout}
	}
	if c.ttl < 0 {
		c.ttl = defaultBlogCacheTTL
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c
}

// List returns the posts published by the API, newest first as the API orders them.
func (c *BlogClient) List(ctx context.Context) ([]Post, error) {
	if posts, ok := c.cached(listCacheKey); ok {
		return posts, nil
	}
	var list rawList
	if err := c.get(ctx, &list, "posts"); err != nil {
		return nil, err
	}
	raws := list.Items
	if len(raws) == 0 {
		raws = list.Posts
	}
	posts := make([]Post, 0, len(raws))
	for _, raw := range raws {
		post, ok := c.mapPost(raw, false)
		if !ok {
			continue
		}
		posts = append(posts, post)
	}
	c.store(listCacheKey, posts)
	return posts, nil
}

// Post returns a single post with its sanitised body.
func (c *BlogClient) Post(ctx context.Context, slug string) (Post, error) {
	slug = sanitizeSlug(slug)
	if slug == "" {
		return Post{}, ErrNotFound
	}
	if posts, ok := c.cached(slug); ok {
		return posts[0], nil
	}
	var raw rawPost
	if err := c.get(ctx, &raw, "posts", slug); err != nil {
		return Post{}, err
	}
	if strings.TrimSpace(raw.Slug) == "" {
		raw.Slug = slug
	}
	post, ok := c.mapPost(raw, true)
	if !ok {
		return Post{}, fmt.Errorf("%w: post %q has no title", ErrUpstream, slug)
	}
	c.store(slug, []Post{post})
	return post, nil
}

func (c *BlogClient) get(ctx context.Context, out any, elems ...string) error {
	endpoint, err := url.JoinPath(c.baseURL, elems...)
	if err != nil {
		return fmt.Errorf("%w: join path: %v", ErrUpstream, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("%w: build request: %v", ErrUpstream, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("blog request failed", zap.String("url", endpoint), zap.Error(err))
		return fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode >= 400 {
		c.logger.Warn("blog upstream status", zap.String("url", endpoint), zap.Int("status", resp.StatusCode))
		return fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode: %v", ErrUpstream, err)
	}
	return nil
}

func (c *BlogClient) mapPost(raw rawPost, withBody bool) (Post, bool) {
	slug := sanitizeSlug(raw.Slug)
	title := strings.TrimSpace(raw.Title)
	if slug == "" || title == "" {
		return Post{}, false
	}
	post := Post{
		Slug:    slug,
		Title:   title,
		Summary: strings.TrimSpace(firstNonEmpty(raw.Summary, raw.Excerpt)),
		Author:  strings.TrimSpace(raw.Author),
		Tags:    raw.Tags,
	}
	if ts := strings.TrimSpace(firstNonEmpty(raw.PublishedAt, raw.Date)); ts != "" {
		if t, err := dateparse.ParseIn(ts, time.UTC); err == nil {
			post.PublishedAt = t.UTC()
		}
	}
	if withBody {
		post.HTML = template.HTML(c.policy.Sanitize(firstNonEmpty(raw.Body, raw.Content)))
	}
	return post, true
}

func (c *BlogClient) cached(key string) ([]Post, bool) {
	c.mu.RLock()
	entry, ok := c.cache[key]
	c.mu.RUnlock()
	if !ok || !c.now().Before(entry.expires) {
		return nil, false
	}
	return entry.posts, true
}

func (c *BlogClient) store(key string, posts []Post) {
	if c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	c.cache[key] = blogEntry{posts: posts, expires: c.now().Add(c.ttl)}
	c.mu.Unlock()
}
