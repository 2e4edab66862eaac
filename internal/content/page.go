// Package content serves the static site pages from markdown files and proxies
// blog posts from an external content API.
package content

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/araddon/dateparse"
	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// ErrNotFound is returned when a page or post cannot be located.
var ErrNotFound = errors.New("content: not found")

const (
	defaultLang     = "en"
	defaultCacheTTL = 5 * time.Minute
)

// Page is a rendered static page.
type Page struct {
	Slug          string
	Lang          string
	Title         string
	Summary       string
	HTML          template.HTML
	EffectiveDate time.Time
	UpdatedAt     time.Time
	SEO           SEO
}

// SEO holds optional metadata overrides.
type SEO struct {
	Title       string
	Description string
}

type frontMatter struct {
	Title         string `yaml:"title"`
	Summary       string `yaml:"summary"`
	Lang          string `yaml:"lang"`
	EffectiveDate string `yaml:"effective_date"`
	UpdatedAt     string `yaml:"updated_at"`
	SEO           struct {
		Title       string `yaml:"title"`
		Description string `yaml:"description"`
	} `yaml:"seo"`
}

type cacheEntry struct {
	page    Page
	expires time.Time
}

// PagesDeps wires a Pages store.
type PagesDeps struct {
	Dir      string
	CacheTTL time.Duration
	Logger   *zap.Logger
	Now      func() time.Time
}

// Pages loads markdown pages from Dir, looking in Dir/<lang>, then Dir/en, then Dir.
// Rendered pages are cached until CacheTTL passes or Invalidate is called.
type Pages struct {
	dir    string
	ttl    time.Duration
	logger *zap.Logger
	now    func() time.Time
	md     goldmark.Markdown
	policy *bluemonday.Policy

	mu    sync.RWMutex
	cache map[string]cacheEntry
}

// NewPages builds a page store.
func NewPages(deps PagesDeps) *Pages {
	p := &Pages{
		dir:    strings.TrimSpace(deps.Dir),
		ttl:    deps.CacheTTL,
		logger: deps.Logger,
		now:    deps.Now,
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithParserOptions(parser.WithAutoHeadingID()),
		),
		policy: NewHTMLPolicy(),
		cache:  map[string]cacheEntry{},
	}
	if p.dir == "" {
		p.dir = "content"
	}
	if p.ttl < 0 {
		p.ttl = defaultCacheTTL
	}
	if p.logger == nil {
		p.logger = zap.NewNop()
	}
	if p.now == nil {
		p.now = time.Now
	}
	return p
}

// NewHTMLPolicy allows user-generated markup plus the elements our pages use.
func NewHTMLPolicy() *bluemonday.Policy {
	policy := bluemonday.UGCPolicy()
	policy.AllowElements("figure", "figcaption", "section")
	policy.AllowAttrs("id").OnElements("h1", "h2", "h3", "h4", "h5", "h6")
	policy.AllowAttrs("class").OnElements("figure", "figcaption", "p", "span", "section")
	policy.RequireNoFollowOnLinks(true)
	return policy
}

// Dir returns the content root.
func (p *Pages) Dir() string { return p.dir }

// Page returns the rendered page for slug in lang.
func (p *Pages) Page(ctx context.Context, slug, lang string) (Page, error) {
	slug = sanitizeSlug(slug)
	if slug == "" {
		return Page{}, ErrNotFound
	}
	lang = normalizeLang(lang)
	key := lang + "|" + slug

	if page, ok := p.cached(key); ok {
		return page, nil
	}
	if err := ctx.Err(); err != nil {
		return Page{}, err
	}

	page, err := p.load(slug, lang)
	if err != nil {
		return Page{}, err
	}
	if p.ttl > 0 {
		p.mu.Lock()
		p.cache[key] = cacheEntry{page: page, expires: p.now().Add(p.ttl)}
		p.mu.Unlock()
	}
	return page, nil
}

// Invalidate drops cached renders of slug in every language, or everything when slug is empty.
func (p *Pages) Invalidate(slug string) int {
	slug = sanitizeSlug(slug)
	p.mu.Lock()
	defer p.mu.Unlock()
	removed := 0
	for key := range p.cache {
		if slug == "" || strings.HasSuffix(key, "|"+slug) {
			delete(p.cache, key)
			removed++
		}
	}
	return removed
}

func (p *Pages) cached(key string) (Page, bool) {
	p.mu.RLock()
	entry, ok := p.cache[key]
	p.mu.RUnlock()
	if !ok || p.now().After(entry.expires) {
		return Page{}, false
	}
	return entry.page, true
}

func (p *Pages) load(slug, lang string) (Page, error) {
	type candidate struct{ file, lang string }
	candidates := []candidate{{filepath.Join(p.dir, lang, slug+".md"), lang}}
	if lang != defaultLang {
		candidates = append(candidates, candidate{filepath.Join(p.dir, defaultLang, slug+".md"), defaultLang})
	}
	candidates = append(candidates, candidate{filepath.Join(p.dir, slug+".md"), defaultLang})

	for _, c := range candidates {
		page, err := p.readFile(c.file, slug, c.lang)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		return page, err
	}
	return Page{}, ErrNotFound
}

func (p *Pages) readFile(file, slug, lang string) (Page, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return Page{}, err
	}
	fm, body := splitFrontMatter(string(data))
	front := frontMatter{}
	if strings.TrimSpace(fm) != "" {
		if err := yaml.Unmarshal([]byte(fm), &front); err != nil {
			return Page{}, fmt.Errorf("content: parse front matter %s: %w", file, err)
		}
	}

	var buf bytes.Buffer
	if err := p.md.Convert([]byte(body), &buf); err != nil {
		return Page{}, fmt.Errorf("content: render %s: %w", file, err)
	}

	page := Page{
		Slug:    slug,
		Lang:    firstNonEmpty(strings.TrimSpace(front.Lang), lang),
		Title:   strings.TrimSpace(front.Title),
		Summary: strings.TrimSpace(front.Summary),
		HTML:    template.HTML(p.policy.SanitizeBytes(buf.Bytes())),
		SEO: SEO{
			Title:       strings.TrimSpace(front.SEO.Title),
			Description: strings.TrimSpace(front.SEO.Description),
		},
	}
	page.EffectiveDate = p.parseDate(file, "effective_date", front.EffectiveDate)
	page.UpdatedAt = p.parseDate(file, "updated_at", front.UpdatedAt)
	if page.UpdatedAt.IsZero() {
		if info, err := os.Stat(file); err == nil {
			page.UpdatedAt = info.ModTime().UTC()
		}
	}
	if page.Title == "" {
		page.Title = prettifySlug(slug)
	}
	if page.SEO.Title == "" {
		page.SEO.Title = page.Title
	}
	if page.SEO.Description == "" {
		page.SEO.Description = page.Summary
	}
	return page, nil
}

// parseDate accepts any layout dateparse understands; bad dates are logged and dropped.
func (p *Pages) parseDate(file, field, raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}
	}
	t, err := dateparse.ParseIn(raw, time.UTC)
	if err != nil {
		p.logger.Warn("unparseable front matter date",
			zap.String("file", file), zap.String("field", field), zap.String("value", raw), zap.Error(err))
		return time.Time{}
	}
	return t.UTC()
}

func splitFrontMatter(input string) (string, string) {
	input = strings.TrimPrefix(input, "\ufeff")
	lines := strings.Split(strings.ReplaceAll(input, "\r\n", "\n"), "\n")
	if strings.TrimSpace(lines[0]) != "---" {
		return "", input
	}
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "---" {
			fm := strings.Join(lines[1:i], "\n")
			body := strings.Join(lines[i+1:], "\n")
			return fm, strings.TrimLeft(body, "\n")
		}
	}
	return "", input
}

func sanitizeSlug(slug string) string {
	slug = strings.TrimSpace(strings.ToLower(slug))
	slug = strings.Trim(slug, "/")
	if slug == "" || strings.Contains(slug, "..") || strings.ContainsAny(slug, `/\`) {
		return ""
	}
	return slug
}

func normalizeLang(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if i := strings.IndexAny(lang, "-_"); i > 0 {
		lang = lang[:i]
	}
	if lang == "" || sanitizeSlug(lang) == "" {
		return defaultLang
	}
	return lang
}

func prettifySlug(slug string) string {
	parts := strings.Split(slug, "-")
	for i, part := range parts {
		if part == "" {
			continue
		}
		parts[i] = strings.ToUpper(part[:1]) + part[1:]
	}
	return strings.Join(parts, " ")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
