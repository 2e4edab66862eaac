package content

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

const aboutPage = `---
title: About Toolskit
summary: Small calculators that do one thing.
effective_date: "March 2, 2024"
seo:
  description: About the toolkit
---
# Who we are

We build **calculators**. <script>alert(1)</script>

[Docs](https://example.com)
`

func TestPagesRenderAndFallback(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "en", "about.md"), aboutPage)
	writeFile(t, filepath.Join(dir, "de", "about.md"), "---\ntitle: Über uns\n---\nHallo\n")
	writeFile(t, filepath.Join(dir, "privacy-policy.md"), "Plain body without front matter.\n")

	pages := NewPages(PagesDeps{Dir: dir, CacheTTL: time.Minute})
	ctx := context.Background()

	page, err := pages.Page(ctx, "about", "fr-FR")
	require.NoError(t, err)
	require.Equal(t, "About Toolskit", page.Title)
	require.Equal(t, "en", page.Lang)
	require.Equal(t, time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC), page.EffectiveDate)
	require.Equal(t, "About Toolskit", page.SEO.Title)
	require.Equal(t, "About the toolkit", page.SEO.Description)
	html := string(page.HTML)
	require.Contains(t, html, `<h1 id="who-we-are">Who we are</h1>`)
	require.Contains(t, html, "<strong>calculators</strong>")
	require.NotContains(t, html, "<script")
	require.Contains(t, html, `rel="nofollow"`)

	page, err = pages.Page(ctx, "about", "de-DE")
	require.NoError(t, err)
	require.Equal(t, "Über uns", page.Title)
	require.Equal(t, "de", page.Lang)

	page, err = pages.Page(ctx, "privacy-policy", "")
	require.NoError(t, err)
	require.Equal(t, "Privacy Policy", page.Title)
	require.False(t, page.UpdatedAt.IsZero())
}

func TestPagesRejectsBadSlugs(t *testing.T) {
	t.Parallel()

	pages := NewPages(PagesDeps{Dir: t.TempDir()})
	for _, slug := range []string{"", "../etc/passwd", "a/b", "missing"} {
		_, err := pages.Page(context.Background(), slug, "en")
		require.ErrorIs(t, err, ErrNotFound, slug)
	}
}

func TestPagesCacheAndInvalidate(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	file := filepath.Join(dir, "en", "terms.md")
	writeFile(t, file, "---\ntitle: Terms v1\n---\nbody\n")

	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	pages := NewPages(PagesDeps{Dir: dir, CacheTTL: time.Minute, Now: func() time.Time { return now }})
	ctx := context.Background()

	page, err := pages.Page(ctx, "terms", "en")
	require.NoError(t, err)
	require.Equal(t, "Terms v1", page.Title)

	writeFile(t, file, "---\ntitle: Terms v2\n---\nbody\n")
	page, err = pages.Page(ctx, "terms", "en")
	require.NoError(t, err)
	require.Equal(t, "Terms v1", page.Title, "served from cache")

	require.Equal(t, 1, pages.Invalidate("terms"))
	page, err = pages.Page(ctx, "terms", "en")
	require.NoError(t, err)
	require.Equal(t, "Terms v2", page.Title)

	writeFile(t, file, "---\ntitle: Terms v3\n---\nbody\n")
	now = now.Add(2 * time.Minute)
	page, err = pages.Page(ctx, "terms", "en")
	require.NoError(t, err)
	require.Equal(t, "Terms v3", page.Title, "expired entry reloads")
}

func TestPagesBadFrontMatter(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "broken.md"), "---\ntitle: [unclosed\n---\nbody\n")
	writeFile(t, filepath.Join(dir, "dated.md"), "---\ntitle: Dated\nupdated_at: not a date\n---\nbody\n")

	pages := NewPages(PagesDeps{Dir: dir})
	_, err := pages.Page(context.Background(), "broken", "en")
	require.Error(t, err)
	require.False(t, errors.Is(err, ErrNotFound))

	page, err := pages.Page(context.Background(), "dated", "en")
	require.NoError(t, err)
	require.False(t, page.UpdatedAt.IsZero(), "falls back to file mod time")
}

func TestSplitFrontMatter(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		input  string
		wantFM string
		wantMD string
	}{
		{name: "none", input: "# Title", wantFM: "", wantMD: "# Title"},
		{name: "crlf", input: "---\r\ntitle: x\r\n---\r\n\r\nbody", wantFM: "title: x", wantMD: "body"},
		{name: "unterminated", input: "---\ntitle: x\nbody", wantFM: "", wantMD: "---\ntitle: x\nbody"},
		{name: "bom", input: "\ufeff---\na: 1\n---\nz", wantFM: "a: 1", wantMD: "z"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			fm, md := splitFrontMatter(tt.input)
			if fm != tt.wantFM || md != tt.wantMD {
				t.Fatalf("splitFrontMatter() = (%q, %q), want (%q, %q)", fm, md, tt.wantFM, tt.wantMD)
			}
		})
	}
}

func TestPagesWatchInvalidates(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	file := filepath.Join(dir, "about.md")
	writeFile(t, file, "---\ntitle: First\n---\n")

	pages := NewPages(PagesDeps{Dir: dir, CacheTTL: time.Hour})
	_, err := pages.Page(context.Background(), "about", "en")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- pages.Watch(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	// Give the watcher time to register before writing.
	time.Sleep(200 * time.Millisecond)
	writeFile(t, file, "---\ntitle: Second\n---\n")

	require.Eventually(t, func() bool {
		page, err := pages.Page(context.Background(), "about", "en")
		return err == nil && page.Title == "Second"
	}, 5*time.Second, 50*time.Millisecond)
}

func newBlogServer(t *testing.T, hits *int32) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/posts", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"items":[
			{"slug":"hello-world","title":"Hello","excerpt":"First post","published_at":"2024-05-01T10:00:00Z"},
			{"slug":"","title":"dropped"},
			{"slug":"second","title":"Second","date":"05/02/2024"}
		]}`))
	})
	mux.HandleFunc("/api/posts/hello-world", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		_, _ = w.Write([]byte(`{"slug":"hello-world","title":"Hello","body":"<p>Hi</p><script>x()</script>"}`))
	})
	mux.HandleFunc("/api/posts/broken", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestBlogClientListAndCache(t *testing.T) {
	t.Parallel()

	var hits int32
	srv := newBlogServer(t, &hits)
	client := NewBlogClient(BlogDeps{BaseURL: srv.URL + "/api/", CacheTTL: time.Minute})
	require.NotNil(t, client)

	posts, err := client.List(context.Background())
	require.NoError(t, err)
	require.Len(t, posts, 2)
	require.Equal(t, "hello-world", posts[0].Slug)
	require.Equal(t, "First post", posts[0].Summary)
	require.Equal(t, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC), posts[0].PublishedAt)
	require.Equal(t, time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC), posts[1].PublishedAt)

	_, err = client.List(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 1, atomic.LoadInt32(&hits))

	post, err := client.Post(context.Background(), "hello-world")
	require.NoError(t, err)
	require.Equal(t, "<p>Hi</p>", string(post.HTML))
}

func TestBlogClientErrors(t *testing.T) {
	t.Parallel()

	var hits int32
	srv := newBlogServer(t, &hits)
	client := NewBlogClient(BlogDeps{BaseURL: srv.URL + "/api"})

	_, err := client.Post(context.Background(), "nope")
	require.ErrorIs(t, err, ErrNotFound)

	_, err = client.Post(context.Background(), "broken")
	require.ErrorIs(t, err, ErrUpstream)

	_, err = client.Post(context.Background(), "../admin")
	require.ErrorIs(t, err, ErrNotFound)

	srv.Close()
	_, err = client.List(context.Background())
	require.ErrorIs(t, err, ErrUpstream)

	require.Nil(t, NewBlogClient(BlogDeps{BaseURL: "  "}))
}

func TestPrettifySlug(t *testing.T) {
	t.Parallel()
	if got := prettifySlug("terms-of-use"); got != "Terms Of Use" {
		t.Fatalf("prettifySlug = %q", got)
	}
	if !strings.EqualFold(normalizeLang("EN_us"), "en") {
		t.Fatalf("normalizeLang did not strip region")
	}
}
