package handlers

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"golang.org/x/text/language"

	"finitefield.org/toolskit/internal/calc"
	"finitefield.org/toolskit/internal/content"
	"finitefield.org/toolskit/internal/platform/httpx"
	"finitefield.org/toolskit/internal/platform/observability"
	"finitefield.org/toolskit/internal/platform/requestctx"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// StaticPages lists the content slugs served at the site root.
var StaticPages = []string{"about", "privacy", "terms", "disclaimer"}

type navItem struct {
	Href   string
	Label  string
	Active bool
}

type pageView struct {
	Lang        string
	Title       string
	Description string
	Nav         []navItem
	Data        any
}

// PageDeps wires PageHandlers.
type PageDeps struct {
	Pages         *content.Pages
	Blog          *content.BlogClient
	Registry      *calc.Registry
	DefaultLocale language.Tag
}

// PageHandlers renders the home page, static content pages and the blog.
type PageHandlers struct {
	pages    *content.Pages
	blog     *content.BlogClient
	registry *calc.Registry
	locale   language.Tag
	views    map[string]*template.Template
}

// NewPageHandlers parses the embedded templates.
func NewPageHandlers(deps PageDeps) (*PageHandlers, error) {
	views, err := parseViews("home", "page", "blog_list", "blog_post")
	if err != nil {
		return nil, err
	}
	h := &PageHandlers{
		pages:    deps.Pages,
		blog:     deps.Blog,
		registry: deps.Registry,
		locale:   deps.DefaultLocale,
		views:    views,
	}
	if h.registry == nil {
		h.registry = calc.DefaultRegistry()
	}
	if h.locale == language.Und {
		h.locale = language.AmericanEnglish
	}
	return h, nil
}

func parseViews(names ...string) (map[string]*template.Template, error) {
	funcs := template.FuncMap{
		"formatDate": func(t time.Time) string { return t.Format("January 2, 2006") },
		"year":       func() int { return time.Now().Year() },
	}
	base, err := template.New("_root").Funcs(funcs).ParseFS(templateFS, "templates/base.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse base template: %w", err)
	}
	views := make(map[string]*template.Template, len(names))
	for _, name := range names {
		clone, err := base.Clone()
		if err != nil {
			return nil, err
		}
		if _, err := clone.ParseFS(templateFS, "templates/"+name+".tmpl"); err != nil {
			return nil, fmt.Errorf("parse %s template: %w", name, err)
		}
		views[name] = clone
	}
	return views, nil
}

// SiteRoutes registers the home page and static content pages at the root.
func (h *PageHandlers) SiteRoutes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/", h.home)
	if h.pages == nil {
		return
	}
	for _, slug := range StaticPages {
		slug := slug
		r.Get("/"+slug, func(w http.ResponseWriter, req *http.Request) {
			h.page(w, req, slug)
		})
	}
}

// BlogRoutes returns the /blog registrar, or nil when no blog API is configured.
func (h *PageHandlers) BlogRoutes() RouteRegistrar {
	if h.blog == nil {
		return nil
	}
	return func(r chi.Router) {
		r.Get("/", h.blogList)
		r.Get("/{slug}", h.blogPost)
	}
}

func (h *PageHandlers) home(w http.ResponseWriter, r *http.Request) {
	type toolLink struct{ Name, Title string }
	tools := h.registry.Tools()
	links := make([]toolLink, 0, len(tools))
	for _, t := range tools {
		links = append(links, toolLink{Name: t.Name(), Title: t.Title()})
	}
	h.render(w, r, "home", pageView{
		Title:       "Everyday calculators",
		Description: "BMI, GPA and unit conversion tools.",
		Data:        links,
	})
}

func (h *PageHandlers) page(w http.ResponseWriter, r *http.Request, slug string) {
	ctx := r.Context()
	tag := requestctx.Locale(ctx, h.locale)
	base, _ := tag.Base()

	page, err := h.pages.Page(ctx, slug, base.String())
	if err != nil {
		if errors.Is(err, content.ErrNotFound) {
			httpx.WriteError(ctx, w, httpx.NewError("page_not_found", fmt.Sprintf("page %q not found", slug), http.StatusNotFound))
			return
		}
		observability.FromContext(ctx).Error("render content page", zap.String("slug", slug), zap.Error(err))
		httpx.WriteError(ctx, w, httpx.NewError("page_unavailable", "page could not be rendered", http.StatusInternalServerError))
		return
	}
	h.render(w, r, "page", pageView{
		Lang:        page.Lang,
		Title:       page.SEO.Title,
		Description: page.SEO.Description,
		Data:        page,
	})
}

func (h *PageHandlers) blogList(w http.ResponseWriter, r *http.Request) {
	posts, err := h.blog.List(r.Context())
	if err != nil {
		writeBlogError(w, r, err)
		return
	}
	h.render(w, r, "blog_list", pageView{Title: "Blog", Data: posts})
}

func (h *PageHandlers) blogPost(w http.ResponseWriter, r *http.Request) {
	post, err := h.blog.Post(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		writeBlogError(w, r, err)
		return
	}
	h.render(w, r, "blog_post", pageView{Title: post.Title, Description: post.Summary, Data: post})
}

func writeBlogError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	switch {
	case errors.Is(err, content.ErrNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("post_not_found", "blog post not found", http.StatusNotFound))
	case errors.Is(err, content.ErrUpstream):
		observability.FromContext(ctx).Warn("blog upstream failure", zap.Error(err))
		httpx.WriteError(ctx, w, httpx.NewError("blog_unavailable", "blog service unavailable", http.StatusBadGateway))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("blog_unavailable", err.Error(), http.StatusInternalServerError))
	}
}

func (h *PageHandlers) render(w http.ResponseWriter, r *http.Request, view string, data pageView) {
	ctx := r.Context()
	if data.Lang == "" {
		data.Lang = requestctx.Locale(ctx, h.locale).String()
	}
	data.Nav = h.nav(r.URL.Path)

	tmpl, ok := h.views[view]
	if !ok {
		httpx.WriteError(ctx, w, httpx.NewError("template_missing", view, http.StatusInternalServerError))
		return
	}
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "base", data); err != nil {
		observability.FromContext(ctx).Error("template exec", zap.String("view", view), zap.Error(err))
		httpx.WriteError(ctx, w, httpx.NewError("template_error", "page could not be rendered", http.StatusInternalServerError))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func (h *PageHandlers) nav(current string) []navItem {
	items := make([]navItem, 0, len(StaticPages)+1)
	if h.pages != nil {
		for _, slug := range StaticPages {
			href := "/" + slug
			items = append(items, navItem{Href: href, Label: strings.ToUpper(slug[:1]) + slug[1:], Active: current == href})
		}
	}
	if h.blog != nil {
		items = append(items, navItem{Href: "/blog", Label: "Blog", Active: strings.HasPrefix(current, "/blog")})
	}
	return items
}
