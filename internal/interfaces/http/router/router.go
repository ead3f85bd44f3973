// Package router assembles the gin engine: the middleware chain and the
// versioned API route groups.
package router

import (
	"net/http"
	"path"

	"github.com/gin-gonic/gin"
)

// Router mounts DomainGroups under /api/<version>
type Router struct {
	engine  *gin.Engine
	version string
	groups  []*DomainGroup
}

type RouterOption func(*Router)

// WithAPIVersion replaces the default "v1"
func WithAPIVersion(version string) RouterOption {
	return func(r *Router) { r.version = version }
}

func NewRouter(engine *gin.Engine, opts ...RouterOption) *Router {
	r := &Router{engine: engine, version: "v1"}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// BasePath is the versioned prefix, e.g. "/api/v1"
func (r *Router) BasePath() string {
	return "/api/" + r.version
}

// Register queues groups for Setup
func (r *Router) Register(groups ...*DomainGroup) *Router {
	r.groups = append(r.groups, groups...)
	return r
}

// Setup mounts the registered groups and returns their routes with
// absolute paths, in registration order.
func (r *Router) Setup() []RouteInfo {
	api := r.engine.Group(r.BasePath())
	var mounted []RouteInfo
	for _, g := range r.groups {
		g.mount(api)
		for _, info := range g.Routes() {
			info.Path = r.BasePath() + info.Path
			mounted = append(mounted, info)
		}
	}
	return mounted
}

// RouteInfo describes one mounted route
type RouteInfo struct {
	Group  string
	Method string
	Path   string
}

type route struct {
	method   string
	path     string
	handlers []gin.HandlerFunc
}

// DomainGroup is one API area: routes under a shared prefix, its own
// middleware, and nested subgroups.
type DomainGroup struct {
	name       string
	prefix     string
	middleware []gin.HandlerFunc
	routes     []route
	children   []*DomainGroup
}

func NewDomainGroup(name, prefix string) *DomainGroup {
	return &DomainGroup{name: name, prefix: prefix}
}

func (g *DomainGroup) Name() string   { return g.name }
func (g *DomainGroup) Prefix() string { return g.prefix }

// Use adds middleware that runs for this group and its subgroups only
func (g *DomainGroup) Use(middleware ...gin.HandlerFunc) *DomainGroup {
	g.middleware = append(g.middleware, middleware...)
	return g
}

func (g *DomainGroup) Handle(method, relativePath string, handlers ...gin.HandlerFunc) *DomainGroup {
	g.routes = append(g.routes, route{method: method, path: relativePath, handlers: handlers})
	return g
}

func (g *DomainGroup) GET(p string, h ...gin.HandlerFunc) *DomainGroup {
	return g.Handle(http.MethodGet, p, h...)
}

func (g *DomainGroup) POST(p string, h ...gin.HandlerFunc) *DomainGroup {
	return g.Handle(http.MethodPost, p, h...)
}

func (g *DomainGroup) PUT(p string, h ...gin.HandlerFunc) *DomainGroup {
	return g.Handle(http.MethodPut, p, h...)
}

func (g *DomainGroup) PATCH(p string, h ...gin.HandlerFunc) *DomainGroup {
	return g.Handle(http.MethodPatch, p, h...)
}

func (g *DomainGroup) DELETE(p string, h ...gin.HandlerFunc) *DomainGroup {
	return g.Handle(http.MethodDelete, p, h...)
}

// Group returns a new subgroup nested under g
func (g *DomainGroup) Group(name, prefix string) *DomainGroup {
	child := NewDomainGroup(name, prefix)
	g.children = append(g.children, child)
	return child
}

func (g *DomainGroup) mount(parent *gin.RouterGroup) {
	rg := parent.Group(g.prefix, g.middleware...)
	for _, rt := range g.routes {
		rg.Handle(rt.method, rt.path, rt.handlers...)
	}
	for _, child := range g.children {
		child.mount(rg)
	}
}

// Routes lists the routes of g and its subgroups relative to g's parent
func (g *DomainGroup) Routes() []RouteInfo {
	out := make([]RouteInfo, 0, len(g.routes))
	for _, rt := range g.routes {
		out = append(out, RouteInfo{Group: g.name, Method: rt.method, Path: joinPath(g.prefix, rt.path)})
	}
	for _, child := range g.children {
		for _, info := range child.Routes() {
			info.Path = joinPath(g.prefix, info.Path)
			out = append(out, info)
		}
	}
	return out
}

func joinPath(prefix, relative string) string {
	if relative == "" {
		return prefix
	}
	return path.Join(prefix, relative)
}
