package middleware

import (
	"github.com/gin-gonic/gin"

	midsec "QTalk/middleware/security"
	"QTalk/tools/security"
)

// RouteOpt controls per-route behavior.
type RouteOpt struct {
	IsAuth bool
}

// Router wraps a gin group with the configured auth middleware so call
// sites declare protection per route instead of stacking groups.
type Router struct {
	r    gin.IRoutes
	auth gin.HandlerFunc
}

func NewRouter(r gin.IRoutes, jwt security.Options) *Router {
	return &Router{r: r, auth: midsec.Middleware(jwt)}
}

func (x *Router) POST(path string, handler gin.HandlerFunc, opt RouteOpt) {
	if opt.IsAuth {
		x.r.POST(path, x.auth, handler)
	} else {
		x.r.POST(path, handler)
	}
}

func (x *Router) GET(path string, handler gin.HandlerFunc, opt RouteOpt) {
	if opt.IsAuth {
		x.r.GET(path, x.auth, handler)
	} else {
		x.r.GET(path, handler)
	}
}

func (x *Router) PUT(path string, handler gin.HandlerFunc, opt RouteOpt) {
	if opt.IsAuth {
		x.r.PUT(path, x.auth, handler)
	} else {
		x.r.PUT(path, handler)
	}
}
