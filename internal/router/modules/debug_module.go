package modules

import (
	"expvar"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/oksasatya/go-storefront-session/internal/container"
	"github.com/oksasatya/go-storefront-session/internal/interface/middleware"
)

var publishOnce sync.Once

type DebugModule struct{}

func NewDebugModule() *DebugModule { return &DebugModule{} }

func (m *DebugModule) Register(rg *gin.RouterGroup) {
	publishOnce.Do(publishVars)
	// Public metrics endpoint (expvar), rate-limited per IP
	rl := middleware.RateLimit(container.GetRedis(), 120, time.Minute, middleware.KeyByIP(), nil)
	rg.GET("/debug/vars", rl, gin.WrapH(expvar.Handler()))
}

func publishVars() {
	expvar.Publish("devices", expvar.Func(func() any {
		if r := container.GetRegistry(); r != nil {
			return r.Len()
		}
		return 0
	}))
	expvar.Publish("datastore", expvar.Func(func() any {
		s := container.GetStore()
		if s == nil {
			return nil
		}
		c := s.Connectivity()
		return map[string]any{"offline": c.Offline(), "changed_at": c.ChangedAt()}
	}))
}
