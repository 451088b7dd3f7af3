package middleware

import (
	"net/http"
	"time"

	"github.com/eduquery/eduquery/internal/workspace"
	"github.com/gin-gonic/gin"
)

// SessionHeader lets non-browser clients pick their workspace without cookies
const SessionHeader = "X-Session-ID"

const workspaceKey = "workspace"

// Session binds every request to a browser workspace, creating one when the
// request carries no known session id
func Session(store *workspace.Store, cookieName string, ttl time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(SessionHeader)
		if id == "" {
			id, _ = c.Cookie(cookieName)
		}

		ws, created := store.GetOrCreate(id)
		if created || id != ws.ID {
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(cookieName, ws.ID, int(ttl.Seconds()), "/", "", false, true)
		}
		c.Header(SessionHeader, ws.ID)
		c.Set(workspaceKey, ws)

		c.Next()
	}
}

// WorkspaceFrom returns the workspace bound by Session
func WorkspaceFrom(c *gin.Context) *workspace.Workspace {
	v, ok := c.Get(workspaceKey)
	if !ok {
		return nil
	}
	ws, _ := v.(*workspace.Workspace)
	return ws
}
