package api

import (
	"embed"
	"html/template"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/eduquery/eduquery/internal/render"
	"github.com/gin-gonic/gin"
)

//go:embed static
var staticFS embed.FS

// PageConfig holds the text shown on the page
type PageConfig struct {
	Title       string
	Placeholder string
}

// SetupStaticRoutes sets up the page and its assets
func SetupStaticRoutes(r *gin.Engine, renderer *render.Renderer, page PageConfig) error {
	tmpl, err := template.ParseFS(staticFS, "static/index.html")
	if err != nil {
		return err
	}
	r.SetHTMLTemplate(tmpl)

	highlightCSS, err := renderer.StyleSheet()
	if err != nil {
		return err
	}

	r.GET("/", func(c *gin.Context) {
		c.HTML(http.StatusOK, "index.html", page)
	})

	r.GET("/static/*filepath", func(c *gin.Context) {
		name := strings.TrimPrefix(path.Clean(c.Param("filepath")), "/")
		if name == "highlight.css" {
			c.Data(http.StatusOK, "text/css; charset=utf-8", highlightCSS)
			return
		}
		serveStaticFile(c, name)
	})

	return nil
}

func serveStaticFile(c *gin.Context, filename string) {
	if filename == "" || filename == "index.html" {
		c.String(http.StatusNotFound, "File not found")
		return
	}

	file, err := staticFS.Open("static/" + filename)
	if err != nil {
		c.String(http.StatusNotFound, "File not found")
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		c.String(http.StatusInternalServerError, "Failed to read file")
		return
	}

	contentType := "application/octet-stream"
	switch path.Ext(filename) {
	case ".js":
		contentType = "application/javascript"
	case ".css":
		contentType = "text/css; charset=utf-8"
	case ".html":
		contentType = "text/html; charset=utf-8"
	}

	c.Data(http.StatusOK, contentType, content)
}
