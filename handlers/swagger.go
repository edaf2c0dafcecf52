package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterSwagger registers minimal Swagger/OpenAPI endpoints.
// - GET /swagger/index.html  -> a small HTML page that loads the OpenAPI JSON
// - GET /swagger/doc.json    -> machine-readable OpenAPI JSON
func RegisterSwagger(rg *gin.Engine) {
	rg.GET("/swagger/index.html", func(c *gin.Context) {
		c.Header("Content-Type", "text/html; charset=utf-8")
		c.String(http.StatusOK, swaggerHTML)
	})

	rg.GET("/swagger/doc.json", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(swaggerJSON))
	})
}

const swaggerHTML = `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>glucoview - Swagger</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@4/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@4/swagger-ui-bundle.js"></script>
    <script>
      window.ui = SwaggerUIBundle({
        url: '/swagger/doc.json',
        dom_id: '#swagger-ui',
      })
    </script>
  </body>
</html>`

const swaggerJSON = `{
  "openapi": "3.0.0",
  "info": { "title": "glucoview", "version": "v0.1.0" },
  "paths": {
    "/api/auth": {
      "post": {
        "summary": "Exchange LibreLinkUp credentials for a token",
        "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"username":{"type":"string"},"password":{"type":"string"}}}}}},
        "responses": { "200": { "description": "token, duration, userId, accountId" }, "400": { "description": "missing credentials" } }
      }
    },
    "/api/glucose": {
      "get": {
        "summary": "Proxy the LibreLinkUp graph for a bearer token",
        "parameters": [
          {"name":"userId","in":"query","required":true,"schema":{"type":"string"}},
          {"name":"accountId","in":"query","required":true,"schema":{"type":"string"}}
        ],
        "responses": { "200": { "description": "remote graph JSON" }, "400": { "description": "missing parameters" }, "401": { "description": "missing token" } }
      }
    },
    "/api/session": {
      "get": { "summary": "Gate verdict for the stored session", "responses": { "200": { "description": "verdict" } } },
      "post": { "summary": "Log in and persist the session", "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"username":{"type":"string"},"password":{"type":"string"}}}}}}, "responses": { "200": { "description": "authenticated" } } },
      "delete": { "summary": "Log out", "responses": { "200": { "description": "logged out" } } }
    },
    "/api/series": {
      "get": { "summary": "Latest processed series", "responses": { "200": { "description": "view" }, "401": { "description": "session invalid" } } }
    },
    "/health": { "get": { "summary": "Liveness check", "responses": { "200": { "description": "healthy" } } } },
    "/ready": { "get": { "summary": "Readiness check", "responses": { "200": { "description": "ready" }, "503": { "description": "not ready" } } } },
    "/metrics": { "get": { "summary": "Prometheus metrics", "responses": { "200": { "description": "metrics" } } } }
  }
}`
