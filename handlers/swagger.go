package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterSwagger registers the Swagger/OpenAPI endpoints for the people API.
// - GET /swagger/index.html  -> a small HTML page that loads the OpenAPI JSON
// - GET /swagger/doc.json    -> machine-readable OpenAPI JSON
func RegisterSwagger(rg gin.IRouter) {
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
    <title>peoplebook - Swagger</title>
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
  "info": { "title": "peoplebook", "version": "v0.1.0" },
  "components": {
    "schemas": {
      "Person": {"type":"object","required":["name"],"properties":{"_id":{"type":"string"},"name":{"type":"string"},"age":{"type":"integer"},"favoriteFoods":{"type":"array","items":{"type":"string"}}}},
      "Error": {"type":"object","properties":{"error":{"type":"string"}}}
    },
    "securitySchemes": { "bearer": { "type": "http", "scheme": "bearer", "bearerFormat": "JWT" } }
  },
  "paths": {
    "/api/people": {
      "get": {
        "summary": "Find people with an optional chained query",
        "parameters": [
          {"name":"name","in":"query","schema":{"type":"string"}},
          {"name":"food","in":"query","schema":{"type":"string"}},
          {"name":"sort","in":"query","schema":{"type":"string"},"example":"-age name"},
          {"name":"limit","in":"query","schema":{"type":"integer"}},
          {"name":"skip","in":"query","schema":{"type":"integer"}},
          {"name":"select","in":"query","schema":{"type":"string"},"example":"-age"}
        ],
        "responses": { "200": { "description": "matching people" }, "400": { "description": "invalid query" } }
      },
      "post": { "summary": "Save one person", "security": [{"bearer":[]}], "requestBody": { "content": { "application/json": { "schema": {"$ref":"#/components/schemas/Person"}}}}, "responses": { "201": { "description": "created" }, "200": { "description": "replaced" }, "400": { "description": "validation failed" } } },
      "delete": { "summary": "Remove everyone with a name (default Mary)", "security": [{"bearer":[]}], "parameters": [{"name":"name","in":"query","schema":{"type":"string"}}], "responses": { "200": { "description": "{deletedCount}" } } }
    },
    "/api/people/sample": { "post": { "summary": "Create and save the sample person", "security": [{"bearer":[]}], "responses": { "201": { "description": "created" } } } },
    "/api/people/batch": { "post": { "summary": "Create many people", "security": [{"bearer":[]}], "requestBody": { "content": { "application/json": { "schema": {"type":"array","items":{"$ref":"#/components/schemas/Person"}}}}}, "responses": { "201": { "description": "created" }, "400": { "description": "validation failed" } } } },
    "/api/people/one": { "get": { "summary": "Find one person by favorite food", "parameters": [{"name":"food","in":"query","schema":{"type":"string"}}], "responses": { "200": { "description": "person" }, "404": { "description": "no match" } } } },
    "/api/people/burrito": { "get": { "summary": "Two burrito lovers sorted by name, age hidden", "responses": { "200": { "description": "people" } } } },
    "/api/people/count": { "get": { "summary": "Count people", "responses": { "200": { "description": "{count}" } } } },
    "/api/people/{id}": {
      "get": { "summary": "Find person by id", "parameters": [{"name":"id","in":"path","required":true,"schema":{"type":"string"}}], "responses": { "200": { "description": "person" }, "400": { "description": "invalid id" }, "404": { "description": "not found" } } },
      "delete": { "summary": "Remove person by id", "security": [{"bearer":[]}], "parameters": [{"name":"id","in":"path","required":true,"schema":{"type":"string"}}], "responses": { "200": { "description": "removed person" }, "404": { "description": "not found" } } }
    },
    "/api/people/{id}/hamburger": { "post": { "summary": "Add hamburger to favorite foods and save", "security": [{"bearer":[]}], "parameters": [{"name":"id","in":"path","required":true,"schema":{"type":"string"}}], "responses": { "200": { "description": "updated person" }, "404": { "description": "not found" } } } },
    "/api/people/by-name/{name}/age": { "patch": { "summary": "Set age to 20 for the first person with name", "security": [{"bearer":[]}], "parameters": [{"name":"name","in":"path","required":true,"schema":{"type":"string"}}], "responses": { "200": { "description": "updated person" }, "404": { "description": "no match" } } } },
    "/api/people/export": { "post": { "summary": "Export all people to object storage", "security": [{"bearer":[]}], "responses": { "201": { "description": "snapshot key and download URL" }, "503": { "description": "object storage not configured" } } } },
    "/api/people/import": { "post": { "summary": "Import a snapshot (latest when key is empty)", "security": [{"bearer":[]}], "parameters": [{"name":"key","in":"query","schema":{"type":"string"}}], "responses": { "201": { "description": "{imported}" }, "409": { "description": "ids already stored" } } } },
    "/health": { "get": { "summary": "Liveness check", "responses": { "200": { "description": "healthy" } } } },
    "/ready": { "get": { "summary": "Readiness check", "responses": { "200": { "description": "ready" }, "503": { "description": "not ready" } } } },
    "/metrics": { "get": { "summary": "Prometheus metrics", "responses": { "200": { "description": "metrics" } } } }
  }
}`
