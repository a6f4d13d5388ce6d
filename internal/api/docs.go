package api

import (
	_ "embed"
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// @title Embedding Gateway API
// @version 1.0
// @description Converts text into embeddings and stores or searches them in a managed vector index.

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:3000
// @BasePath /
// @schemes http https

// @tag.name texts
// @tag.description Text ingestion and similarity search

// @tag.name indexes
// @tag.description Vector collection management

// @tag.name health
// @tag.description Liveness and backend connectivity

//go:embed openapi.yaml
var openAPIDocument []byte

const openAPIPath = "/openapi.yaml"

// OpenAPIDocument returns the embedded OpenAPI document
func OpenAPIDocument() []byte {
	return openAPIDocument
}

// SetupSwaggerDocs serves the OpenAPI document and a Swagger UI pointed at it
func SetupSwaggerDocs(router gin.IRouter) {
	router.GET(openAPIPath, func(c *gin.Context) {
		c.Data(http.StatusOK, "application/yaml", openAPIDocument)
	})
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL(openAPIPath)))
}
