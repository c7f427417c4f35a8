package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/meghashyamc/playfinder/api/handlers"
	"github.com/meghashyamc/playfinder/logger"
)

func setupRoutes(router *gin.Engine, logger logger.Logger, deps *Dependencies) {
	router.GET("/health", health())

	handlers.SetupSearch(router, logger, deps.Search, deps.Tracker, deps.Validator, deps.DefaultRadius)
	handlers.SetupBrowse(router, logger, deps.Search, deps.Validator)
	handlers.SetupImport(router, logger, deps.Import, deps.Validator)

}

func health() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	}
}

func newRouter() *gin.Engine {
	router := gin.New()
	router.UseRawPath = true
	router.Use(_CORSMiddleware())
	router.Use(gin.Recovery())

	return router
}
