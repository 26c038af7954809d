package middleware

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// CORSMiddleware allows the dashboard frontend at origin to call the API.
func CORSMiddleware(origin string) gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOrigins:     []string{origin},
		AllowMethods:     []string{"GET", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Accept", "Origin", "Cache-Control", "X-Requested-With"},
		ExposeHeaders:    []string{RequestIDHeader},
		AllowCredentials: true,
	})
}
