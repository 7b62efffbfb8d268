package controllers

import (
	"strings"

	"github.com/BlinkPay/BlinkPay-Snipcart-Demo/config"
	"github.com/gin-gonic/gin"
)

// publicBaseURL is the configured base URL, or the one the request came in on.
func publicBaseURL(c *gin.Context, cfg *config.Config) string {
	if cfg.PublicBaseURL != "" {
		return cfg.PublicBaseURL
	}

	scheme := "https"
	if proto := c.GetHeader("X-Forwarded-Proto"); proto == "http" || proto == "https" {
		scheme = proto
	}
	return scheme + "://" + strings.TrimRight(c.Request.Host, "/")
}

// param reads a value from the query string, then from a form body.
func param(c *gin.Context, key string) string {
	if v := c.Query(key); v != "" {
		return v
	}
	return c.PostForm(key)
}
