// Package cachecontrol implements ETag based response cache validation for
// routes that serve content-addressed documents.
package cachecontrol

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

// Ability scopes who may cache a response.
type Ability string

const (
	// AbilityAll allows any cache to store the response.
	AbilityAll Ability = "public"

	// AbilitySingleUser restricts caching to the end user's own cache.
	AbilitySingleUser Ability = "private"
)

// Config describes the Cache-Control directives emitted with a validated
// response. Negative MaxAge or RevalidationSeconds omit the directive.
type Config struct {
	Ability             Ability
	Immutable           bool
	MaxAge              int
	RevalidationSeconds int
}

// HeaderValue renders the Cache-Control header for this config.
func (c Config) HeaderValue() string {
	directives := []string{"no-transform", "must-revalidate", string(c.Ability)}
	if c.Immutable {
		directives = append(directives, "immutable")
	}
	if c.MaxAge >= 0 {
		directives = append(directives, "max-age="+strconv.Itoa(c.MaxAge))
	}
	if c.RevalidationSeconds >= 0 {
		directives = append(directives, "stale-while-revalidate="+strconv.Itoa(c.RevalidationSeconds))
	}
	return strings.Join(directives, ",")
}

// Check validates the request's If-None-Match against etag. It returns true
// when the caller should send a fresh document. When caching is enabled it
// sets the ETag and Cache-Control headers, and on a validator match it writes
// a 304 with no body and returns false. When caching is disabled every request
// is treated as a cache miss and no validator headers are set.
func Check(c *gin.Context, enabled bool, etag string, cfg Config) bool {
	if !enabled {
		return true
	}

	c.Header("ETag", etag)
	c.Header("Cache-Control", cfg.HeaderValue())

	if c.GetHeader("If-None-Match") == etag {
		c.Status(http.StatusNotModified)
		return false
	}
	return true
}
