package controllers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOriginChecker(t *testing.T) {
	withOrigin := func(origin string) *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/ws", nil)
		if origin != "" {
			r.Header.Set("Origin", origin)
		}
		return r
	}

	open := originChecker(nil)
	assert.True(t, open(withOrigin("https://anywhere.example.com")))
	assert.True(t, originChecker([]string{"*"})(withOrigin("https://anywhere.example.com")))

	check := originChecker([]string{"https://board.example.com"})
	assert.True(t, check(withOrigin("https://board.example.com")))
	assert.True(t, check(withOrigin("")))
	assert.False(t, check(withOrigin("https://evil.example.com")))
	assert.False(t, check(withOrigin("https://board.example.com.evil.example.com")))
}
