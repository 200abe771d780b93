package api

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJoinURL(t *testing.T) {
	tests := []struct {
		base, path, want string
	}{
		{"http://api.test", "/products", "http://api.test/products"},
		{"http://api.test/", "/products", "http://api.test/products"},
		{"http://api.test//", "products", "http://api.test/products"},
		{"http://api.test", "products", "http://api.test/products"},
		{"http://api.test/v1/", "//orders/write", "http://api.test/v1/orders/write"},
		{"http://api.test", "/orders/lists?email=a%40b.c", "http://api.test/orders/lists?email=a%40b.c"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, JoinURL(tt.base, tt.path), "JoinURL(%q, %q)", tt.base, tt.path)
	}
}

func TestRouteLabel(t *testing.T) {
	tests := map[string]string{
		"/products":                       "/products",
		"/products/12":                    "/products/{id}",
		"/wishlists/bean@coffee.test/3":   "/wishlists/{email}/{id}",
		"/wishlists/bean%40coffee.test":   "/wishlists/{email}",
		"/orders/lists?email=a@b.c":       "/orders/lists",
		"/orders/lists/today":             "/orders/lists/today",
		"orders/delete/99":                "/orders/delete/{id}",
		"/api/v1/wishlists/x@y.z":         "/api/v1/wishlists/{email}",
	}
	for in, want := range tests {
		assert.Equal(t, want, routeLabel(in), "routeLabel(%q)", in)
	}
}
