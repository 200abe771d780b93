package backendtest

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fatalRecorder struct {
	testing.TB
	fatals []string
}

func (f *fatalRecorder) Fatalf(format string, args ...any) {
	f.fatals = append(f.fatals, fmt.Sprintf(format, args...))
}

func TestOverrideCode_KnownRoutes(t *testing.T) {
	b := New(t)
	rec := &fatalRecorder{TB: t}
	b.t = rec

	b.OverrideCode("GET /products", "999-WAT")
	b.OverrideCode("GET /products/", "999-WAT")
	b.OverrideCode("GET /api/v1/wishlists/{email}", "200-1")
	b.OverrideCode("POST /users/logout", "F-1")

	assert.Empty(t, rec.fatals)
	assert.Equal(t, "999-WAT", b.codes["GET /products"])
	assert.Equal(t, "200-1", b.codes["GET /wishlists/{email}"])
}

func TestOverrideCode_UnknownRouteFails(t *testing.T) {
	b := New(t)
	rec := &fatalRecorder{TB: t}
	b.t = rec

	b.OverrideCode("GET /produts", "999-WAT")

	assert.Len(t, rec.fatals, 1)
	assert.Contains(t, rec.fatals[0], "GET /produts")
	assert.Empty(t, b.codes)
}
