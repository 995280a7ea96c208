package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/smilemakc/prana/internal/domain"
)

func TestLookupMissReturnsFalse(t *testing.T) {
	r := New()
	_, ok := r.Lookup("http.request")
	assert.False(t, ok)
}

func TestRegisterThenLookup(t *testing.T) {
	r := New()
	a := &domain.Action{Name: "http.request", OutputPorts: []string{"main"}, DefaultSuccessPort: "main"}
	r.Register(a)
	got, ok := r.Lookup("http.request")
	assert.True(t, ok)
	assert.Same(t, a, got)
}
