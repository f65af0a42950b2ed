package builder

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLookupAlias(t *testing.T) {
	a := lookupAlias("profile.bio")
	assert.Equal(t, a, lookupAlias("profile.bio"))
	assert.NotEqual(t, a, lookupAlias("profile.name"))
	assert.Len(t, a, 33)
	assert.Regexp(t, `^_[0-9a-f]{32}$`, a)
}

func TestFlatten(t *testing.T) {
	got := flatten("user", map[string]any{
		"name": "u.name",
		"address": map[string]any{
			"city": "a.city",
			"zip":  "a.zip",
		},
	})
	assert.Equal(t, []string{"user.address.city", "user.address.zip", "user.name"}, got.Keys())
}
