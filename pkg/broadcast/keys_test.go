package broadcast_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/pulse/pkg/broadcast"
)

func TestParseKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		key        string
		site, user string
		ok         bool
	}{
		{broadcast.SiteKey("s1"), "s1", "", true},
		{broadcast.UserKey("s1", "u1"), "s1", "u1", true},
		{"site:", "", "", false},
		{"site:s1:user:", "", "", false},
		{"channel:s1", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			t.Parallel()
			site, user, ok := broadcast.ParseKey(tt.key)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.site, site)
			assert.Equal(t, tt.user, user)
		})
	}
}
