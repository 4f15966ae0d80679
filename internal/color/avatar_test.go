package color

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestForUser(t *testing.T) {
	a := ForUser("usr_alice")
	assert.Equal(t, a, ForUser("usr_alice"))
	assert.Contains(t, palette, a)
	assert.Equal(t, Fallback, ForUser(""))
}

func TestForUser_Spreads(t *testing.T) {
	seen := make(map[string]bool)
	for _, id := range []string{"usr_a", "usr_b", "usr_c", "usr_d", "usr_e", "usr_f", "usr_g", "usr_h"} {
		seen[ForUser(id)] = true
	}
	assert.Greater(t, len(seen), 1)
}
