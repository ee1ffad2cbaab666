package vision

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeTitle(t *testing.T) {
	assert.Equal(t, "Get Entity", NormalizeTitle("  Get   Entity "))
	assert.Equal(t, "Add", NormalizeTitle("Add\n"))
	assert.Equal(t, "", NormalizeTitle("   "))
	assert.Equal(t, "Set Position", NormalizeTitle("Set\tPosition"))
}
