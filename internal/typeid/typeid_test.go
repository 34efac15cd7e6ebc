package typeid

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewAndValidate(t *testing.T) {
	id := NewSceneID()
	assert.True(t, strings.HasPrefix(id, "scene_"))
	assert.NoError(t, Validate(id, PrefixScene))
	assert.Error(t, Validate(id, PrefixUser))
	assert.Error(t, Validate("scene_playground", PrefixScene))
	assert.NotEqual(t, NewElementID(), NewElementID())
}
