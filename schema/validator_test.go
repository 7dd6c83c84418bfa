package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidator(t *testing.T) {
	v, err := NewValidator()
	require.NoError(t, err)

	valid := map[string]interface{}{
		"version": "1.0",
		"push":    map[string]interface{}{"reconnect_delay": 5000000000, "destination": "/topic/x"},
		"logging": map[string]interface{}{"level": "debug"},
	}
	assert.NoError(t, v.Validate(valid))

	negative := map[string]interface{}{
		"push": map[string]interface{}{"reconnect_delay": -1},
	}
	err = v.Validate(negative)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "/push/reconnect_delay")

	badSource := map[string]interface{}{
		"session": map[string]interface{}{"source": "ldap"},
	}
	assert.Error(t, v.Validate(badSource))

	unknownKey := map[string]interface{}{
		"sync": map[string]interface{}{"snapshot_timeot": 1},
	}
	assert.Error(t, v.Validate(unknownKey))
}
