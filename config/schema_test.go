package config

import (
	"encoding/json"
	"testing"

	"github.com/grovetools/notifsync/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeneratedSchemaShape(t *testing.T) {
	data, err := GenerateSchema()
	require.NoError(t, err)

	var parsed map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &parsed))

	for _, key := range []string{"$schema", "type", "title", "properties"} {
		assert.Contains(t, parsed, key)
	}

	props := parsed["properties"].(map[string]interface{})
	for _, section := range []string{"version", "api", "push", "session", "sync"} {
		assert.Contains(t, props, section)
	}
}

func TestValidateDocument(t *testing.T) {
	assert.NoError(t, validateDocument(Default()))

	err := validateDocument(map[string]interface{}{
		"session": map[string]interface{}{"source": "ldap"},
	})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeConfigInvalid, errors.GetCode(err))
}
