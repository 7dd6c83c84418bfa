package config

import (
	"sync"

	"github.com/grovetools/notifsync/errors"
	"github.com/grovetools/notifsync/schema"
)

var (
	documentOnce      sync.Once
	documentValidator *schema.Validator
	documentErr       error
)

// validateDocument checks a raw, not yet defaulted configuration against the
// embedded JSON Schema. The schema is compiled once per process.
func validateDocument(cfg interface{}) error {
	documentOnce.Do(func() {
		documentValidator, documentErr = schema.NewValidator()
	})
	if documentErr != nil {
		return errors.Wrap(documentErr, errors.ErrCodeConfigInvalid, "failed to create validator")
	}
	if err := documentValidator.Validate(cfg); err != nil {
		return errors.Wrap(err, errors.ErrCodeConfigInvalid, "schema validation failed")
	}
	return nil
}
