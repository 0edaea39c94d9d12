package config

import (
	"fmt"

	"github.com/gookit/validate"
	"github.com/nooltools/nooltools/internal/logging"
)

func init() {
	validate.AddValidator("logLevel", func(val any) bool {
		s, ok := val.(string)
		return ok && (s == "" || logging.ValidLevel(s))
	})
}

// Validate checks opts against its `validate` struct tags.
func Validate(opts any) error {
	v := validate.Struct(opts)
	if !v.Validate() {
		return fmt.Errorf("invalid configuration: %s", v.Errors.Error())
	}
	return nil
}
