package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Validate checks the configuration against the struct-level validation tags
// plus the cross-field rules the tags cannot express.
func Validate(cfg *Config) error {
	v := validator.New()
	if err := v.Struct(cfg); err != nil {
		if errs, ok := err.(validator.ValidationErrors); ok {
			return fmt.Errorf("invalid configuration: %s", describeFirst(errs))
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}

	seen := make(map[string]struct{}, len(cfg.Bots))
	for _, b := range cfg.Bots {
		if _, dup := seen[b.ID]; dup {
			return fmt.Errorf("invalid configuration: duplicate bot id %q", b.ID)
		}
		seen[b.ID] = struct{}{}
	}

	if cfg.Transfer.ChunkSize < 0 {
		return fmt.Errorf("invalid configuration: chunk_size must be positive")
	}

	return nil
}

func describeFirst(errs validator.ValidationErrors) string {
	e := errs[0]
	if e.Param() != "" {
		return fmt.Sprintf("field %s failed %q (param %s)", e.Namespace(), e.Tag(), e.Param())
	}
	return fmt.Sprintf("field %s failed %q", e.Namespace(), e.Tag())
}
