package config

import "github.com/mitchellh/mapstructure"

// ApplyOverrides decodes a loosely-typed overrides map (typically
// built from CLI flags in cmd/sage's serve command) onto cfg, matching
// field names case-insensitively against the json tags already used by
// config.json. Only keys present in overrides are touched; zero-valued
// fields elsewhere in cfg are left as Load already resolved them.
func ApplyOverrides(cfg *Config, overrides map[string]any) error {
	if len(overrides) == 0 {
		return nil
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Metadata:         nil,
		Result:           cfg,
		TagName:          "json",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(overrides)
}
