package config

import (
	"os"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
)

// envVarPattern matches ${VAR}, ${VAR:-default}, and $VAR in that
// precedence order. Kept as one combined regex instead of the two
// overlapping implementations the teacher carried (pkg/config/env.go
// and an inline variant in pkg/config/loader.go) — one expansion path,
// exercised everywhere config text is read.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-([^}]*))?\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

// ExpandEnvVars replaces ${VAR}, ${VAR:-default} and $VAR references in
// s with values from the process environment. An unset VAR with no
// default expands to the empty string.
func ExpandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		name := groups[1]
		hasDefault := groups[2] != ""
		def := groups[3]
		if name == "" {
			name = groups[4]
		}
		if val, ok := os.LookupEnv(name); ok {
			return val
		}
		if hasDefault {
			return def
		}
		return ""
	})
}

// ExpandEnvVarsInBytes expands environment references across a raw
// config document before it is unmarshalled.
func ExpandEnvVarsInBytes(data []byte) []byte {
	if !strings.Contains(string(data), "$") {
		return data
	}
	return []byte(ExpandEnvVars(string(data)))
}

// LoadEnvFiles loads .env then .env.local from dir (if present),
// without overriding variables already set in the process
// environment. Matches the precedence godotenv documents and the
// original Python source's config_manager.py behavior.
func LoadEnvFiles(dir string) error {
	for _, name := range []string{".env", ".env.local"} {
		path := dir + string(os.PathSeparator) + name
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return err
		}
	}
	return nil
}
