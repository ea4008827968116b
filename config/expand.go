package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
)

var bracedVar = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// ExpandPath expands a leading ~ and environment variables in p.
//
// $VAR and ${VAR} expand via os.ExpandEnv, but a ${VAR} naming an unset
// variable is an error. $$ yields a literal $.
func ExpandPath(p string) (string, error) {
	if p == "" {
		return "", nil
	}
	const dollar = "\x00toolbatch-dollar\x00"
	s := strings.ReplaceAll(p, "$$", dollar)

	var missing []string
	for _, m := range bracedVar.FindAllStringSubmatch(s, -1) {
		if _, ok := os.LookupEnv(m[1]); !ok && !slices.Contains(missing, m[1]) {
			missing = append(missing, m[1])
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return "", fmt.Errorf("%w: %q references unset variables: %s",
			ErrInvalidConfig, p, strings.Join(missing, ", "))
	}

	s = strings.ReplaceAll(os.ExpandEnv(s), dollar, "$")
	if s == "~" || strings.HasPrefix(s, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("%w: expand %q: %w", ErrInvalidConfig, p, err)
		}
		s = filepath.Join(home, s[1:])
	}
	return s, nil
}

// expandPaths rewrites path-valued fields in place.
func (c *Config) expandPaths() error {
	for _, field := range []*string{&c.Persistence.Path, &c.Cache.BaseDir} {
		expanded, err := ExpandPath(*field)
		if err != nil {
			return err
		}
		*field = expanded
	}
	return nil
}
