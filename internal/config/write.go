package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// WriteDefault writes a config file holding every default.
// It refuses to overwrite an existing file unless force is set.
func WriteDefault(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file %s already exists", path)
		}
	}

	data, err := toml.Marshal(defaultTree())
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	header := "# campus configuration. Every key can be overridden by an\n" +
		"# environment variable such as CAMPUS_RETRIEVAL_TOP_K.\n\n"
	return os.WriteFile(path, append([]byte(header), data...), 0o600)
}

// defaultTree nests the dotted defaults into sections.
func defaultTree() map[string]any {
	tree := make(map[string]any)
	for key, val := range defaults {
		if d, ok := val.(time.Duration); ok {
			val = d.String()
		}
		parts := strings.Split(key, ".")
		node := tree
		for _, p := range parts[:len(parts)-1] {
			child, ok := node[p].(map[string]any)
			if !ok {
				child = make(map[string]any)
				node[p] = child
			}
			node = child
		}
		node[parts[len(parts)-1]] = val
	}
	return tree
}
