package config

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// maxEnvSearchDepth bounds how many parent directories are searched for .env.
const maxEnvSearchDepth = 6

// LoadDotEnv finds the nearest .env in the working directory or its parents
// and copies its entries into the environment. Variables that are already
// set win. It returns the file used, or "" when there is none.
func LoadDotEnv() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	path := findEnvFile(dir)
	if path == "" {
		return "", nil
	}

	f, err := os.Open(path)
	if err != nil {
		return path, err
	}
	defer f.Close()

	vars, err := parseEnv(f)
	if err != nil {
		return path, err
	}
	for key, value := range vars {
		if _, exists := os.LookupEnv(key); exists {
			continue
		}
		if err := os.Setenv(key, value); err != nil {
			return path, err
		}
	}
	return path, nil
}

func findEnvFile(dir string) string {
	for i := 0; i < maxEnvSearchDepth; i++ {
		path := filepath.Join(dir, ".env")
		if _, err := os.Stat(path); err == nil {
			return path
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

// parseEnv reads KEY=VALUE lines. Blank lines, comments, an "export "
// prefix and matching quotes around values are handled.
func parseEnv(r io.Reader) (map[string]string, error) {
	vars := make(map[string]string)
	scanner := bufio.NewScanner(r)
	first := true
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if first {
			line = strings.TrimPrefix(line, "\ufeff")
			first = false
		}
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		vars[key] = trimQuotes(strings.TrimSpace(value))
	}
	return vars, scanner.Err()
}

func trimQuotes(value string) string {
	if len(value) < 2 {
		return value
	}
	if (value[0] == '"' && value[len(value)-1] == '"') ||
		(value[0] == '\'' && value[len(value)-1] == '\'') {
		return value[1 : len(value)-1]
	}
	return value
}
