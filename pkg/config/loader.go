package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads Settings from a YAML file, substituting ${ENV_VAR} references
// with environment variable values before parsing. Missing variables expand
// to the empty string.
func Load(filePath string) (*Settings, error) {
	data, err := os.ReadFile(filePath) //nolint:gosec // G304: path supplied by operator
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	content := substituteEnvVars(string(data))

	settings := Default()
	if err := yaml.Unmarshal([]byte(content), settings); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	return settings, nil
}

// Save writes Settings to a YAML file.
func Save(filePath string, settings *Settings) error {
	data, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to marshal YAML: %w", err)
	}

	if err := os.WriteFile(filePath, data, 0644); err != nil { //nolint:gosec
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// substituteEnvVars replaces ${VAR_NAME} with environment variable values
func substituteEnvVars(content string) string {
	for {
		start := strings.Index(content, "${")
		if start == -1 {
			break
		}
		end := strings.Index(content[start:], "}")
		if end == -1 {
			break
		}
		end += start

		varName := content[start+2 : end]
		envValue := os.Getenv(varName)
		content = content[:start] + envValue + content[end+1:]
	}
	return content
}
