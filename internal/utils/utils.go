package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/ochronus/goneocities/internal/services/neocities"
)

const configTemplate = `# Neocities account name. Only needed when api_key is empty.
username = {{USERNAME}}

# Account password. Only needed when api_key is empty.
# password = "mypassword"

# API key, used instead of username/password when set. Regenerate with 'goneocities key'
api_key = {{API_KEY}}

# Optional API base URL, default "https://neocities.org"
base_url = {{BASE_URL}}

# Optional log level, default "info"
loglevel = "info"

# Optional HTTP timeout in secs, default 30
timeout = 30

# Optional local directory used by 'diff' and 'push' when none is given
# site_directory = "/path/to/site"

# Optional glob patterns skipped when scanning the site directory
exclude = [".git", ".DS_Store", "*.swp"]

# Optional number of goroutines hashing local files, default 4
hash_workers = 4

# Optional number of files sent per upload request, default 20
upload_batch_size = 20

# Optional. Delete remote files that are missing locally when pushing, default false
delete_remote = false

# Settings for 'goneocities mock-server', a local stand-in for the Neocities API
[mock_server]
bind_address = "127.0.0.1"
port = 4567
sitename = "localsite"
`

// GetAPIKey fetches the account's API key, generating one if none exists yet
func GetAPIKey(client neocities.ClientAPI) (string, error) {
	body, err := client.GetKey()
	if err != nil {
		return "", fmt.Errorf("failed to get api key: %w", err)
	}

	key, err := neocities.DecodeKey(body)
	if err != nil {
		return "", fmt.Errorf("failed to get api key: %w", err)
	}
	return key, nil
}

// tomlString renders value as a TOML string literal
func tomlString(value string) (string, error) {
	out, err := toml.Marshal(map[string]string{"v": value})
	if err != nil {
		return "", fmt.Errorf("failed to encode config value: %w", err)
	}
	return strings.TrimSpace(strings.TrimPrefix(string(out), "v = ")), nil
}

// GenerateConfig writes a configuration file with a freshly fetched API key
func GenerateConfig(client neocities.ClientAPI, configPath, username, baseURL string) error {
	fmt.Printf("Generating config %s\n", configPath)

	apiKey, err := GetAPIKey(client)
	if err != nil {
		return err
	}

	if baseURL == "" {
		baseURL = neocities.DefaultBaseURL
	}
	replacements := make([]string, 0, 6)
	for placeholder, value := range map[string]string{
		"{{USERNAME}}": username,
		"{{API_KEY}}":  apiKey,
		"{{BASE_URL}}": baseURL,
	} {
		quoted, err := tomlString(value)
		if err != nil {
			return err
		}
		replacements = append(replacements, placeholder, quoted)
	}
	config := strings.NewReplacer(replacements...).Replace(configTemplate)

	// Check if config file already exists and back it up
	if _, err := os.Stat(configPath); err == nil {
		backupPath := configPath + ".bak"
		fmt.Printf("Backing up config %s\n", configPath)
		if err := os.Rename(configPath, backupPath); err != nil {
			return fmt.Errorf("failed to backup config: %w", err)
		}
	}

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// The file holds an API key
	fmt.Printf("Writing %s\n", configPath)
	if err := os.WriteFile(configPath, []byte(config), 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}
