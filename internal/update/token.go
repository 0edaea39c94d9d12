package update

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/nooltools/nooltools/internal/fsx"
)

// TokenFileName is the feed token file kept in the data directory.
const TokenFileName = "github_token.json"

type tokenFile struct {
	GitHubToken string `json:"github_token"`
}

// LoadToken reads the feed API token from path. A missing file is created
// with an empty token so users have a template to fill in.
func LoadToken(path string) (string, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		if mkErr := os.MkdirAll(filepath.Dir(path), 0o755); mkErr != nil {
			return "", fmt.Errorf("failed to create token directory: %w", mkErr)
		}
		tmpl, _ := json.MarshalIndent(tokenFile{}, "", "  ")
		if wErr := fsx.WriteFileAtomic(path, append(tmpl, '\n'), 0o600); wErr != nil {
			return "", fmt.Errorf("failed to write token template: %w", wErr)
		}
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read token file: %w", err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return "", nil
	}

	var tf tokenFile
	if err := json.Unmarshal(data, &tf); err != nil {
		return "", fmt.Errorf("failed to parse token file %s: %w", path, err)
	}
	return strings.TrimSpace(tf.GitHubToken), nil
}
