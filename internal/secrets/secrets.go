// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets resolves API credentials for the service. A credential is
// looked up, in order, in an explicit value, the process environment
// (after loading a .env file), and a directory of plain-text key files
// where the filename is the key name and the trimmed contents are the value.
//
// Supported key files: openai-api-key.
package secrets

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

// DefaultDir is the secrets directory relative to the working directory.
const DefaultDir = ".secrets"

// OpenAIKey names the OpenAI credential in both lookup sources.
var OpenAIKey = Key{Env: "OPENAI_API_KEY", File: "openai-api-key"}

// Key names one credential in the environment and in the secrets directory.
type Key struct {
	Env  string
	File string
}

// Resolver looks up credentials. The zero value reads the environment only.
type Resolver struct {
	files map[string]string
}

// LoadEnv loads the given dotenv files into the process environment
// without overriding variables that are already set. Missing files are
// skipped; with no arguments ".env" is tried.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); os.IsNotExist(err) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("loading %s: %w", f, err)
		}
	}
	return nil
}

// NewResolver reads the key files in dir. A missing directory is not an
// error.
func NewResolver(dir string) (*Resolver, error) {
	files, err := Load(dir)
	if err != nil {
		return nil, err
	}
	return &Resolver{files: files}, nil
}

// Resolve returns explicit when non-empty, then the environment variable,
// then the key file. It returns "" when no source has a value.
func (r *Resolver) Resolve(explicit string, key Key) string {
	if v := strings.TrimSpace(explicit); v != "" {
		return v
	}
	if v := strings.TrimSpace(os.Getenv(key.Env)); v != "" {
		return v
	}
	if r == nil {
		return ""
	}
	return r.files[key.File]
}

// Names returns the key files that were loaded.
func (r *Resolver) Names() []string {
	if r == nil {
		return nil
	}
	names := make([]string, 0, len(r.files))
	for k := range r.files {
		names = append(names, k)
	}
	return names
}

// Load reads all files in dir and returns a map of filename to trimmed contents.
// A missing directory is not an error; Load returns an empty map.
// Unreadable files produce a warning on stderr but do not abort.
func Load(dir string) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	secrets := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: could not read secret %s: %v\n", entry.Name(), err)
			continue
		}

		if value := strings.TrimSpace(string(data)); value != "" {
			secrets[entry.Name()] = value
		}
	}

	return secrets, nil
}
