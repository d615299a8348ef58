//go:build mage

// Package main contains Mage build targets for scamguard developer tooling.
package main

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/magefile/mage/mg"

	"github.com/pdiddy/scamguard/internal/corpus"
)

const (
	binDir     = "bin"
	binName    = "scamguard"
	cmdPkg     = "./cmd/scamguard"
	corpusFile = "department_knowledge.txt"
	secretsDir = ".secrets"
)

var starterCorpus = []string{
	"Scam emails often impersonate banks.",
	"Never share your OTP with anyone.",
	"Report phishing to the security team.",
}

// Init creates a starter knowledge file and the secrets directory. Existing
// files are left alone.
func Init() error {
	if err := os.MkdirAll(secretsDir, 0o700); err != nil {
		return fmt.Errorf("creating %s: %w", secretsDir, err)
	}
	fmt.Println("  ", secretsDir+"/")

	if _, err := os.Stat(corpusFile); err == nil {
		fmt.Println("  ", corpusFile, "(exists)")
	} else {
		data := strings.Join(starterCorpus, "\n") + "\n"
		if err := os.WriteFile(corpusFile, []byte(data), 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", corpusFile, err)
		}
		fmt.Println("  ", corpusFile)
	}
	fmt.Println("Project initialized. Put your OpenAI key in .secrets/openai-api-key or .env.")
	return nil
}

// Build compiles the CLI binary into bin/.
func Build() error {
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", binDir, err)
	}
	out := filepath.Join(binDir, binName)
	if err := run("go", "build", "-o", out, cmdPkg); err != nil {
		return fmt.Errorf("go build: %w", err)
	}
	fmt.Printf("Built %s\n", out)
	return nil
}

// Test runs the unit tests with the race detector.
func Test() error {
	return run("go", "test", "-race", "./...")
}

// Index builds the binary and then loads or rebuilds the embedding cache.
func Index() error {
	mg.Deps(Build)
	return run(filepath.Join(binDir, binName), "index", "build")
}

// Stats prints Go production/test line counts and the number of knowledge
// items in the corpus file.
func Stats() error {
	prod, test, err := countGoLines(".")
	if err != nil {
		return err
	}
	fmt.Printf("Lines of code (Go, production): %d\n", prod)
	fmt.Printf("Lines of code (Go, tests):      %d\n", test)

	items, err := corpus.Load(corpusFile)
	if err != nil {
		fmt.Printf("Knowledge items:                 (none: %v)\n", err)
		return nil
	}
	fmt.Printf("Knowledge items:                 %d\n", len(items))
	return nil
}

func run(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

// countGoLines returns non-blank line counts for non-test and test Go
// files under root, skipping hidden and underscore-prefixed directories.
func countGoLines(root string) (prod, test int, err error) {
	err = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			name := d.Name()
			if path != root && (strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_")) {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) != ".go" {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
		n := 0
		sc := bufio.NewScanner(bytes.NewReader(data))
		for sc.Scan() {
			if strings.TrimSpace(sc.Text()) != "" {
				n++
			}
		}
		if strings.HasSuffix(path, "_test.go") {
			test += n
		} else {
			prod += n
		}
		return nil
	})
	return prod, test, err
}
