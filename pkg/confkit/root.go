package confkit

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

const maxWalkDepth = 8

// ProjectRoot locates the repository root by walking up from this source
// file to the first directory holding go.mod or .git. Falls back to the
// working directory.
func ProjectRoot() (string, error) {
	if _, file, _, ok := runtime.Caller(0); ok {
		var root string
		walkUp(filepath.Dir(file), func(dir string) bool {
			if isRoot(dir) {
				root = dir
				return true
			}
			return false
		})
		if root != "" {
			return root, nil
		}
	}
	wd, err := os.Getwd()
	if err != nil {
		return ".", fmt.Errorf("getwd: %w", err)
	}
	return wd, nil
}

// MustProjectRoot returns the repository root path or panics on failure.
func MustProjectRoot() string {
	root, err := ProjectRoot()
	if err != nil {
		panic(err)
	}
	return root
}

// ProjectPath joins the repository root with rel.
func ProjectPath(rel string) (string, error) {
	root, err := ProjectRoot()
	if err != nil {
		return "", err
	}
	return filepath.Join(root, rel), nil
}

// MustProjectPath returns ProjectPath(rel) and panics on failure.
func MustProjectPath(rel string) string {
	p, err := ProjectPath(rel)
	if err != nil {
		panic(err)
	}
	return p
}

// walkUp calls visit on dir and its ancestors until visit returns true, the
// filesystem root is reached, or maxWalkDepth directories were visited.
func walkUp(dir string, visit func(dir string) bool) {
	for i := 0; i < maxWalkDepth; i++ {
		if visit(dir) {
			return
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return
		}
		dir = parent
	}
}

func isRoot(dir string) bool {
	return fileExists(filepath.Join(dir, "go.mod")) || fileExists(filepath.Join(dir, ".git"))
}

func fileExists(p string) bool {
	if p == "" {
		return false
	}
	_, err := os.Stat(p)
	return err == nil
}
