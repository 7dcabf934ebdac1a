package confkit

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/zeromicro/go-zero/core/conf"
)

// ResolvePath expands environment variables in file and, when relative,
// joins it to base. A file that expands to nothing resolves to "".
func ResolvePath(base, file string) string {
	file = strings.TrimSpace(os.ExpandEnv(file))
	if file == "" {
		return ""
	}
	if filepath.IsAbs(file) {
		return file
	}
	return filepath.Join(base, file)
}

// BaseDir returns the directory of the main config file path.
func BaseDir(mainPath string) string {
	return filepath.Dir(mainPath)
}

// LoadFile loads a go-zero style configuration file (yaml, json or toml)
// into T, optionally expanding environment variables.
func LoadFile[T any](path string, useEnv bool) (*T, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("load config: empty path")
	}
	var cfg T
	var opts []conf.Option
	if useEnv {
		opts = append(opts, conf.UseEnv())
	}
	if err := conf.Load(path, &cfg, opts...); err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	return &cfg, nil
}

// Section is a config block kept in its own file and referenced by path from
// the main config.
type Section[T any] struct {
	File  string `json:",optional"`
	Value *T     `json:"-"`
}

// Hydrate loads File, resolved against base, through loader. A File that
// is empty after env expansion leaves the section untouched. On success File
// holds the resolved path; on failure it is unchanged.
func (s *Section[T]) Hydrate(base string, loader func(string) (*T, error)) error {
	p := ResolvePath(base, s.File)
	if p == "" {
		return nil
	}
	v, err := loader(p)
	if err != nil {
		return fmt.Errorf("section %s: %w", p, err)
	}
	s.File, s.Value = p, v
	return nil
}

// Loaded reports whether the section holds a value.
func (s *Section[T]) Loaded() bool {
	return s != nil && s.Value != nil
}
