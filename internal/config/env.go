package config

import (
	stderrors "errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"git.home.luguber.info/inful/postpub/internal/foundation/errors"
)

// envFiles are loaded in order; variables already set are never overridden.
var envFiles = []string{".env", ".env.local"}

// LoadEnv loads .env and .env.local from workdir and returns the files that
// were read. Missing files are skipped.
func LoadEnv(workdir string) ([]string, error) {
	var loaded []string
	for _, name := range envFiles {
		path := filepath.Join(workdir, name)
		if _, err := os.Stat(path); err != nil {
			if stderrors.Is(err, fs.ErrNotExist) {
				continue
			}
			return loaded, fsError(err, path)
		}
		if err := godotenv.Load(path); err != nil {
			return loaded, errors.WrapError(err, errors.CategoryConfig, "invalid environment file").
				WithContext("path", path).Build()
		}
		loaded = append(loaded, path)
	}
	return loaded, nil
}
