package confkit

import (
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/joho/godotenv"
)

var dotenvOnce sync.Once

// LoadDotenvOnce loads a .env file the first time it is called.
//
// ENV_FILE names an explicit file. Otherwise every .env between this source
// file and the repository root is loaded, nearest first, falling back to
// ./.env. Existing variables win unless DOTENV_OVERLOAD=1; NO_DOTENV=1
// disables loading. Credentials such as KALSHI_ACCESS_KEY are typically
// provided this way.
func LoadDotenvOnce() {
	dotenvOnce.Do(loadDotenv)
}

func loadDotenv() {
	if os.Getenv("NO_DOTENV") == "1" {
		return
	}

	load := godotenv.Load
	if os.Getenv("DOTENV_OVERLOAD") == "1" {
		load = godotenv.Overload
	}

	if envFile := os.Getenv("ENV_FILE"); envFile != "" {
		_ = load(envFile)
		return
	}

	_, file, _, ok := runtime.Caller(0)
	if !ok {
		_ = load(".env")
		return
	}
	walkUp(filepath.Dir(file), func(dir string) bool {
		if p := filepath.Join(dir, ".env"); fileExists(p) {
			_ = load(p)
		}
		return isRoot(dir)
	})
}
