package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads KEY=VALUE pairs from the given files into the process
// environment without overriding variables that are already set. Missing
// files are ignored; a malformed file is an error.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return err
		}
	}
	return nil
}

// ApplyEnv overlays environment overrides onto j (12-factor style). Values
// from the config file win for runtime sizing; locations are replaced when
// the variable is set.
func ApplyEnv(j *Job) {
	j.Runtime.Partitions = pickInt(j.Runtime.Partitions, getenvInt("ETL_PARTITIONS", 4))
	j.Runtime.Parallelism = pickInt(j.Runtime.Parallelism, getenvInt("ETL_PARALLELISM", 0))

	if s := os.Getenv("CATALOG_PATH"); s != "" {
		j.Source.Catalog = s
	}
	if s := os.Getenv("CLEAN_ZONE_PATH"); s != "" {
		j.Sink.Object.Path = s
	}
	if s := os.Getenv("CONNECTIONS_PATH"); s != "" {
		j.Sink.Relational.Connections = s
	}
}

// getenvInt reads an int from the environment, returning def when unset or
// invalid.
func getenvInt(k string, def int) int {
	if s := os.Getenv(k); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
	}
	return def
}

// pickInt chooses a when positive, otherwise b.
func pickInt(a, b int) int {
	if a > 0 {
		return a
	}
	return b
}
