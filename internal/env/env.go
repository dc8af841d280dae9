package env

import (
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const NotExists = "~!-===X===-!~"

// Load reads the given .env files into the environment without overriding
// variables that are already set. Missing files are skipped.
func Load(files ...string) {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			slog.Debug("env file is not loaded", "file", f, "error", err)
		}
	}
}

// GetString retrieves the value of the environment variable named by the key.
// It returns the value, or if the variable is not present, it returns the defaultValue.
func GetString(key, defaultValue string) string {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	return value
}

// GetBool returns true if the env variable with the key set and is truthy and
// defaultValue otherwise.
func GetBool(key string, defaultValue bool) bool {
	strValue := GetString(key, NotExists)
	if strValue == NotExists {
		return defaultValue
	}

	if strValue == "1" || strValue == "true" {
		return true
	}

	return false
}

// GetInt returns an integer if the env variable with the key set and contains
// an integer and defaultValue otherwise.
func GetInt(key string, defaultValue int) int {
	strValue := GetString(key, NotExists)
	if strValue == NotExists {
		return defaultValue
	}

	intValue, err := strconv.ParseInt(strValue, 10, 64)
	if err != nil {
		return defaultValue
	}

	return int(intValue)
}

func GetUint64(key string, defaultValue uint64) uint64 {
	strValue := GetString(key, NotExists)
	if strValue == NotExists {
		return defaultValue
	}

	value, err := strconv.ParseUint(strValue, 10, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

// GetDuration accepts values like "30s" or "12h".
func GetDuration(key string, defaultValue time.Duration) time.Duration {
	strValue := GetString(key, NotExists)
	if strValue == NotExists {
		return defaultValue
	}

	value, err := time.ParseDuration(strValue)
	if err != nil {
		return defaultValue
	}

	return value
}
