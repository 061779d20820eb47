package cryptox

import (
	"crypto/rand"
	"encoding/base64"
	"log/slog"
	"os"
	"path/filepath"
)

// Argon2id tuning parameters.
const (
	memory      = 19 * 1024 // Memory usage in KiB (19 MiB)
	iterations  = 2         // Iteration count
	parallelism = 1         // Number of threads
	keyLength   = 32        // Length of the generated hash
	saltLength  = 16        // Length of the salt
)

var (
	// pepper is loaded lazily from pepperFile, or generated on first use.
	pepper     string
	pepperFile string
)

// SetPepperPath configures where the pepper is read from (and written to when
// it does not exist yet). Must be called before the first hash operation.
func SetPepperPath(file string) {
	pepperFile = file
}

// GetPepper returns the process-wide pepper, loading or generating it on
// first call. Failure to obtain a pepper is unrecoverable.
func GetPepper() string {
	if pepper != "" {
		return pepper
	}

	var err error
	pepper, err = loadOrGeneratePepper()
	if err != nil {
		slog.Error("failed to load or generate pepper", slog.Any("err", err))
		os.Exit(1)
	}

	return pepper
}

func loadOrGeneratePepper() (string, error) {
	pepperFile = filepath.Clean(pepperFile)
	if err := os.MkdirAll(filepath.Dir(pepperFile), 0750); err != nil {
		return "", err
	}

	if _, err := os.Stat(pepperFile); os.IsNotExist(err) {
		buf := make([]byte, keyLength)
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		generated := base64.RawURLEncoding.EncodeToString(buf)

		if err := os.WriteFile(pepperFile, []byte(generated), 0600); err != nil {
			return "", err
		}
		return generated, nil
	}

	data, err := os.ReadFile(pepperFile)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
