package service

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/paysignal/console-auth/pkg/cryptox"
)

func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "pepper")
	if err != nil {
		os.Exit(1)
	}
	cryptox.SetPepperPath(filepath.Join(dir, "pepper"))

	code := m.Run()
	_ = os.RemoveAll(dir)
	os.Exit(code)
}
