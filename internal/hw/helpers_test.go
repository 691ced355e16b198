package hw_test

import (
	"os"
	"path/filepath"
)

func mkdirWrite(dir, id, content string) error {
	if err := os.MkdirAll(filepath.Join(dir, id), 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, id, "w1_slave"), []byte(content), 0o644)
}
