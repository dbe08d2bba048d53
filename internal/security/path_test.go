package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateFilePath(t *testing.T) {
	valid := []string{
		"config.json",
		"data/sendlog.db",
		"/var/lib/sendlog/sendlog.db",
		"/tmp/sendlog-test/test.db",
		"./config.json",
	}
	for _, path := range valid {
		assert.NoError(t, ValidateFilePath(path), "path %q should be valid", path)
	}

	invalid := []string{
		"",
		"../outside/config.json",
		"data/../../etc/passwd",
		"config\x00.json",
	}
	for _, path := range invalid {
		assert.Error(t, ValidateFilePath(path), "path %q should be rejected", path)
	}
}
