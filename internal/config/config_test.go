package config_test

import (
	"testing"

	"github.com/MrWong99/airwave/internal/config"
)

func TestLogLevel_IsValid(t *testing.T) {
	t.Parallel()

	for _, l := range []config.LogLevel{config.LogDebug, config.LogInfo, config.LogWarn, config.LogError} {
		if !l.IsValid() {
			t.Errorf("%q should be valid", l)
		}
	}
	if config.LogLevel("trace").IsValid() {
		t.Error("trace should be invalid")
	}
}

func TestResumeBackend_IsValid(t *testing.T) {
	t.Parallel()

	for _, b := range []config.ResumeBackend{config.ResumeFile, config.ResumePostgres, config.ResumeSQLite, config.ResumeMemory} {
		if !b.IsValid() {
			t.Errorf("%q should be valid", b)
		}
	}
	if config.ResumeBackend("redis").IsValid() {
		t.Error("redis should be invalid")
	}
}
