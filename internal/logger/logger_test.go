package logger

import (
	"os"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/Brownie44l1/fer-demo/internal/config"
)

func TestNew_Level(t *testing.T) {
	tests := []struct {
		level    string
		expected logrus.Level
	}{
		{"debug", logrus.DebugLevel},
		{"warn", logrus.WarnLevel},
		{"bogus", logrus.InfoLevel},
	}

	for _, tt := range tests {
		log := New(&config.Config{Env: "test", LogLevel: tt.level})
		if log.GetLevel() != tt.expected {
			t.Errorf("New(level=%q) level = %v, expected %v", tt.level, log.GetLevel(), tt.expected)
		}
	}
}

func TestNew_TestEnvSkipsFileOutput(t *testing.T) {
	dir := t.TempDir()
	log := New(&config.Config{Env: "test", LogLevel: "info", LogDirectory: dir})
	log.Info("hello")

	entries, err := readDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("Expected no log files in test env, got %v", entries)
	}
}

func readDir(dir string) ([]string, error) {
	des, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(des))
	for _, de := range des {
		names = append(names, de.Name())
	}
	return names, nil
}
