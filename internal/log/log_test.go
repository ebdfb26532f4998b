package log

import (
	"testing"

	"github.com/sirupsen/logrus"
)

func TestFieldsPairs(t *testing.T) {
	f := fields("a", 1, "b", "two", 3, "skipped", "dangling")

	if len(f) != 2 {
		t.Fatalf("expected 2 fields, got %d (%v)", len(f), f)
	}
	if f["a"] != 1 {
		t.Errorf("expected a=1, got %v", f["a"])
	}
	if f["b"] != "two" {
		t.Errorf("expected b=two, got %v", f["b"])
	}
	if _, ok := f["dangling"]; ok {
		t.Error("dangling key without value should be ignored")
	}
}

func TestSetLevel(t *testing.T) {
	defer SetLevel(LevelInfo)

	SetLevel(LevelDebug)
	if !Logger().IsLevelEnabled(logrus.DebugLevel) {
		t.Error("debug should be enabled at debug level")
	}
	SetLevel(LevelError)
	if Logger().IsLevelEnabled(logrus.InfoLevel) {
		t.Error("info should be disabled at error level")
	}
}
