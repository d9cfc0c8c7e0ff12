package logger

import (
	"os"
	"testing"
)

func TestWithComponent(t *testing.T) {
	log := Logger()
	entry := log.WithComponent("test")
	if v, ok := entry.Entry.Data["component"]; !ok || v != "test" {
		t.Fatalf("component field missing: %v", entry.Entry.Data)
	}
}

func TestConfigureInvalidLevel(t *testing.T) {
	// Ensure environment variables do not override the provided level
	t.Setenv("LOG_LEVEL", "")

	log := Logger()
	if err := log.Configure("invalid", "json", "stdout", 0); err == nil {
		t.Fatalf("expected error for invalid level")
	}
}

func TestConfigureTextFormat(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")

	log := Logger()
	if err := log.Configure("debug", "text", "stderr", 0); err != nil {
		t.Fatalf("configure: %v", err)
	}
}

func TestRecordChannel(t *testing.T) {
	RecordChannelMessage("test_channel", 42)
	v, ok := channels.Load("test_channel")
	if !ok {
		t.Fatal("channel stat not recorded")
	}
	cs := v.(*channelStat)
	if cs.messages < 1 || cs.bytes < 42 {
		t.Fatalf("unexpected stats: %+v", cs)
	}
	os.Unsetenv("LOG_LEVEL")
}
