package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"inviter_bot/internal/infra/config"

	"github.com/sirupsen/logrus"
)

func TestConfigureFormats(t *testing.T) {
	var buf bytes.Buffer
	l := logrus.New()
	configure(l, &buf, &config.AppConfig{LogLevel: "debug", Environment: "production"})
	l.WithField("component", "test").Debug("hello")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected JSON output in production, got %q", buf.String())
	}
	if entry["msg"] != "hello" || entry["component"] != "test" {
		t.Fatalf("unexpected entry: %v", entry)
	}

	buf.Reset()
	configure(l, &buf, &config.AppConfig{LogLevel: "info", Environment: "development"})
	l.Info("plain")
	if !strings.Contains(buf.String(), `msg=plain`) {
		t.Fatalf("expected text output in development, got %q", buf.String())
	}
}

func TestConfigureInvalidLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	l := logrus.New()
	configure(l, &buf, &config.AppConfig{LogLevel: "chatty"})
	if l.GetLevel() != logrus.InfoLevel {
		t.Fatalf("expected info level, got %s", l.GetLevel())
	}
}
