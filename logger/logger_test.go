package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
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

func TestConfigureInvalidFormat(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")

	log := Logger()
	if err := log.Configure("info", "xml", "stdout", 0); err == nil {
		t.Fatalf("expected error for invalid format")
	}
}

func TestJSONRecordShape(t *testing.T) {
	log := Logger()
	var buf bytes.Buffer
	log.SetOutput(&buf)

	log.WithComponent("scheduler").WithFields(Fields{"signal": true}).Info("decision")

	var rec map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("decode record: %v (%s)", err, buf.String())
	}
	if rec["event"] != "decision" {
		t.Fatalf("unexpected event: %v", rec["event"])
	}
	if _, ok := rec["timestamp"]; !ok {
		t.Fatalf("timestamp missing: %v", rec)
	}
	if rec["signal"] != true || rec["component"] != "scheduler" {
		t.Fatalf("fields missing: %v", rec)
	}
}

func TestWrapperFrame(t *testing.T) {
	tests := []struct {
		frame runtime.Frame
		want  bool
	}{
		{runtime.Frame{Function: "github.com/sirupsen/logrus.(*Entry).Info", File: "entry.go"}, true},
		{runtime.Frame{Function: "cbtrader/logger.LogMetric", File: "logger.go"}, true},
		{runtime.Frame{Function: "cbtrader/internal/metrics.Init.func1.1", File: "metrics.go"}, true},
		{runtime.Frame{Function: "cbtrader/logger.TestWrapperFrame", File: "logger_test.go"}, false},
		{runtime.Frame{Function: "cbtrader/scheduler.(*Scheduler).Tick", File: "scheduler.go"}, false},
		{runtime.Frame{Function: "cbtrader/internal/metricsx.Run", File: "x.go"}, false},
	}
	for _, tt := range tests {
		if got := wrapperFrame(tt.frame); got != tt.want {
			t.Errorf("wrapperFrame(%s) = %v, want %v", tt.frame.Function, got, tt.want)
		}
	}
}

func TestCallerIsCallSite(t *testing.T) {
	log := Logger()
	var buf bytes.Buffer
	log.SetOutput(&buf)

	log.WithComponent("test").Info("caller")

	var rec map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("decode record: %v (%s)", err, buf.String())
	}
	file, _ := rec["file"].(string)
	if !strings.HasPrefix(file, "logger_test.go:") {
		t.Fatalf("caller = %q, want logger_test.go", file)
	}
}

func TestConfigureFileOutput(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")
	path := filepath.Join(t.TempDir(), "trader.log")

	log := Logger()
	if err := log.Configure("info", "json", path, 0); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	log.Info("logging started")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !bytes.Contains(data, []byte("logging started")) {
		t.Fatalf("log file missing record: %s", data)
	}
}

func TestLogMetricWithoutCloudWatch(t *testing.T) {
	log := Logger()
	var buf bytes.Buffer
	log.SetOutput(&buf)
	log.SetLevel(logrus.DebugLevel)

	log.WithComponent("executor").LogMetric("executor", "order_placed", int64(1), "", Fields{"side": "buy"})
	if !bytes.Contains(buf.Bytes(), []byte(`"metric":"order_placed"`)) {
		t.Fatalf("metric record missing: %s", buf.String())
	}
}
