package logging

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestAllocatorForCellTagsEntries(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stdout)
	prev := allocatorLogger.GetLevel()
	defer allocatorLogger.SetLevel(prev)
	if err := SetAllocatorLogLevel("info"); err != nil {
		t.Fatalf("set level: %v", err)
	}

	AllocatorForCell(3).Info("pool built")

	out := buf.String()
	for _, want := range []string{"component=pucch_alloc", "cell_index=3", "pucch_msg=\"pool built\""} {
		if !strings.Contains(out, want) {
			t.Fatalf("log line missing %q: %s", want, out)
		}
	}
}

func TestAllocatorLoggerDefaultsToWarn(t *testing.T) {
	if got := GetAllocatorLogger().Logger.GetLevel(); got != logrus.WarnLevel {
		t.Fatalf("allocator logger level %v, want warn", got)
	}
	if err := SetAllocatorLogLevel("loud"); err == nil {
		t.Fatalf("expected invalid level to be rejected")
	}
}
