package calibration

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestCheck(t *testing.T) {
	var buf bytes.Buffer
	v := Verifier{
		Expected: "calib_12788084448423163542",
		Logger:   slog.New(slog.NewTextHandler(&buf, nil)),
	}

	if !v.Check("calib_12788084448423163542") {
		t.Error("matching checksum reported as mismatch")
	}
	if buf.Len() != 0 {
		t.Errorf("match produced log output: %s", buf.String())
	}

	if v.Check("calib_0000000000000000000") {
		t.Error("mismatched checksum reported as match")
	}
	if !strings.Contains(buf.String(), "level=WARN") {
		t.Errorf("mismatch not logged as warning: %s", buf.String())
	}
}

func TestCheckNoExpectation(t *testing.T) {
	var buf bytes.Buffer
	v := Verifier{Logger: slog.New(slog.NewTextHandler(&buf, nil))}

	if !v.Check("calib_anything") {
		t.Error("empty expectation must pass")
	}
	if buf.Len() != 0 {
		t.Errorf("disabled check produced log output: %s", buf.String())
	}
}
