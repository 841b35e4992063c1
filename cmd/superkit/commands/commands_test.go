package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	configPath, logLevel, store = "", "", nil
	root := newRoot()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	p := filepath.Join(dir, "superkit.yaml")
	body := "log:\n  level: warn\njournal:\n  path: " + filepath.Join(dir, "runs.db") + "\n" + `
heartbeat:
  interval_s: 0
lessons:
  13_lcd1602:
    delay_ms: 1
    loops: 1
    messages: ["hello\nkit"]
`
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestList(t *testing.T) {
	out, err := execute(t, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "01_LED")
	assert.Contains(t, out, "13_LCD1602")
}

func TestBoardSim(t *testing.T) {
	out, err := execute(t, "board", "--sim")
	require.NoError(t, err)
	assert.Contains(t, out, "model:   simulator")
	assert.Contains(t, out, "gpio2..gpio27")
	assert.Contains(t, out, "shift_register")
}

func TestRunUnknownLesson(t *testing.T) {
	_, err := execute(t, "run", "99_Nope", "--sim")
	assert.ErrorContains(t, err, "unknown lesson")
}

func TestRunIsJournalled(t *testing.T) {
	cfg := writeConfig(t)

	out, err := execute(t, "--config", cfg, "run", "13_LCD1602", "--sim")
	require.NoError(t, err)
	assert.Contains(t, out, "13_LCD1602 started on a simulator\nhello\nkit\n")
	assert.Contains(t, out, "13_LCD1602 stopped")

	out, err = execute(t, "--config", cfg, "history", "--limit", "5")
	require.NoError(t, err)
	assert.Contains(t, out, "13_LCD1602")
	assert.Contains(t, out, "completed")
}

func TestBadConfigFailsEarly(t *testing.T) {
	p := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(p, []byte("log:\n  format: xml\n"), 0o644))
	_, err := execute(t, "--config", p, "list")
	assert.ErrorContains(t, err, "invalid config")
}

func TestOverrideClashingWithDefaultPin(t *testing.T) {
	p := filepath.Join(t.TempDir(), "clash.yaml")
	require.NoError(t, os.WriteFile(p, []byte("lessons:\n  02_btnandled:\n    button: 17\n"), 0o644))
	_, err := execute(t, "--config", p, "list")
	assert.ErrorContains(t, err, "gpio 17 used by both")
}
