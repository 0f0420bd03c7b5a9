package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/oriys/logdemo/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleLines(t *testing.T) string {
	t.Helper()
	now := time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)
	var b strings.Builder
	for _, rec := range []*domain.Record{
		domain.NewStartupRecord(now, 3000, domain.ServiceName),
		domain.NewRequestRecord(now, "GET", "/error", "::1", "curl/8.0"),
		domain.NewSimulatedErrorRecord(now),
		domain.NewPeriodicRecord(now, domain.LevelDebug, 17.25, domain.ServiceName),
	} {
		line, err := rec.MarshalJSON()
		require.NoError(t, err)
		b.Write(line)
		b.WriteByte('\n')
	}
	return b.String()
}

func TestValidateStream_AllValid(t *testing.T) {
	var errOut bytes.Buffer
	report, err := validateStream(strings.NewReader(sampleLines(t)+"\n\n"), &errOut)
	require.NoError(t, err)

	assert.Equal(t, 4, report.Checked)
	assert.Zero(t, report.Invalid)
	assert.Equal(t, 1, report.Kinds[string(domain.KindStartup)])
	assert.Equal(t, 1, report.Kinds[string(domain.KindRequest)])
	assert.Equal(t, 1, report.Kinds[string(domain.KindSimulatedError)])
	assert.Equal(t, 1, report.Kinds[string(domain.KindPeriodic)])
	assert.Empty(t, errOut.String())
}

func TestValidateStream_ReportsBadLines(t *testing.T) {
	input := sampleLines(t) +
		`{"level":"info","msg":"no timestamp"}` + "\n" +
		`plain text` + "\n" +
		`{"timestamp":"2024-03-09T14:05:07.000Z","level":"warning"}` + "\n"

	var errOut bytes.Buffer
	report, err := validateStream(strings.NewReader(input), &errOut)
	require.NoError(t, err)

	assert.Equal(t, 7, report.Checked)
	assert.Equal(t, 3, report.Invalid)
	assert.Contains(t, errOut.String(), "line 5:")
	assert.Contains(t, errOut.String(), "line 6:")
	assert.Contains(t, errOut.String(), "line 7:")
}

func TestValidateCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(sampleLines(t)), 0o644))

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs([]string{"validate", path})
	defer rootCmd.SetArgs(nil)

	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "checked 4 records, 0 invalid")
	assert.Contains(t, out.String(), "KIND")
	assert.Contains(t, out.String(), "periodic")
}

func TestValidateCommand_JSONOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(sampleLines(t)), 0o644))

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"validate", "-o", "json", path})
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		_ = rootCmd.PersistentFlags().Set("output", "table")
	})

	require.NoError(t, rootCmd.Execute())

	var report validateReport
	require.NoError(t, json.Unmarshal(out.Bytes(), &report))
	assert.Equal(t, 4, report.Checked)
	assert.Zero(t, report.Invalid)
	assert.Equal(t, 1, report.Kinds["startup"])
}

func TestValidateCommand_Stdin(t *testing.T) {
	var out, errOut bytes.Buffer
	rootCmd.SetIn(strings.NewReader("not json\n"))
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs([]string{"validate"})
	defer rootCmd.SetArgs(nil)

	err := rootCmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 1 lines")
	assert.Contains(t, errOut.String(), "line 1:")
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"version"})
	defer rootCmd.SetArgs(nil)

	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "logdemo version dev")
}
