package main

import (
	"bytes"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/justyntemme/gomedian/pkg/max"
)

func flags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	addConfigFlags(fs)
	require.NoError(t, fs.Parse(args))
	return fs
}

func TestLoadConfigMergesFileAndFlags(t *testing.T) {
	cfg, err := loadConfig("testdata/demo.yaml", flags(t, "--workers=3"))
	require.NoError(t, err)

	assert.Equal(t, 48000.0, cfg.SampleRate)
	assert.Equal(t, 32, cfg.VectorSize)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, 3, cfg.Workers)
	require.Len(t, cfg.Steps, 14)
	assert.Equal(t, Step{Op: opNew, ID: "s", Class: "simp", Args: "tab"}, cfg.Steps[1])
	assert.Equal(t, []int{4, 4}, cfg.Steps[12].Dims)
}

func TestLoadConfigDefaultsWithoutFile(t *testing.T) {
	cfg, err := loadConfig("", flags(t))
	require.NoError(t, err)
	assert.Equal(t, 44100.0, cfg.SampleRate)
	assert.Equal(t, 64, cfg.VectorSize)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Empty(t, cfg.Steps)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := loadConfig(filepath.Join(t.TempDir(), "nope.yaml"), flags(t))
	require.Error(t, err)
	assert.Equal(t, max.CodeConfigInvalid, max.ErrorCode(err))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		rate   float64
		vector int
		steps  []Step
		ok     bool
	}{
		{"defaults", 44100, 64, nil, true},
		{"zero sample rate", 0, 64, nil, false},
		{"negative vector size", 44100, -1, nil, false},
		{"unknown op", 44100, 64, []Step{{Op: "jump"}}, false},
		{"new without class", 44100, 64, []Step{{Op: opNew, ID: "x"}}, false},
		{"send without selector", 44100, 64, []Step{{Op: opSend, ID: "x"}}, false},
		{"connect without target", 44100, 64, []Step{{Op: opConnect, ID: "x"}}, false},
		{"negative advance", 44100, 64, []Step{{Op: opAdvance, Ms: -1}}, false},
		{"matrix without dims", 44100, 64, []Step{{Op: opMatrix, ID: "x", Planes: 1}}, false},
		{"empty buffer", 44100, 64, []Step{{Op: opBuffer, Name: "b", Channels: 1}}, false},
		{"complete steps", 44100, 64, []Step{
			{Op: opNew, ID: "x", Class: "simp"},
			{Op: opFree, ID: "x"},
		}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Config{SampleRate: tt.rate, VectorSize: tt.vector, Steps: tt.steps}.Validate()
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, max.CodeConfigInvalid, max.ErrorCode(err))
		})
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	configFile = ""
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRunDemoScenario(t *testing.T) {
	out, err := execute(t, "run", "--config", "testdata/demo.yaml")
	require.NoError(t, err)

	for _, line := range []string{
		"buffer tab: 1 x 8",
		"new s: simp",
		"[s] from go 7 inlet 0",
		"advance 20ms: 1 clock(s) fired",
		"[s] clocked",
		"s out0: list 1 12 foo",
		"s out1: float 0.25",
		"s foo = 0.5",
		"h gain = 1",
		"h signal 0: first 2 last 2",
		"h signal 1: first 1 last 1",
		"j scale: set",
		"j matrix: 50 50 50 50",
		"free s",
	} {
		assert.Contains(t, out, line+"\n")
	}
}

func TestRunStopsAtFailingStep(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
steps:
  - op: new
    id: a
    class: simp
  - op: send
    id: b
    selector: bang
`), 0o600))

	out, err := execute(t, "run", "--config", path)
	require.Error(t, err)
	assert.Equal(t, max.CodeScenarioFailed, max.ErrorCode(err))
	assert.Contains(t, out, "new a: simp")
	assert.Contains(t, out, "free a")
}

func TestRunRejectsUnknownExternal(t *testing.T) {
	_, err := execute(t, "run", "--externals", "simp,nope")
	require.Error(t, err)
	assert.Equal(t, max.CodeConfigInvalid, max.ErrorCode(err))
}

func TestClassesListsBundledExternals(t *testing.T) {
	out, err := execute(t, "classes")
	require.NoError(t, err)
	assert.Contains(t, out, "CLASS")
	assert.Regexp(t, `hello_dsp~\s+msp`, out)
	assert.Regexp(t, `jit_median_scalebias\s+jitter`, out)
	assert.Regexp(t, `simp\s+max`, out)
}

func TestServeMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	stop, addr, err := serveMetrics("127.0.0.1:0", reg, zap.NewNop())
	require.NoError(t, err)
	defer stop()

	resp, err := http.Get("http://" + addr + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "go_goroutines")
}
