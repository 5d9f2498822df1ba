package debug

import (
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/justyntemme/gomedian/pkg/max/simhost"
)

func TestConsoleLoggerRoutesByLevel(t *testing.T) {
	h := simhost.New()
	log := NewConsoleLogger(h, zapcore.InfoLevel).With(zap.String("class", "simp"))

	log.Debug("hidden")
	log.Info("created", zap.Int("inlets", 3))
	log.Error("dropped")

	lines := h.Console()
	require.Len(t, lines, 2)
	assert.False(t, lines[0].Error)
	assert.True(t, strings.HasPrefix(lines[0].Text, "info"))
	assert.Contains(t, lines[0].Text, "created")
	assert.Contains(t, lines[0].Text, `"class": "simp"`)
	assert.Contains(t, lines[0].Text, `"inlets": 3`)
	assert.True(t, lines[1].Error)
	assert.Contains(t, lines[1].Text, "dropped")
	assert.False(t, strings.HasSuffix(lines[1].Text, "\n"))
}

func TestPackageLogger(t *testing.T) {
	assert.NotNil(t, Logger())
	h := simhost.New()
	SetLogger(NewConsoleLogger(h, zapcore.DebugLevel))
	defer SetLogger(nil)

	Logger().Warn("careful")
	require.Len(t, h.Console(), 1)
	assert.Contains(t, h.Console()[0].Text, "careful")
}

func TestParseLevel(t *testing.T) {
	l, err := ParseLevel("warn")
	require.NoError(t, err)
	assert.Equal(t, zapcore.WarnLevel, l)
	_, err = ParseLevel("loud")
	assert.Error(t, err)
}

func gathered(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	mfs, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			match := true
			for _, lp := range m.GetLabel() {
				if want, ok := labels[lp.GetName()]; ok && want != lp.GetValue() {
					match = false
				}
			}
			if !match {
				continue
			}
			switch {
			case m.GetCounter() != nil:
				return m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				return m.GetGauge().GetValue()
			case m.GetHistogram() != nil:
				return float64(m.GetHistogram().GetSampleCount())
			}
		}
	}
	return 0
}

func TestProfilerMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	p := NewProfiler(reg)

	p.ClassRegistered()
	p.InstanceCreated("simp")
	p.InstanceCreated("simp")
	p.InstanceFreed("simp")
	p.Message("simp", "bang")
	p.MatrixCalc("jit_op", nil)
	p.MatrixCalc("jit_op", errors.New("bad"))

	m := p.Block("hello_dsp~")
	m.Stop(m.Start())
	m.Stop(m.Start())

	assert.Equal(t, 1.0, gathered(t, reg, "gomedian_class_registrations_total", nil))
	assert.Equal(t, 1.0, gathered(t, reg, "gomedian_live_instances", map[string]string{"class": "simp"}))
	assert.Equal(t, 1.0, gathered(t, reg, "gomedian_messages_total", map[string]string{"selector": "bang"}))
	assert.Equal(t, 1.0, gathered(t, reg, "gomedian_matrix_calcs_total", map[string]string{"result": ResultError}))
	assert.Equal(t, 2.0, gathered(t, reg, "gomedian_perform_blocks_total", nil))
	assert.Equal(t, 2.0, gathered(t, reg, "gomedian_perform_duration_seconds", nil))
}

func TestZeroBlockMeterIsInert(t *testing.T) {
	var m BlockMeter
	m.Stop(m.Start())
	assert.NotPanics(t, func() { NewProfiler(nil).Block("x").Stop(m.Start()) })
}
