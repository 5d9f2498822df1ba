package bridge

import (
	"errors"
	"sync/atomic"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justyntemme/gomedian/pkg/external"
	"github.com/justyntemme/gomedian/pkg/max"
	"github.com/justyntemme/gomedian/pkg/max/simhost"
)

var (
	alphaRuns atomic.Int32
	failBeta  atomic.Bool
)

func init() {
	Register("alpha", func(m *external.Module) error {
		alphaRuns.Add(1)
		rt := m.Runtime()
		c := rt.ClassNew("alpha", func(*max.Symbol, []max.Atom) unsafe.Pointer { return nil }, nil, 64)
		if e := rt.ClassRegister(rt.Gensym(max.NamespaceBox), c); e != max.ErrNone {
			return e
		}
		return nil
	})
	Register("beta", func(*external.Module) error {
		if failBeta.Load() {
			return errors.New("beta is broken")
		}
		return nil
	})
}

func TestNamesKeepRegistrationOrder(t *testing.T) {
	assert.Equal(t, []string{"alpha", "beta"}, Names())
}

func TestRegisterPanicsOnMisuse(t *testing.T) {
	assert.Panics(t, func() { Register("alpha", func(*external.Module) error { return nil }) })
	assert.Panics(t, func() { Register("", func(*external.Module) error { return nil }) })
	assert.Panics(t, func() { Register("gamma", nil) })
	assert.Equal(t, []string{"alpha", "beta"}, Names())
}

func TestLoadSelectedExternals(t *testing.T) {
	h := simhost.New()
	before := alphaRuns.Load()

	m, err := Load(h, external.Config{}, "alpha")
	require.NoError(t, err)
	defer m.Close()
	assert.Equal(t, before+1, alphaRuns.Load())
	assert.NotZero(t, h.ClassFindByName(h.Gensym(max.NamespaceBox), h.Gensym("alpha")))

	_, err = Load(simhost.New(), external.Config{}, "alpha", "nope")
	require.Error(t, err)
	assert.Equal(t, max.CodeConfigInvalid, max.ErrorCode(err))
	assert.Equal(t, before+1, alphaRuns.Load())
}

func TestLoadReportsSetupFailure(t *testing.T) {
	failBeta.Store(true)
	defer failBeta.Store(false)

	_, err := Load(simhost.New(), external.Config{})
	require.Error(t, err)
	assert.ErrorContains(t, err, "beta is broken")
}

func TestMainExitsOnSetupFailure(t *testing.T) {
	code := -1
	cfg := external.Config{Exit: func(c int) { code = c }}

	m := Main(simhost.New(), cfg)
	m.Close()
	assert.Equal(t, -1, code)

	failBeta.Store(true)
	defer failBeta.Store(false)
	m = Main(simhost.New(), cfg)
	m.Close()
	assert.Equal(t, 1, code)
}
