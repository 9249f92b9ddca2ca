package provisioning

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/dblab/internal/config"
	"github.com/imamik/dblab/internal/state"
)

type stubPhase struct {
	name string
	err  error
	runs *[]string
}

func (p *stubPhase) Name() string { return p.name }

func (p *stubPhase) Provision(ctx *Context) error {
	*p.runs = append(*p.runs, p.name)
	return p.err
}

func newTestContext(t *testing.T) *Context {
	t.Helper()
	return NewContext(context.Background(), &config.ClusterConfig{Name: "demo"}, &config.Settings{}, state.NewStore(t.TempDir()))
}

func TestRunPhasesInOrder(t *testing.T) {
	ctx := newTestContext(t)

	var runs []string
	err := RunPhases(ctx, []Phase{
		&stubPhase{name: "first", runs: &runs},
		&stubPhase{name: "second", runs: &runs},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, runs)
}

func TestRunPhasesStopsOnFailure(t *testing.T) {
	ctx := newTestContext(t)

	var runs []string
	err := RunPhases(ctx, []Phase{
		&stubPhase{name: "first", err: errors.New("boom"), runs: &runs},
		&stubPhase{name: "second", runs: &runs},
	})
	require.Error(t, err)
	assert.ErrorContains(t, err, "first phase failed")
	assert.Equal(t, []string{"first"}, runs)
}
