package bootstrap

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kubeboot/kubeboot/internal/config"
)

// stubPhase records its execution and optionally fails or cancels the run.
type stubPhase struct {
	name string
	run  func(ctx *Context) error
}

func (p *stubPhase) Name() string           { return p.name }
func (p *stubPhase) Run(ctx *Context) error { return p.run(ctx) }

func newPipelineContext(ctx context.Context) *Context {
	bctx := NewContext(ctx, &config.Config{ClusterName: "demo"}, nil, nil, nil, nil)
	bctx.Run = NewRun("demo", Topology{ControlPlanes: 1, Workers: 1})
	return bctx
}

func TestRunPhasesExecutesInOrder(t *testing.T) {
	var order []string
	phase := func(name string) Phase {
		return &stubPhase{name: name, run: func(*Context) error {
			order = append(order, name)
			return nil
		}}
	}

	err := RunPhases(newPipelineContext(context.Background()),
		[]Phase{phase("first"), phase("second"), phase("third")})

	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second", "third"}, order)
}

func TestRunPhasesStopsAtFirstFailure(t *testing.T) {
	var order []string
	boom := errors.New("boom")

	phases := []Phase{
		&stubPhase{name: "first", run: func(*Context) error {
			order = append(order, "first")
			return nil
		}},
		&stubPhase{name: "second", run: func(*Context) error {
			order = append(order, "second")
			return boom
		}},
		&stubPhase{name: "third", run: func(*Context) error {
			order = append(order, "third")
			return nil
		}},
	}

	err := RunPhases(newPipelineContext(context.Background()), phases)

	require.Error(t, err)
	assert.True(t, errors.Is(err, boom))
	assert.Contains(t, err.Error(), "second phase failed")
	assert.Equal(t, []string{"first", "second"}, order, "no phase runs after a failure")
}

func TestRunPhasesChecksCancellationAtBarrier(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var order []string

	phases := []Phase{
		&stubPhase{name: "first", run: func(*Context) error {
			order = append(order, "first")
			cancel()
			return nil
		}},
		&stubPhase{name: "second", run: func(*Context) error {
			order = append(order, "second")
			return nil
		}},
	}

	err := RunPhases(newPipelineContext(ctx), phases)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "cancelled before second phase")
	assert.Equal(t, []string{"first"}, order)
}
