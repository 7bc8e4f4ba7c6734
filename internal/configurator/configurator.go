package configurator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kubeboot/kubeboot/internal/bootstrap"
	"github.com/kubeboot/kubeboot/internal/config"
	"github.com/kubeboot/kubeboot/internal/util/retry"
)

// Outcome is the result of configuring one host.
type Outcome struct {
	// Completed is the number of plan operations that have succeeded,
	// counting operations skipped because an earlier run already
	// completed them.
	Completed int

	// Artifacts holds values captured from operations with an Emit key.
	Artifacts map[string]string

	// FailedAt is the plan index of the failing operation, or -1.
	FailedAt int

	Err error
}

// Configurator executes operation plans against hosts. It is safe for
// concurrent use across distinct hosts; the worker fan-out runs one
// Configure call per goroutine.
type Configurator struct {
	Channels bootstrap.ChannelFactory
	Scripts  bootstrap.ScriptGenerator
	Run      *bootstrap.Run
	Observer bootstrap.Observer
	Timeouts *config.Timeouts
}

// Configure executes plan operations for host starting at startIndex,
// appending a record per operation to the host's log. Transport failures are
// retried with exponential backoff; a command that runs and exits nonzero is
// not retried. The first failure stops the plan.
func (c *Configurator) Configure(ctx context.Context, host bootstrap.Host, plan []Operation, startIndex int) Outcome {
	outcome := Outcome{
		Completed: startIndex,
		Artifacts: make(map[string]string),
		FailedAt:  -1,
	}

	var channel bootstrap.RemoteChannel
	openChannel := func() (bootstrap.RemoteChannel, error) {
		if channel != nil {
			return channel, nil
		}
		ch, err := c.Channels(host)
		if err != nil {
			return nil, &bootstrap.TransportError{Host: host.Name, Err: err}
		}
		channel = ch
		return channel, nil
	}

	for index := startIndex; index < len(plan); index++ {
		if err := ctx.Err(); err != nil {
			outcome.FailedAt = index
			outcome.Err = fmt.Errorf("configuration of %s cancelled: %w", host.Name, err)
			return outcome
		}

		op := plan[index]
		started := time.Now().UTC()
		attempts := 1

		var artifact string
		err := c.execute(ctx, host, op, openChannel, &attempts, &artifact)

		rec := bootstrap.Record{
			Index:      index,
			Operation:  op.Name,
			Kind:       op.Kind,
			Outcome:    bootstrap.OutcomeSucceeded,
			Attempts:   attempts,
			StartedAt:  started,
			FinishedAt: time.Now().UTC(),
		}
		if err != nil {
			rec.Outcome = bootstrap.OutcomeFailed
			rec.Error = err.Error()
		}
		c.Run.Append(host.Name, rec)
		bootstrap.RecordOperation(c.Run.ClusterName, op.Kind, rec.Outcome)
		c.Observer.Event(bootstrap.Event{
			Type:    bootstrap.EventOperation,
			Host:    host.Name,
			Message: fmt.Sprintf("%s: %s", op.Name, rec.Outcome),
			Fields:  map[string]string{"attempts": fmt.Sprintf("%d", attempts)},
		})

		if err != nil {
			outcome.FailedAt = index
			outcome.Err = err
			return outcome
		}
		if op.Emit != "" {
			outcome.Artifacts[op.Emit] = artifact
		}
		outcome.Completed = index + 1
	}

	return outcome
}

func (c *Configurator) execute(
	ctx context.Context,
	host bootstrap.Host,
	op Operation,
	openChannel func() (bootstrap.RemoteChannel, error),
	attempts *int,
	artifact *string,
) error {
	switch op.Kind {
	case bootstrap.OpScriptGenerate:
		return c.generateScript(op)
	case bootstrap.OpFileTransfer:
		return c.withRetry(ctx, attempts, func() error {
			channel, err := openChannel()
			if err != nil {
				return err
			}
			transferCtx, cancel := context.WithTimeout(ctx, c.Timeouts.FileTransfer)
			defer cancel()
			if err := channel.Upload(transferCtx, op.LocalPath, op.RemotePath, op.Recursive); err != nil {
				return err
			}
			return nil
		})
	case bootstrap.OpRemoteCommand:
		return c.withRetry(ctx, attempts, func() error {
			channel, err := openChannel()
			if err != nil {
				return err
			}
			result, err := channel.Execute(ctx, op.Command, c.Timeouts.RemoteCommand)
			if err != nil {
				return err
			}
			if result.ExitStatus != 0 {
				// The command ran and failed; retrying would rerun a
				// deterministic failure.
				return retry.Fatal(&bootstrap.RemoteCommandError{
					Host:       host.Name,
					Operation:  op.Name,
					ExitStatus: result.ExitStatus,
					Stderr:     result.Stderr,
				})
			}
			*artifact = strings.TrimSpace(result.Stdout)
			return nil
		})
	default:
		return fmt.Errorf("unknown operation kind %q", op.Kind)
	}
}

// generateScript renders a script into the local staging area. Local-only
// work is never retried.
func (c *Configurator) generateScript(op Operation) error {
	body, err := c.Scripts.Generate(op.ScriptKind, op.Params)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(op.OutputPath), 0o700); err != nil {
		return fmt.Errorf("failed to create staging directory: %w", err)
	}
	if err := os.WriteFile(op.OutputPath, []byte(body), 0o600); err != nil {
		return fmt.Errorf("failed to stage script: %w", err)
	}
	return nil
}

func (c *Configurator) withRetry(ctx context.Context, attempts *int, operation func() error) error {
	return retry.WithExponentialBackoff(ctx, operation,
		retry.WithMaxRetries(c.Timeouts.RetryMaxAttempts),
		retry.WithInitialDelay(c.Timeouts.RetryInitialDelay),
		retry.WithOnRetry(func(attempt int, err error) {
			*attempts = attempt + 1
			bootstrap.RecordRetry(c.Run.ClusterName)
		}),
	)
}
