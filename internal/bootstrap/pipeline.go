package bootstrap

import (
	"fmt"
	"time"
)

// RunPhases executes all bootstrap phases sequentially with barrier
// semantics: a phase starts only after the previous one has fully completed.
//
// Cancellation is checked at each barrier. Operations already dispatched by
// a phase are allowed to finish, but no further phase is started; the run is
// persisted in its partial state before returning.
func RunPhases(ctx *Context, phases []Phase) error {
	start := time.Now()
	ctx.Observer.Printf("Starting bootstrap of %s with %d phases...", ctx.Config.ClusterName, len(phases))

	for i, phase := range phases {
		if err := ctx.Err(); err != nil {
			ctx.Persist()
			return fmt.Errorf("bootstrap cancelled before %s phase: %w", phase.Name(), err)
		}

		phaseStart := time.Now()
		ctx.Observer.Event(Event{
			Type:    EventPhaseStarted,
			Phase:   phase.Name(),
			Message: fmt.Sprintf("starting (%d/%d)", i+1, len(phases)),
		})

		if err := phase.Run(ctx); err != nil {
			ctx.Observer.Event(Event{Type: EventPhaseFailed, Phase: phase.Name(), Message: err.Error()})
			RecordPhase(ctx.Config.ClusterName, phase.Name(), "failure", time.Since(phaseStart).Seconds())
			ctx.Persist()
			return fmt.Errorf("%s phase failed: %w", phase.Name(), err)
		}

		elapsed := time.Since(phaseStart)
		ctx.Observer.Event(Event{
			Type:    EventPhaseCompleted,
			Phase:   phase.Name(),
			Message: fmt.Sprintf("completed in %v", elapsed.Round(time.Millisecond)),
		})
		RecordPhase(ctx.Config.ClusterName, phase.Name(), "success", elapsed.Seconds())
		ctx.Persist()
	}

	ctx.Observer.Printf("Bootstrap completed in %v", time.Since(start).Round(time.Millisecond))
	return nil
}
