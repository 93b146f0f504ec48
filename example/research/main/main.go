package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sicko7947/agentflow"
	"github.com/sicko7947/agentflow/engine"
	"github.com/sicko7947/agentflow/events"
	"github.com/sicko7947/agentflow/example/research"
	"github.com/sicko7947/agentflow/store"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	})

	ctx := context.Background()

	registry := research.NewRegistry()
	monitor := agentflow.NewMonitor(store.NewMemoryStore(), log.Logger)

	bus := events.NewGoChannelBus(log.Logger)
	defer bus.Close()

	if err := bus.SubscribeSteps(ctx, func(ctx context.Context, event *events.StepEvent) error {
		log.Info().
			Str("step_id", event.StepID).
			Str("state", string(event.State)).
			Msg("step event")
		return nil
	}); err != nil {
		log.Fatal().Err(err).Msg("failed to subscribe to step events")
	}

	wfEngine := engine.NewEngine(registry,
		engine.WithLogger(log.Logger),
		engine.WithMonitor(monitor),
		engine.WithNotifier(bus),
	)

	def := research.NewResearchWorkflow()

	result, err := wfEngine.ExecuteWorkflow(ctx, def, map[string]any{
		"topic": "workflow orchestration",
		"deep":  true,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("workflow aborted")
	}

	if !result.Success {
		for stepID, fault := range result.Errors {
			log.Error().Str("step_id", stepID).Str("code", fault.Code).Msg(fault.Message)
		}
		os.Exit(1)
	}

	fmt.Println(result.StepResults["write"]["report"])

	run, err := monitor.GetRun(ctx, result.RunID)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load run record")
	}
	log.Info().
		Str("run_id", run.RunID).
		Str("status", string(run.Status)).
		Float64("progress", run.Progress).
		Int("steps_executed", result.StepsExecuted).
		Int64("execution_time_ms", result.ExecutionTimeMs).
		Msg("run finished")
}
