// Command agentflow validates and plans workflow definitions and serves the
// run monitoring API.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sicko7947/agentflow"
	"github.com/sicko7947/agentflow/api"
	"github.com/sicko7947/agentflow/store"
	cli "github.com/urfave/cli/v3"
)

const defaultPort = 9091

func main() {
	cmd := &cli.Command{
		Name:                  "agentflow",
		Usage:                 "Validate, plan and monitor agent workflows",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Commands: []*cli.Command{
			validateCommand(),
			planCommand(),
			serveCommand(),
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}

	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
		With().
		Timestamp().
		Logger().
		Level(lvl)
}

// loadDefinition parses a workflow definition file, dispatching on extension.
func loadDefinition(path string) (*agentflow.WorkflowDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return agentflow.ParseDefinitionYAML(data)
	default:
		return agentflow.ParseDefinition(data)
	}
}

func validateCommand() *cli.Command {
	return &cli.Command{
		Name:      "validate",
		Usage:     "Validate a workflow definition file (JSON or YAML)",
		ArgsUsage: "<definition-file>",
		Action: func(ctx context.Context, command *cli.Command) error {
			if command.Args().Len() != 1 {
				return fmt.Errorf("expected exactly one definition file")
			}

			path := command.Args().First()
			def, err := loadDefinition(path)
			if err != nil {
				return err
			}

			if _, err := agentflow.BuildGraph(def); err != nil {
				return err
			}

			fmt.Printf("%s: ok (workflow %q version %s, %d steps)\n", path, def.Name, def.Version, len(def.Steps))
			return nil
		},
	}
}

func planCommand() *cli.Command {
	return &cli.Command{
		Name:      "plan",
		Usage:     "Print the parallel execution waves of a workflow definition",
		ArgsUsage: "<definition-file>",
		Action: func(ctx context.Context, command *cli.Command) error {
			if command.Args().Len() != 1 {
				return fmt.Errorf("expected exactly one definition file")
			}

			def, err := loadDefinition(command.Args().First())
			if err != nil {
				return err
			}

			graph, err := agentflow.BuildGraph(def)
			if err != nil {
				return err
			}

			fmt.Printf("workflow %q version %s\n", def.Name, def.Version)
			for i, wave := range graph.Waves() {
				fmt.Printf("  wave %d: %s\n", i, strings.Join(wave, ", "))
			}
			return nil
		},
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the run monitoring API",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:    "table",
				Usage:   "DynamoDB table holding execution records",
				Sources: cli.EnvVars("AGENTFLOW_TABLE"),
			},
			&cli.BoolFlag{
				Name:  "memory",
				Usage: "Use an in-memory store instead of DynamoDB",
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			logger := newLogger(command.String("log-level"))

			var backing agentflow.ExecutionStore
			if command.Bool("memory") {
				backing = store.NewMemoryStore()
			} else {
				table := command.String("table")
				if table == "" {
					return fmt.Errorf("either --table or --memory is required")
				}

				client, err := store.NewDynamoDBClient(ctx)
				if err != nil {
					return err
				}
				backing = store.NewDynamoDBStore(client, table)
			}

			monitor := agentflow.NewMonitor(backing, logger)

			logger.Info().Int("port", command.Int("port")).Msg("starting monitoring API")

			// Read-only deployment: no engine, submission routes stay off
			a := api.NewAPI(logger, nil, monitor)
			return a.Start(command.Int("port"))
		},
	}
}
