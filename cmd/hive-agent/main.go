/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/carverauto/satellitehive/pkg/agent"
	"github.com/carverauto/satellitehive/pkg/config"
	"github.com/carverauto/satellitehive/pkg/lifecycle"
	"github.com/carverauto/satellitehive/pkg/version"
)

type flags struct {
	configPath string
	serverURL  string
	token      string
	agentID    string
	idFile     string
	name       string
	shell      string
	tags       []string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	f := &flags{}

	root := &cobra.Command{
		Use:          "hive-agent",
		Short:        "Satellite agent that keeps a host connected to its hive",
		Version:      version.GetFullVersion(),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), f, cmd)
		},
	}

	fs := root.Flags()
	fs.StringVarP(&f.configPath, "config", "c", "", "Path to agent config file (JSON or YAML)")
	fs.StringVar(&f.serverURL, "server", os.Getenv("HIVE_SERVER_URL"), "Hive agent endpoint, e.g. wss://hive.example.com/ws/agent")
	fs.StringVar(&f.token, "token", os.Getenv("HIVE_AGENT_TOKEN"), "Enrollment or satellite token")
	fs.StringVar(&f.agentID, "id", os.Getenv("HIVE_AGENT_ID"), "Satellite id assigned by the hive")
	fs.StringVar(&f.idFile, "id-file", os.Getenv("HIVE_AGENT_ID_FILE"), "File that stores the assigned satellite id")
	fs.StringVar(&f.name, "name", os.Getenv("HIVE_AGENT_NAME"), "Display name (defaults to the hostname)")
	fs.StringVar(&f.shell, "shell", "", "Shell for terminal sessions (defaults to $SHELL)")
	fs.StringSliceVar(&f.tags, "tag", nil, "Tag to report to the hive (repeatable)")

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the agent version",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Println(version.GetFullVersion())
		},
	})

	return root
}

func run(ctx context.Context, f *flags, cmd *cobra.Command) error {
	cfg, err := loadConfig(ctx, f, cmd)
	if err != nil {
		return err
	}

	log, err := lifecycle.CreateComponentLogger(ctx, "hive-agent", cfg.Logging)
	if err != nil {
		return err
	}

	defer func() {
		if err := lifecycle.ShutdownLogger(); err != nil {
			log.Error().Err(err).Msg("Error shutting down logger")
		}
	}()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().
		Str("version", version.GetFullVersion()).
		Str("server", cfg.ServerURL).
		Str("name", cfg.Name).
		Msg("Starting satellite agent")

	return agent.New(cfg, log).Run(ctx)
}

// loadConfig reads the optional file, then lets explicitly set flags and
// the environment override it.
func loadConfig(ctx context.Context, f *flags, cmd *cobra.Command) (*agent.Config, error) {
	cfg := &agent.Config{}

	if f.configPath != "" {
		if err := config.NewFileConfigLoader(nil).Load(ctx, f.configPath, cfg); err != nil {
			return nil, err
		}
	}

	override := func(name, value string, dst *string) {
		if value != "" && (cmd.Flags().Changed(name) || *dst == "") {
			*dst = value
		}
	}

	override("server", f.serverURL, &cfg.ServerURL)
	override("token", f.token, &cfg.Token)
	override("id", f.agentID, &cfg.AgentID)
	override("id-file", f.idFile, &cfg.IDFile)
	override("name", f.name, &cfg.Name)
	override("shell", f.shell, &cfg.Shell)

	if len(f.tags) > 0 {
		cfg.Tags = f.tags
	}

	if cfg.Name == "" {
		cfg.Name, _ = os.Hostname()
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}
