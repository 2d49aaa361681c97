package commands

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mattthias/cfacter/pkg/config"
	"github.com/mattthias/cfacter/pkg/external"
	"github.com/mattthias/cfacter/pkg/facts"
	"github.com/mattthias/cfacter/pkg/resolvers"
	"github.com/mattthias/cfacter/pkg/telemetry"
	"github.com/mattthias/cfacter/pkg/value"
)

var (
	// Global flags
	configPath   string
	jsonOutput   bool
	yamlOutput   bool
	externalDirs []string
	debug        bool
	showStats    bool
	strict       bool
)

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "cfacter [fact...]",
		Short: "cfacter - System fact collection",
		Long: `cfacter collects facts about the local system: kernel, operating
system, memory, networking, processors and more.

Facts are resolved lazily and on demand. Resolution is driven by:
  - Built-in resolvers for the local platform
  - Custom fact scripts written in Starlark
  - Environment overrides (CFACTER_<name> variables)

With no arguments every known fact is resolved and printed. With fact
names as arguments only those facts are resolved.`,
		Example: `  # Print all facts
  cfacter

  # Print selected facts
  cfacter kernel operatingsystem

  # JSON output for automation
  cfacter --json

  # Load custom fact scripts
  cfacter --external-dir /etc/cfacter/facts.d`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCollect(cmd, args)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.Flags().BoolVar(&jsonOutput, "json", false, "output facts as JSON")
	rootCmd.Flags().BoolVar(&yamlOutput, "yaml", false, "output facts as YAML")
	rootCmd.Flags().StringSliceVar(&externalDirs, "external-dir", nil, "directory of custom fact scripts (repeatable)")
	rootCmd.Flags().BoolVar(&showStats, "stats", false, "print resolution statistics to stderr")
	rootCmd.Flags().BoolVar(&strict, "strict", false, "fail when a requested fact cannot be resolved")

	rootCmd.AddCommand(newVersionCommand(version, commit, buildDate))

	return rootCmd
}

func runCollect(cmd *cobra.Command, args []string) error {
	if jsonOutput && yamlOutput {
		return fmt.Errorf("--json and --yaml are mutually exclusive")
	}

	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	tc := cfg.Telemetry()
	if debug {
		tc.Logging.Level = "debug"
	}

	logger, err := telemetry.NewLogger(tc.Logging)
	if err != nil {
		return fmt.Errorf("configuring logging: %w", err)
	}
	logger = logger.WithRunID(uuid.New().String())

	metrics, err := telemetry.NewMetrics(tc.Metrics)
	if err != nil {
		return fmt.Errorf("configuring metrics: %w", err)
	}

	coll := facts.NewCollection(
		facts.WithLogger(logger.NewComponentLogger("collection").Zerolog()),
		facts.WithMetrics(metrics),
		facts.WithBlocklist(cfg.Blocklist),
	)

	for name, val := range cfg.Facts {
		coll.Add(name, value.String(val))
	}

	if err := resolvers.RegisterAll(coll); err != nil {
		logger.NewComponentLogger("resolvers").WithError(err).Warn("some built-in resolvers unavailable")
	}

	loader := external.NewLoader(logger.NewComponentLogger("external").Zerolog())
	dirs := append(append([]string(nil), cfg.ExternalDirs...), externalDirs...)
	for _, dir := range dirs {
		if _, err := loader.LoadDir(coll, dir); err != nil {
			return err
		}
	}

	out, err := collect(coll, args)
	if err != nil {
		return err
	}

	if err := printFacts(cmd, out, args); err != nil {
		return err
	}

	if showStats {
		summary, err := metrics.Summary()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.ErrOrStderr(), summary)
	}
	return nil
}

// collect resolves the requested facts, or every known fact when no names
// are given, and returns them as an ordered map.
func collect(coll *facts.Collection, names []string) (*value.Map, error) {
	if len(names) == 0 {
		coll.ResolveAll()
		return coll.ToMap(), nil
	}

	out := value.NewMap()
	var missing []string
	for _, name := range names {
		v, ok := coll.Get(name)
		if !ok {
			missing = append(missing, name)
			continue
		}
		out.Put(name, v)
	}
	if strict && len(missing) > 0 {
		return nil, fmt.Errorf("could not resolve facts: %v", missing)
	}
	return out, nil
}

// printFacts renders the resolved facts. A single requested fact prints its
// bare value; everything else prints "name => value" lines, or JSON/YAML
// when asked.
func printFacts(cmd *cobra.Command, m *value.Map, requested []string) error {
	w := cmd.OutOrStdout()

	switch {
	case jsonOutput:
		data, err := json.MarshalIndent(m, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(w, string(data))
	case yamlOutput:
		data, err := yaml.Marshal(m)
		if err != nil {
			return err
		}
		fmt.Fprint(w, string(data))
	case len(requested) == 1:
		if v, ok := m.Get(requested[0]); ok {
			fmt.Fprintln(w, display(v))
		}
	default:
		for _, name := range m.Keys() {
			v, _ := m.Get(name)
			fmt.Fprintf(w, "%s => %s\n", name, display(v))
		}
	}
	return nil
}

// display renders a fact value for human output. Top-level strings print
// bare; composites use the canonical rendering.
func display(v value.Value) string {
	if s, ok := v.(value.String); ok {
		return string(s)
	}
	return v.String()
}
