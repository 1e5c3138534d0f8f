package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/RyanBlaney/voxprep/config"
	"github.com/RyanBlaney/voxprep/logging"
)

// app carries the state shared by subcommands once the root has loaded it
type app struct {
	config *config.Config
	logger logging.Logger
}

// NewRootCmd builds the command tree
func NewRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "voxprep",
		Short: "Speaker-embedding data preparation",
		Long: `voxprep - prepare raw speech for speaker identification models.

Source files are decoded, trimmed to their voiced region and cached as one
record per file. Cached records are then sampled into normalized per-speaker
train/test feature sets and merged into a single archive.

Configuration comes from the environment (VOXPREP_*) and an optional .env file.

Examples:
  # Cache a corpus laid out as <root>/<speaker>/<speaker>_<sentence>.wav
  VOXPREP_AUDIO_DIR=./wav48 VOXPREP_CACHE_DIR=./cache voxprep build-cache

  # Rebuild from scratch
  voxprep build-cache --regenerate

  # Generate the inputs of two speakers in parallel
  VOXPREP_TRAINING_SPEAKERS=p225,p226 VOXPREP_MULTI_THREADING=true voxprep generate-inputs`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load(cmd.Context())
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if zl, ok := a.logger.(*logging.ZapLogger); ok {
				_ = zl.Sync()
			}
		},
	}

	root.AddCommand(
		newBuildCacheCmd(a),
		newUpdateCacheCmd(a),
		newGenerateInputsCmd(a),
		newInferenceInputsCmd(a),
		newListCmd(a),
	)
	return root
}

// Execute runs the root command
func Execute(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}

func (a *app) load(ctx context.Context) error {
	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}

	logger, err := cfg.NewLogger()
	if err != nil {
		return err
	}
	logging.SetGlobalLogger(logger)

	a.config = cfg
	a.logger = logger.WithFields(logging.Fields{"component": "cli"})
	a.logger.Debug("Configuration loaded", logging.Fields{"config": cfg.String()})
	return nil
}
