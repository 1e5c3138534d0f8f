package commands

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/RyanBlaney/voxprep/audiocache"
	"github.com/RyanBlaney/voxprep/features"
	"github.com/RyanBlaney/voxprep/inputs"
	"github.com/RyanBlaney/voxprep/logging"
	"github.com/RyanBlaney/voxprep/storage"
)

func (a *app) newGenerator(speakers []string) (*inputs.Generator, error) {
	index, err := audiocache.NewIndex(a.config.CacheDir)
	if err != nil {
		return nil, err
	}
	if index.Len() == 0 {
		return nil, fmt.Errorf("%w: no cached records below %s, run build-cache first", audiocache.ErrPrecondition, a.config.CacheDir)
	}

	extractor, err := features.NewMFCCExtractor(a.config.SampleRate, features.DefaultMFCCConfig())
	if err != nil {
		return nil, err
	}

	cfg := a.config.InputsConfig()
	if len(speakers) > 0 {
		cfg.Speakers = speakers
	}
	return inputs.NewGenerator(cfg, index, extractor)
}

func newGenerateInputsCmd(a *app) *cobra.Command {
	var (
		speakers  []string
		noPublish bool
	)

	cmd := &cobra.Command{
		Use:   "generate-inputs",
		Short: "Build per-speaker train/test features and the unified archive",
		Long: `Sample every cached speaker (or --speaker) into normalized train and test
features, write VOXPREP_CACHE_DIR/inputs/<speaker>.msgpack and merge all of them
into VOXPREP_CACHE_DIR/full_inputs.msgpack.zst.

Only speakers in VOXPREP_TRAINING_SPEAKERS are generated when it is set.
Speakers that already have an inputs file are skipped. When VOXPREP_S3_BUCKET
is set the archive is uploaded afterwards.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			gen, err := a.newGenerator(speakers)
			if err != nil {
				return err
			}

			report, err := gen.StartGeneration(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "speakers: %d  written: %d  cached: %d  not allowed: %d  failed: %d\n",
				report.Speakers, report.Written, report.SkippedCached, report.SkippedNotAllowed, report.Failed)
			fmt.Fprintf(out, "archive: %s (%d speakers)\n", report.ArchivePath, report.ArchiveSpeakers)

			if noPublish || !a.config.S3Enabled() {
				return nil
			}

			publisher, err := storage.NewS3Publisher(cmd.Context(), a.config.S3Config())
			if err != nil {
				return err
			}
			url, err := publisher.Publish(cmd.Context(), report.ArchivePath)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "published: %s\n", url)
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&speakers, "speaker", nil, "generate only these speakers (repeatable)")
	cmd.Flags().BoolVar(&noPublish, "no-publish", false, "skip the S3 upload even when a bucket is configured")
	return cmd
}

func newInferenceInputsCmd(a *app) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "inference-inputs <speaker>",
		Short: "Build normalized features of one speaker for inference",
		Long: `Sample all of a speaker's cached records, normalize them with their own
statistics and write the feature matrices to --output as msgpack.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			speaker := args[0]

			gen, err := a.newGenerator(nil)
			if err != nil {
				return err
			}

			feats, err := gen.GenerateForInference(cmd.Context(), speaker)
			if err != nil {
				return err
			}

			if output == "" {
				output = speaker + "_inference" + inputs.InputsExt
			}
			err = audiocache.WriteAtomic(output, func(w io.Writer) error {
				return msgpack.NewEncoder(w).Encode(feats)
			})
			if err != nil {
				return err
			}

			a.logger.Info("Wrote inference inputs", logging.Fields{
				"speaker":  speaker,
				"matrices": len(feats),
				"path":     output,
			})
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d matrices -> %s\n", speaker, len(feats), output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default <speaker>_inference.msgpack)")
	return cmd
}
