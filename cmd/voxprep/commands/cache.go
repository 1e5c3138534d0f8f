package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/RyanBlaney/voxprep/audiocache"
	"github.com/RyanBlaney/voxprep/transcode"
)

func (a *app) newCache(ctx context.Context) (*audiocache.Cache, error) {
	decoder, err := transcode.New(a.config.Decoder, a.config.DecoderConfig())
	if err != nil {
		return nil, err
	}

	// Every file needs ffmpeg, so a missing binary fails before the walk
	if ff, ok := decoder.(*transcode.FFmpegDecoder); ok {
		if err := ff.CheckAvailability(ctx); err != nil {
			return nil, fmt.Errorf("%w: %v", audiocache.ErrPrecondition, err)
		}
	}

	return audiocache.NewCache(a.config.CacheConfig(), decoder)
}

func printBuildReport(cmd *cobra.Command, report *audiocache.BuildReport) {
	fmt.Fprintf(cmd.OutOrStdout(), "files: %d  written: %d  skipped: %d  failed: %d\n",
		report.Total, report.Written, report.Skipped, report.Failed)
}

func newBuildCacheCmd(a *app) *cobra.Command {
	var regenerate bool

	cmd := &cobra.Command{
		Use:   "build-cache",
		Short: "Decode, trim and cache every source file",
		Long: `Walk VOXPREP_AUDIO_DIR for files matching VOXPREP_AUDIO_PATTERN and write
one record per file below VOXPREP_CACHE_DIR/audio_cache_pkl.

Files that already have a record are skipped, so an interrupted run can be
resumed. Files that fail to decode are logged and skipped.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.config.RequireAudioDir(); err != nil {
				return err
			}

			cache, err := a.newCache(cmd.Context())
			if err != nil {
				return err
			}

			if regenerate {
				if err := cache.Reset(); err != nil {
					return err
				}
			}

			report, err := cache.Build(cmd.Context(), a.config.AudioDir)
			if err != nil {
				return err
			}
			printBuildReport(cmd, report)
			return nil
		},
	}

	cmd.Flags().BoolVar(&regenerate, "regenerate", false, "wipe the cache directory before building")
	return cmd
}

func newUpdateCacheCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "update-cache [dir]",
		Short: "Cache an additional source directory",
		Long: `Cache every source file below dir (default VOXPREP_EXTRA_AUDIO_DIR).
Existing records are left untouched.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := a.config.ExtraAudioDir
			if len(args) == 1 {
				dir = args[0]
			}
			if dir == "" {
				return fmt.Errorf("%w: no directory given and VOXPREP_EXTRA_AUDIO_DIR is unset", audiocache.ErrPrecondition)
			}

			cache, err := a.newCache(cmd.Context())
			if err != nil {
				return err
			}

			report, err := cache.Update(cmd.Context(), dir)
			if err != nil {
				return err
			}
			printBuildReport(cmd, report)
			return nil
		},
	}
}
