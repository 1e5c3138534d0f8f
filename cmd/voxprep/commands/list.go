package commands

import (
	"encoding/json"
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/RyanBlaney/voxprep/audiocache"
)

type speakerSummary struct {
	SpeakerID string   `json:"speaker_id"`
	Records   int      `json:"records"`
	Sentences []string `json:"sentences,omitempty"`
}

func newListCmd(a *app) *cobra.Command {
	var (
		format    string
		sentences bool
	)

	cmd := &cobra.Command{
		Use:   "list [speaker...]",
		Short: "Show the cached speakers",
		Long: `List the speakers found in the cache with their record counts.
With --sentences the records are loaded and their sentence ids listed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := audiocache.NewIndex(a.config.CacheDir)
			if err != nil {
				return err
			}

			ids := index.Speakers()
			if len(args) > 0 {
				ids = args
			}

			var meta audiocache.MetadataIndex
			if sentences {
				_, meta, err = index.Load(audiocache.NewSpeakerSet(ids...))
				if err != nil {
					return err
				}
			}

			summaries := make([]speakerSummary, 0, len(ids))
			for _, id := range ids {
				s := speakerSummary{SpeakerID: id, Records: len(index.Files(id))}
				for sentence := range meta[id] {
					s.Sentences = append(s.Sentences, sentence)
				}
				sort.Strings(s.Sentences)
				summaries = append(summaries, s)
			}

			out := cmd.OutOrStdout()
			switch format {
			case "json":
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(summaries)
			case "text":
				tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "SPEAKER\tRECORDS")
				for _, s := range summaries {
					fmt.Fprintf(tw, "%s\t%d\n", s.SpeakerID, s.Records)
					for _, sentence := range s.Sentences {
						fmt.Fprintf(tw, "  %s\t\n", sentence)
					}
				}
				return tw.Flush()
			default:
				return fmt.Errorf("unknown format %q", format)
			}
		},
	}

	cmd.Flags().StringVar(&format, "format", "text", "output format: text or json")
	cmd.Flags().BoolVar(&sentences, "sentences", false, "load records and list sentence ids")
	return cmd
}
