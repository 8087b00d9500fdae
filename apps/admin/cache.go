package main

import (
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func (cli *commandLine) cacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or manage the response cache",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_ = cmd.Help()
			return errHelp
		},
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "stats",
			Short: "Print the cache statistics",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				st := cli.cache.Stats(cmd.Context())
				cli.printf("backend:      %s (enabled: %t)\n", st.Backend, st.Enabled)
				cli.printf("entries:      %s / %s\n", humanize.Comma(int64(st.TotalEntries)), humanize.Comma(int64(st.MaxEntries)))
				cli.printf("size:         %s / %s\n",
					humanize.IBytes(uint64(st.SizeMB*1024*1024)), humanize.IBytes(uint64(st.MaxSizeMB)*1024*1024))
				cli.printf("hit rate:     %.2f%% (%s hits, %s misses)\n",
					st.HitRatePercent, humanize.Comma(st.Hits), humanize.Comma(st.Misses))
				cli.printf("evictions:    %s\n", humanize.Comma(st.Evictions))
				cli.printf("default ttl:  %ds\n", st.DefaultTTLSeconds)
				return nil
			},
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Remove every cached response",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				if err := cli.cache.Clear(cmd.Context()); err != nil {
					return err
				}
				cli.printf("cache cleared\n")
				return nil
			},
		},
		&cobra.Command{
			Use:   "export PATH",
			Short: "Write a JSON backup of the cache to PATH",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				n, err := cli.cache.Export(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				cli.printf("exported %s entries to %s\n", humanize.Comma(int64(n)), args[0])
				return nil
			},
		},
	)
	return cmd
}
