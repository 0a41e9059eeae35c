package cmd

import (
	"fmt"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"narou2epub/cache"
	"narou2epub/model"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and clear the chapter cache",
}

var cacheListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cached works",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := newEnvironment(cmd)
		if err != nil {
			return err
		}
		store, err := env.openCache()
		if err != nil {
			return err
		}
		defer store.Close()

		works, err := store.Works(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to list cache: %w", err)
		}
		out := cmd.OutOrStdout()
		if len(works) == 0 {
			fmt.Fprintln(out, "Cache is empty")
			return nil
		}
		fmt.Fprintln(out, renderWorks(works))
		fmt.Fprintf(out, "Cache file: %s\n", store.Path())
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear [ncode]",
	Short: "Remove cached data of one work, or of every work",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := newEnvironment(cmd)
		if err != nil {
			return err
		}
		var id model.WorkID
		if len(args) == 1 {
			id = model.NormalizeWorkID(args[0])
		}
		return runClearCache(cmd, env, id)
	},
}

func init() {
	cacheCmd.AddCommand(cacheListCmd)
	cacheCmd.AddCommand(cacheClearCmd)
	RootCmd.AddCommand(cacheCmd)
}

func renderWorks(works []cache.WorkStats) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"Work", "Title", "Chapters", "Images", "Size", "Last fetch"})
	for _, w := range works {
		last := "-"
		if !w.LastFetched.IsZero() {
			last = humanize.Time(w.LastFetched)
		}
		tw.AppendRow(table.Row{
			w.WorkID.String(),
			text.Trim(w.Title, 40),
			strconv.Itoa(w.Chapters),
			strconv.Itoa(w.Images),
			humanize.Bytes(uint64(max(w.Bytes, 0))),
			last,
		})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 3, Align: text.AlignRight, AlignHeader: text.AlignLeft},
		{Number: 4, Align: text.AlignRight, AlignHeader: text.AlignLeft},
		{Number: 5, Align: text.AlignRight, AlignHeader: text.AlignLeft},
	})
	return tw.Render()
}
