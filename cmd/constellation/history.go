package main

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/ubitquityx/constellation"
	"github.com/ubitquityx/constellation/clientcli"
	"github.com/ubitquityx/constellation/config"
)

var (
	historyLimit  int
	historyCursor string
	historyAll    bool
	historyCID    string
)

var historyCmd = &cobra.Command{
	Use:   "history [name-prefix]",
	Short: "List recorded uploads",
	Long: `List uploads recorded in the local history, newest first.

Examples:
  constellation history
  constellation history --limit 5
  constellation history site --all
  constellation history --cursor "eyJjcmVhdGVkX2F0Ijoi..."`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHistory,
}

var historyShowCmd = &cobra.Command{
	Use:   "show <cid>",
	Short: "Show the most recent upload of a CID",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "l", constellation.DefaultHistoryLimit, "max results per page")
	historyCmd.Flags().StringVar(&historyCursor, "cursor", "", "pagination cursor")
	historyCmd.Flags().BoolVar(&historyAll, "all", false, "fetch all pages")
	historyCmd.Flags().StringVar(&historyCID, "cid", "", "only uploads of this CID")

	historyCmd.AddCommand(historyShowCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := config.FromContext(ctx)
	if err != nil {
		return err
	}

	client, cleanup, err := buildClient(ctx, cfg, historyRequired)
	defer cleanup()
	if err != nil {
		return err
	}

	opts := clientcli.ListOptions{
		CID:    historyCID,
		Limit:  historyLimit,
		Cursor: historyCursor,
		All:    historyAll,
	}
	if len(args) > 0 {
		opts.NamePrefix = args[0]
	}

	page, err := client.History(ctx, opts)
	if err != nil {
		return err
	}

	return getFormatter().FormatHistory(os.Stdout, page)
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := config.FromContext(ctx)
	if err != nil {
		return err
	}

	client, cleanup, err := buildClient(ctx, cfg, historyRequired)
	defer cleanup()
	if err != nil {
		return err
	}

	rec, err := client.Lookup(ctx, args[0])
	if err != nil {
		return err
	}

	return getFormatter().FormatHistory(os.Stdout, &constellation.HistoryPage{Items: []constellation.HistoryRecord{rec}})
}
