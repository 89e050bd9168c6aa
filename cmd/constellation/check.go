package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/ubitquityx/constellation"
	"github.com/ubitquityx/constellation/config"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check that the cluster API is reachable",
	Long: `Probe the cluster identity endpoint and report whether it answered.

Exits with status 5 when the cluster could not be reached.`,
	Args: cobra.NoArgs,
	RunE: runCheck,
}

func runCheck(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, err := config.FromContext(ctx)
	if err != nil {
		return err
	}

	client, cleanup, err := buildClient(ctx, cfg, historyOff)
	defer cleanup()
	if err != nil {
		return err
	}

	result := client.CheckConnection(ctx)
	if err := getFormatter().FormatCheck(os.Stdout, result); err != nil {
		return err
	}

	if !result.Reachable {
		return reported(fmt.Errorf("%w: %s", constellation.ErrConnection, result.Endpoint))
	}
	return nil
}
