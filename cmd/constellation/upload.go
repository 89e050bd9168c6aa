package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/ubitquityx/constellation/clientcli"
	"github.com/ubitquityx/constellation/config"
)

var uploadSkipCheck bool

var uploadCmd = &cobra.Command{
	Use:   "upload <path>",
	Short: "Upload a file or directory",
	Long: `Upload a file or a directory to the cluster and print its CID.

Directories are uploaded recursively with every regular file below them.
Symbolic links are followed only when they point to a file inside the
directory.

Examples:
  constellation upload ./photo.jpg
  constellation upload -w ./site
  constellation upload --no-pin --exclude "**/*.tmp" ./build
  constellation upload -q ./data.json`,
	Args: cobra.ExactArgs(1),
	RunE: runUpload,
}

func init() {
	uploadCmd.Flags().BoolP("wrap", "w", false, "wrap the upload in a directory")
	uploadCmd.Flags().Bool("no-pin", false, "do not pin the content")
	uploadCmd.Flags().StringSlice("exclude", nil, "glob of paths to skip in directory uploads, may be repeated")
	uploadCmd.Flags().BoolVar(&uploadSkipCheck, "skip-check", false, "skip the connectivity check before uploading")
}

func runUpload(cmd *cobra.Command, args []string) error {
	path := args[0]
	ctx := cmd.Context()

	cfg, err := config.FromContext(ctx)
	if err != nil {
		return err
	}

	formatter := getFormatter()

	client, cleanup, err := buildClient(ctx, cfg, historyBestEffort)
	defer cleanup()
	if err != nil {
		_ = formatter.FormatError(os.Stderr, err)
		return reported(err)
	}

	_ = formatter.FormatUploadStart(os.Stdout, client.Endpoint(), path, cfg.Upload.Pin)

	// The check is advisory; the upload is attempted regardless.
	if !quiet && !uploadSkipCheck {
		if !jsonOutput {
			fmt.Println("Checking connection...")
		}
		if !client.CheckConnection(ctx).Reachable {
			_, _ = fmt.Fprintln(os.Stderr, "Warning: could not verify API connection, attempting upload anyway")
		}
	}

	report, err := client.Upload(ctx, clientcli.UploadOptions{
		Path:    path,
		Pin:     cfg.Upload.Pin,
		Wrap:    cfg.Upload.Wrap,
		Exclude: cfg.Upload.Exclude,
	})
	if err != nil {
		_ = formatter.FormatError(os.Stderr, err)
		return reported(err)
	}

	return formatter.FormatUpload(os.Stdout, report)
}
