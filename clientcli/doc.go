// Package clientcli is the host-program layer of the constellation CLI.
//
// It wraps a constellation.Uploader with the pieces a command line tool needs:
// named connection profiles, the local upload history ledger, display links
// for uploaded content and human or JSON output.
//
// # Basic Usage
//
//	uploader, err := constellation.NewUploader(apiURL, transport.New(transport.BearerToken(token)))
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	client, err := clientcli.New(uploader, clientcli.WithHistory(repo))
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	report, err := client.Upload(ctx, clientcli.UploadOptions{Path: "./site", Pin: true})
//
// # Profile Configuration
//
//	profiles, err := clientcli.LoadOrEmpty(clientcli.DefaultProfilesPath())
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	profile, err := profiles.GetProfile("production")
//
// # Output Formatting
//
//	formatter := clientcli.NewFormatter(jsonOutput, quiet)
//	formatter.FormatUpload(os.Stdout, report)
package clientcli
