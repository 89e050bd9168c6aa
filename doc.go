// Package constellation uploads files and directories to an IPFS cluster over
// its HTTP add API and reports the resulting content identifier.
//
// # Key Components
//
//   - Uploader: resolves a path, builds the multipart request and decodes the result
//   - Transport: issues authenticated requests (see the transport package)
//   - ParseAddResponse: reduces the cluster's NDJSON add stream to its root entry
//   - HistoryRepo: optional local ledger of uploads (see the database package)
//
// # Errors
//
// Failures are reported with one of ErrNotFound, ErrInvalidTarget,
// ErrConnection (*ConnectionError), *HTTPError or ErrParse (*ParseError).
// Use errors.Is and errors.As to tell them apart. Nothing is retried.
//
// # Example Usage
//
//	client := transport.New(transport.BearerToken(token))
//	uploader, err := constellation.NewUploader("https://cluster.example/api", client)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	result, err := uploader.Upload(ctx, "site", constellation.UploadOptions{Pin: true})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(result.CID)
package constellation
