package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ubitquityx/constellation"
	"github.com/ubitquityx/constellation/clientcli"
	"github.com/ubitquityx/constellation/config"
	"github.com/ubitquityx/constellation/database"
	"github.com/ubitquityx/constellation/transport"
)

// historyMode says how a command depends on the history store.
type historyMode int

const (
	historyOff historyMode = iota
	// historyBestEffort opens the store if it can and only warns otherwise.
	historyBestEffort
	historyRequired
)

// buildClient wires the transport, uploader and history store described by cfg.
// The returned cleanup must always be called.
func buildClient(ctx context.Context, cfg *config.Config, mode historyMode) (*clientcli.Client, func(), error) {
	noop := func() {}

	token, err := clientcli.ResolveToken(cfg.API.Key, cfg.API.KeyFile)
	if err != nil {
		return nil, noop, err
	}

	auth := transport.ResolveAuth(token, cfg.Username, cfg.Password)
	logger := slog.Default()

	tr := transport.New(auth,
		transport.WithTimeout(cfg.Transport.Timeout),
		transport.WithProbeTimeout(cfg.Transport.ProbeTimeout),
		transport.WithUserAgent("constellation/"+version),
		transport.WithLogger(logger),
	)

	uploader, err := constellation.NewUploader(cfg.API.URL, tr, constellation.WithLogger(logger))
	if err != nil {
		return nil, noop, err
	}

	logger.Debug("client configured", "url", uploader.BaseURL(), "auth", auth)

	opts := []clientcli.Option{
		clientcli.WithGateway(cfg.Gateway.URL),
		clientcli.WithLogger(logger),
	}

	cleanup := noop
	if mode != historyOff && cfg.History.Enabled {
		repo, closeRepo, connErr := database.Connect(ctx, cfg.History.Database())
		switch {
		case connErr == nil:
			opts = append(opts, clientcli.WithHistory(repo))
			cleanup = closeRepo
		case mode == historyRequired:
			return nil, noop, fmt.Errorf("open history: %w", connErr)
		default:
			logger.Warn("upload history unavailable", "type", cfg.History.Type, "error", connErr)
		}
	}

	client, err := clientcli.New(uploader, opts...)
	if err != nil {
		cleanup()
		return nil, noop, err
	}

	return client, cleanup, nil
}
