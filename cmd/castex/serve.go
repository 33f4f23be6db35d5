package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"podcast-search/pkg/search"
	"podcast-search/pkg/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the search API over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer closeStore(st)

		engine := search.NewEngine(st, search.NewParser(cfg.Search.RichGrammar))
		n, err := engine.Rebuild(ctx)
		if err != nil {
			return fmt.Errorf("build index: %w", err)
		}
		zap.L().Info("search index built", zap.Int("documents", n))

		addr := serveAddr
		if addr == "" {
			addr = cfg.Server.Addr()
		}
		return server.Serve(ctx, addr, server.NewRouter(engine, st))
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default server.host:server.port)")
	rootCmd.AddCommand(serveCmd)
}
