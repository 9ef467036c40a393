package cmd

import (
	"log"

	"github.com/spf13/cobra"
	"github.com/tallyhq/tally/internal/config"
	"github.com/tallyhq/tally/internal/server"
	"github.com/tallyhq/tally/internal/store"
	"github.com/tallyhq/tally/internal/webhook"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		dbPath := cfg.DB
		if cmd.Flags().Changed("db") || dbPath == "" {
			dbPath = flagDB
		}
		addr := cfg.Addr
		if cmd.Flags().Changed("addr") || addr == "" {
			addr = serveAddr
		}

		st, err := store.Open(dbPath)
		if err != nil {
			return err
		}
		defer st.Close()

		dispatcher := webhook.NewDispatcher(cfg.WebhookURL, cfg.WebhookSecret, st)
		st.SetEventSink(dispatcher.Emit)
		if cfg.WebhookURL != "" {
			log.Printf("webhook delivery enabled: %s", cfg.WebhookURL)
		}

		srv := server.New(st, addr)
		log.Printf("listening on %s (db=%s)", addr, dbPath)
		return srv.ListenAndServe()
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8888", "Listen address")
	rootCmd.AddCommand(serveCmd)
}
