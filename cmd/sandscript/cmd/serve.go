package cmd

import (
	"github.com/spf13/cobra"

	"github.com/nfrund/sandscript/internal/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP execution service",
	Run: func(cmd *cobra.Command, args []string) {
		s := server.New()
		addr := serveAddr
		if addr == "" {
			addr = s.Cfg.GetServerAddr()
		}
		s.Start(addr)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides SERVER_ADDR)")
	rootCmd.AddCommand(serveCmd)
}
