package cli

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/nonlocal/indexd/internal/catalogmodel"
	"github.com/nonlocal/indexd/internal/catalogstore"
	"github.com/nonlocal/indexd/internal/config"
	"github.com/nonlocal/indexd/internal/gateway"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the local media gateway over HTTP.",
	Long: `serve starts indexd's byte-range-capable HTTP gateway
(spec §4.7): /thumbnail/{cas_id} is served from the data directory's
thumbnails folder, and /file/{library_id}/{entry_id} is resolved through
the catalog, with range requests answered as 206 Partial Content.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	// The real catalog is out of scope (spec §1); serve runs against an
	// empty in-memory store that nothing in this process fills, so a
	// well-formed /file request finds no entry and answers "object" not
	// found, matching the demo-CLI
	// scope the rest of this module operates at.
	store := catalogstore.NewMemStore()

	gw := gateway.New(cfg.DataDirectory, store)

	logger := config.NewLogger("serve")
	logger.Info("media gateway listening", "address", cfg.GatewayAddress)

	if err := http.ListenAndServe(cfg.GatewayAddress, gw.Handler()); err != nil {
		return catalogmodel.IOError(fmt.Sprintf("gateway listen on %s", cfg.GatewayAddress), err)
	}
	return nil
}
