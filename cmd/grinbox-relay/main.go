// Command grinbox-relay runs the federated slate relay: the inbound
// connection server, the broker adapter, and the federation forwarder.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "grinbox-relay",
	Short: "grinbox-relay is a federated, end-to-end-encrypted slate relay",
	Long: `grinbox-relay accepts long-lived client connections, authenticates them
against a server-issued challenge, and relays signed slate envelopes between
subscribers, either by durable store-and-forward through a broker or by
federating to a peer relay when the recipient's home domain is not local.`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	// Subcommands register themselves in serve.go.
}
