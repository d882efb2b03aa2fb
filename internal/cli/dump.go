package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"hill/internal/engine"
	"hill/internal/logger"
)

var dumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Print the node id, index key count and cluster metadata of a freshly opened store",
	RunE: func(cmd *cobra.Command, args []string) error {
		log := logger.New(io.Discard, logger.ERROR)

		store, err := engine.Open(storeOptions(cfg), log)
		if err != nil {
			return err
		}
		defer store.Close()

		entries, err := store.Range(nil, nil)
		if err != nil {
			return err
		}

		fmt.Printf("node: %d\n", store.NodeID)
		fmt.Printf("keys: %d\n", len(entries))
		store.Meta.Dump(cmd.OutOrStdout())
		return nil
	},
}
