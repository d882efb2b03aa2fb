package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"hill/internal/engine"
	"hill/internal/logger"
)

var recoverCmd = &cobra.Command{
	Use:   "recover",
	Short: "Force a crash-recovery pass over this node's arena and report the result",
	RunE: func(cmd *cobra.Command, args []string) error {
		log := logger.New(io.Discard, logger.INFO)

		store, err := engine.Open(storeOptions(cfg), log)
		if err != nil {
			return err
		}
		defer store.Close()

		// Open already runs recovery once on an existing arena; this
		// second pass exercises spec.md §8 scenario 6's idempotence
		// invariant directly from the CLI.
		store.Alloc.Recover()

		fmt.Println("recovery pass complete")
		return nil
	},
}
