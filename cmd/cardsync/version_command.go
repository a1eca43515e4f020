package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Lusbox/umasparkmaker/pkg/cardsync"
)

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print the cardsync version",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		Args:        cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "cardsync %s\n", cardsync.Version())
			return nil
		},
	}
}
