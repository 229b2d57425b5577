package cmd

import (
	"github.com/spf13/cobra"

	"billsplit/libs/logging"
)

var RootCmd = &cobra.Command{
	Use:   "billsplit",
	Short: "settle a restaurant table's bill",
	Long:  `billsplit settles a table's accumulated orders: pay everything at once, split evenly between diners, or pay by named groups of items.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Setup()
	},
}

func init() {
	RootCmd.AddCommand(settleCommand())
	RootCmd.AddCommand(serverCommand())
	RootCmd.AddCommand(migrateCommand())
}
