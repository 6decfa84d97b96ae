package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var historyCount int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent recorded commands",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := connectClient()
		if err != nil {
			return err
		}
		defer client.Close()

		entries, err := client.History(historyCount)
		if err != nil {
			return err
		}
		for _, e := range entries {
			exit := "-"
			if e.ExitCode != nil {
				exit = fmt.Sprintf("%d", *e.ExitCode)
			}
			fmt.Printf("%s\t%s\t%s\t%s\n", e.StartedAt.Format("15:04:05"), e.PaneID, exit, e.Command)
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyCount, "count", "n", 50, "number of entries to show")
	rootCmd.AddCommand(historyCmd)
}
