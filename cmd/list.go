package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List live panes",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := connectClient()
		if err != nil {
			return err
		}
		defer client.Close()

		infos, err := client.ListSessions()
		if err != nil {
			return err
		}
		if len(infos) == 0 {
			fmt.Println("no sessions")
			return nil
		}
		for _, info := range infos {
			title := info.Title
			if title == "" {
				title = "-"
			}
			fmt.Printf("%s\t%dx%d\t%s\t%s\n", info.PaneID, info.Cols, info.Rows, title, info.WorkingDirectory)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
}
