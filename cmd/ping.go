package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check that the daemon is responding",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := connectClient()
		if err != nil {
			return err
		}
		defer client.Close()

		if err := client.Ping(); err != nil {
			return err
		}
		fmt.Println("pong")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(pingCmd)
}
