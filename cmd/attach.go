package cmd

import (
	"encoding/base64"
	"fmt"
	"os"
	"sync"

	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"cmux/internal/daemon"
)

// detachKey ends an attach session (Ctrl-Q).
const detachKey = 0x11

var attachCmd = &cobra.Command{
	Use:   "attach <paneId>",
	Short: "Attach the terminal to a pane",
	Long:  `Attach connects stdin/stdout to a pane. The pane is created if it does not exist and survives detach; press Ctrl-Q to detach.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		paneID := args[0]

		if !isatty.IsTerminal(os.Stdin.Fd()) {
			return fmt.Errorf("attach requires a terminal")
		}

		client, err := connectClient()
		if err != nil {
			return err
		}
		defer client.Close()

		cols, rows, err := termSize()
		if err != nil {
			cols, rows = 80, 24
		}

		output := termenv.NewOutput(os.Stdout)
		done := make(chan struct{})
		var once sync.Once
		finish := func() { once.Do(func() { close(done) }) }
		client.OnEvent = func(evt daemon.Event) {
			if evt.PaneID != paneID {
				return
			}
			switch evt.Type {
			case daemon.EventOutput:
				if data, err := base64.StdEncoding.DecodeString(evt.Data); err == nil {
					os.Stdout.Write(data)
				}
			case daemon.EventTitleChanged:
				output.SetWindowTitle(evt.Data)
			case daemon.EventExited:
				finish()
			}
		}

		info, err := client.CreateSession(paneID, cols, rows, "", "")
		if err != nil {
			return fmt.Errorf("create session: %w", err)
		}
		if info.IsExisting {
			fmt.Fprintf(os.Stderr, "re-attached to %s\r\n", paneID)
			// Repaint from the daemon's screen state.
			if text, err := client.Snapshot(paneID); err == nil {
				os.Stdout.WriteString(text)
			}
		}

		restore, err := rawMode()
		if err != nil {
			return fmt.Errorf("enter raw mode: %w", err)
		}
		defer restore()

		go func() {
			buf := make([]byte, 1024)
			for {
				n, err := os.Stdin.Read(buf)
				if err != nil {
					finish()
					return
				}
				if n == 1 && buf[0] == detachKey {
					finish()
					return
				}
				if err := client.Write(paneID, buf[:n]); err != nil {
					finish()
					return
				}
			}
		}()

		<-done
		fmt.Fprintf(os.Stderr, "\r\ndetached from %s\r\n", paneID)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(attachCmd)
}
