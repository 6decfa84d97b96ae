package cmd

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"cmux/internal/cmdlog"
	"cmux/internal/config"
	"cmux/internal/daemon"
	"cmux/internal/session"
	"cmux/internal/transcript"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Manage the cmux daemon",
	Long:  `The daemon owns the pseudo-console sessions and serves them to clients over the local endpoint.`,
}

var daemonRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run daemon in foreground",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := os.MkdirAll(config.DataDir(), 0o700); err != nil {
			return fmt.Errorf("create data dir: %w", err)
		}

		// Only one daemon may own the endpoint.
		lock := flock.New(config.LockPath())
		locked, err := lock.TryLock()
		if err != nil {
			return fmt.Errorf("acquire daemon lock: %w", err)
		}
		if !locked {
			return fmt.Errorf("another daemon is already running (lock %s)", config.LockPath())
		}
		defer lock.Unlock()

		cfg := config.Load()
		manager := session.NewManager(cfg.ScrollbackLines)
		commandLog := cmdlog.NewLog(config.LogsDir(), cfg.RetentionDays)
		transcripts := transcript.NewStore(config.TranscriptsDir(), cfg.RetentionDays)

		server := daemon.NewServer(config.SocketPath(), manager, commandLog, transcripts, cfg.Shell)
		if err := server.Start(); err != nil {
			return fmt.Errorf("failed to start: %w", err)
		}
		log.Printf("daemon listening on %s", server.SocketPath())

		go func() {
			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			<-sigCh
			log.Println("shutting down...")
			server.Close()
			lock.Unlock()
			os.Exit(0)
		}()

		return server.Accept()
	},
}

var daemonStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon status",
	RunE: func(cmd *cobra.Command, args []string) error {
		sockPath := config.SocketPath()
		if _, err := os.Stat(sockPath); err != nil {
			fmt.Printf("Endpoint: %s (not found)\n", sockPath)
			fmt.Println("Status: not running")
			return nil
		}
		fmt.Printf("Endpoint: %s (exists)\n", sockPath)

		client := daemon.NewClient(sockPath)
		if err := client.Connect(); err != nil {
			fmt.Println("Status: not responding")
			return nil
		}
		defer client.Close()

		if err := client.Ping(); err != nil {
			fmt.Printf("Status: error (%v)\n", err)
			return nil
		}
		fmt.Println("Status: running")

		infos, err := client.ListSessions()
		if err == nil {
			fmt.Printf("Sessions: %d\n", len(infos))
		}
		return nil
	},
}

func init() {
	daemonCmd.AddCommand(daemonRunCmd)
	daemonCmd.AddCommand(daemonStatusCmd)

	rootCmd.AddCommand(daemonCmd)
}

// connectClient dials the daemon, spawning it when absent.
func connectClient() (*daemon.Client, error) {
	client := daemon.NewClient(config.SocketPath())
	if err := client.ConnectOrStart(); err != nil {
		return nil, err
	}
	return client, nil
}
