package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"streamd/internal/app"
	"streamd/internal/config"
	"streamd/internal/index"
	"streamd/internal/stream"
)

func main() {
	godotenv.Load()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and creates an App. The caller must defer
// a.Close(). operation identifies the CLI command being run (e.g. "Run",
// "Share").
func newApp(operation string) (*app.App, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	a, err := app.NewApp(cfg, operation)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}

	return a, nil
}

var rootCmd = &cobra.Command{
	Use:   "streamd",
	Short: "Share local files as content-addressed tickets",
}

// init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg := config.NewConfig(defaults["data_dir"])

		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Data Dir: %s\n", defaults["data_dir"])
		fmt.Println("Add watch roots under [watch] to start indexing.")
		return nil
	},
}

// run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the sharing daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Run")
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := a.Transcoder().Check(ctx); err != nil {
			a.Logger().Warn("ffmpeg unavailable, streaming will fail", "error", err)
		}

		if _, err := a.StartDaemon(false); err != nil {
			return err
		}

		<-ctx.Done()
		return nil
	},
}

// share command
var shareCmd = &cobra.Command{
	Use:   "share PATH",
	Short: "Share a file or folder and print its ticket",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Share")
		if err != nil {
			return err
		}
		defer a.Close()

		ticket, err := a.Share(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("sharing %s: %w", args[0], err)
		}

		fmt.Println(ticket)
		return nil
	},
}

// list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List indexed files",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("List")
		if err != nil {
			return err
		}
		defer a.Close()

		idx, err := a.OpenIndex()
		if err != nil {
			return err
		}

		records, err := idx.ListAll()
		if err != nil {
			return err
		}
		if len(records) == 0 {
			fmt.Println("No files indexed.")
			return nil
		}

		for _, m := range records {
			fmt.Printf("%s  %10d  %-24s  %s\n", shortHash(m.Hash), m.Size, m.MIMEType, m.Path)
		}
		return nil
	},
}

// info command
var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show node identity and storage details",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Info")
		if err != nil {
			return err
		}
		defer a.Close()

		id, err := a.NodeIdentity()
		if err != nil {
			return fmt.Errorf("loading node identity: %w", err)
		}

		idx, err := a.OpenIndex()
		if err != nil {
			return err
		}
		records, err := idx.ListAll()
		if err != nil {
			return err
		}

		cfg := a.Config()
		relay := cfg.Node.RelayURL
		if relay == "" {
			relay = "(none)"
		}

		fmt.Printf("Node ID:   %s\n", id)
		fmt.Printf("Data Dir:  %s\n", cfg.DataDir)
		fmt.Printf("Index:     %s (%d files)\n", a.IndexPath(), len(records))
		fmt.Printf("Listen:    %s\n", cfg.Node.Listen)
		fmt.Printf("Relay:     %s\n", relay)
		fmt.Printf("Watching:  %d root(s)\n", len(cfg.Watch.Roots))
		return nil
	},
}

// ticket command
var ticketCmd = &cobra.Command{
	Use:   "ticket TICKET",
	Short: "Decode a share ticket",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := stream.DecodeTicket(args[0])
		if err != nil {
			return fmt.Errorf("decoding ticket: %w", err)
		}

		relay := t.RelayURL
		if relay == "" {
			relay = "(none)"
		}

		fmt.Printf("Name:     %s\n", t.Name)
		fmt.Printf("Hash:     %s\n", t.Hash)
		fmt.Printf("Node:     %s\n", t.NodeID)
		fmt.Printf("Relay:    %s\n", relay)
		fmt.Printf("Created:  %s\n", time.Unix(t.CreatedAt, 0).UTC().Format("2006-01-02 15:04:05"))
		return nil
	},
}

// compact command
var compactCmd = &cobra.Command{
	Use:   "compact",
	Short: "Compact the index",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Compact")
		if err != nil {
			return err
		}
		defer a.Close()

		idx, err := a.OpenIndex()
		if err != nil {
			return err
		}
		if err := idx.Compact(); err != nil {
			return fmt.Errorf("compacting index: %w", err)
		}

		fmt.Println("Index compacted.")
		return nil
	},
}

// backup command
var backupCmd = &cobra.Command{
	Use:   "backup DEST",
	Short: "Write a compressed index snapshot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Backup")
		if err != nil {
			return err
		}
		defer a.Close()

		idx, err := a.OpenIndex()
		if err != nil {
			return err
		}
		if err := index.WriteBackup(idx, args[0]); err != nil {
			return fmt.Errorf("backing up index: %w", err)
		}

		fmt.Printf("Index backed up to %s\n", args[0])
		return nil
	},
}

// restore command
var restoreCmd = &cobra.Command{
	Use:   "restore SRC",
	Short: "Restore the index from a snapshot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Restore")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := index.RestoreBackup(args[0], a.IndexPath()); err != nil {
			return fmt.Errorf("restoring index: %w", err)
		}

		fmt.Printf("Index restored to %s\n", a.IndexPath())
		return nil
	},
}

// stream command
var streamCmd = &cobra.Command{
	Use:   "stream HASH",
	Short: "Transcode an indexed file to stdout or a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")

		a, err := newApp("Stream")
		if err != nil {
			return err
		}
		defer a.Close()

		d, err := a.StartDaemon(true)
		if err != nil {
			return err
		}

		rc, err := d.OpenStream(cmd.Context(), stream.Hash(args[0]))
		if err != nil {
			if errors.Is(err, stream.ErrFileNotFound) {
				return fmt.Errorf("no indexed file for hash %s", args[0])
			}
			return err
		}
		defer rc.Close()

		out := io.Writer(os.Stdout)
		if output != "" {
			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("creating output file: %w", err)
			}
			defer f.Close()
			out = f
		}

		n, err := io.Copy(out, rc)
		if err != nil {
			return fmt.Errorf("streaming: %w", err)
		}
		if output != "" {
			fmt.Printf("Wrote %d bytes to %s\n", n, output)
		}
		return nil
	},
}

// shortHash truncates a hash for display.
func shortHash(h stream.Hash) string {
	s := h.String()
	if len(s) > 12 {
		return s[:12]
	}
	return s
}

func init() {
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(shareCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(ticketCmd)
	rootCmd.AddCommand(compactCmd)
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(restoreCmd)
	rootCmd.AddCommand(streamCmd)
	streamCmd.Flags().StringP("output", "o", "", "Write output to a file instead of stdout")
}
