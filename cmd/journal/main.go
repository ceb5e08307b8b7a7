package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	chunkpkg "github.com/skade/drossel-journal/internal/chunk"
	cfgpkg "github.com/skade/drossel-journal/internal/config"
	"github.com/skade/drossel-journal/internal/journal"
	"github.com/skade/drossel-journal/internal/keys"
	pebblestore "github.com/skade/drossel-journal/internal/storage/pebble"
	logpkg "github.com/skade/drossel-journal/pkg/log"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "journal",
		Short:        "Durable FIFO journal CLI",
		Long:         "journal manages a durable FIFO queue persisted in an ordered key-value store. The CLI is a thin caller over the journal library.",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().String("data-dir", "", "Journal directory (or JOURNAL_DATA_DIR / config file)")
	rootCmd.PersistentFlags().String("config", "", "Path to JSON config file")
	rootCmd.PersistentFlags().String("fsync", "", "Fsync mode: always|interval|never (default always)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug|info|warn|error")
	rootCmd.PersistentFlags().String("log-format", "", "Log format: text|json")

	rootCmd.AddCommand(
		newPushCommand(),
		newPopCommand(),
		newPeekCommand(),
		newLenCommand(),
		newStatCommand(),
		newCompactCommand(),
		newChunkCommand(),
	)
	return rootCmd
}

// loadConfig merges defaults, config file, environment, and flags, in
// that order of precedence (later wins).
func loadConfig(cmd *cobra.Command) (cfgpkg.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := cfgpkg.Load(path)
	if err != nil {
		return cfgpkg.Config{}, err
	}
	cfgpkg.FromEnv(&cfg)
	if v, _ := cmd.Flags().GetString("data-dir"); v != "" {
		cfg.DataDir = v
	}
	if v, _ := cmd.Flags().GetString("fsync"); v != "" {
		cfg.Fsync = v
	}
	if v, _ := cmd.Flags().GetString("log-level"); v != "" {
		cfg.LogLevel = v
	}
	if v, _ := cmd.Flags().GetString("log-format"); v != "" {
		cfg.LogFormat = v
	}
	if cfg.DataDir == "" {
		return cfgpkg.Config{}, errors.New("data dir required: --data-dir, JOURNAL_DATA_DIR, or config file")
	}
	return cfg, nil
}

func newLogger(cfg cfgpkg.Config) logpkg.Logger {
	level, err := logpkg.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logpkg.InfoLevel
	}
	var formatter logpkg.Formatter = &logpkg.TextFormatter{}
	if cfg.LogFormat == "json" {
		formatter = &logpkg.JSONFormatter{}
	}
	logger := logpkg.NewLogger(
		logpkg.WithLevel(level),
		logpkg.WithFormatter(formatter),
	)
	// Pebble logs through the standard library.
	logpkg.RedirectStdLog(logger)
	return logger
}

func openJournal(cmd *cobra.Command) (*journal.Journal, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	mode, err := cfg.FsyncMode()
	if err != nil {
		return nil, err
	}
	return journal.Open(cfg.DataDir, journal.Options{
		Fsync:         mode,
		FsyncInterval: cfg.FsyncInterval(),
		Logger:        newLogger(cfg),
	})
}

// readPayload resolves the payload argument: a literal, "-" for stdin, or
// --file.
func readPayload(cmd *cobra.Command, args []string) ([]byte, error) {
	if file, _ := cmd.Flags().GetString("file"); file != "" {
		return os.ReadFile(file)
	}
	if len(args) == 1 {
		if args[0] == "-" {
			return io.ReadAll(os.Stdin)
		}
		return []byte(args[0]), nil
	}
	return nil, errors.New("payload required: an argument, '-' for stdin, or --file")
}

func newPushCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "push [payload]",
		Short: "Append a payload to the journal",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := readPayload(cmd, args)
			if err != nil {
				return err
			}
			j, err := openJournal(cmd)
			if err != nil {
				return err
			}
			defer j.Close()
			id, err := j.Push(payload)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}
	cmd.Flags().String("file", "", "Read payload from file instead of argument")
	return cmd
}

func newPopCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pop",
		Short: "Remove and print the oldest entry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			count, _ := cmd.Flags().GetInt("count")
			if count < 1 {
				count = 1
			}
			j, err := openJournal(cmd)
			if err != nil {
				return err
			}
			defer j.Close()
			for i := 0; i < count; i++ {
				val, ok, err := j.Pop()
				if err != nil {
					return err
				}
				if !ok {
					if i == 0 {
						return errors.New("journal is empty")
					}
					break
				}
				cmd.OutOrStdout().Write(val)
				fmt.Fprintln(cmd.OutOrStdout())
			}
			return nil
		},
	}
	cmd.Flags().Int("count", 1, "Number of entries to pop")
	return cmd
}

func newPeekCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "peek",
		Short: "Print the oldest entry without removing it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			j, err := openJournal(cmd)
			if err != nil {
				return err
			}
			defer j.Close()
			val, ok, err := j.Peek()
			if err != nil {
				return err
			}
			if !ok {
				return errors.New("journal is empty")
			}
			cmd.OutOrStdout().Write(val)
			fmt.Fprintln(cmd.OutOrStdout())
			return nil
		},
	}
}

func newLenCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "len",
		Short: "Print the number of entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			j, err := openJournal(cmd)
			if err != nil {
				return err
			}
			defer j.Close()
			fmt.Fprintln(cmd.OutOrStdout(), j.Len())
			return nil
		},
	}
}

func newStatCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stat",
		Short: "Print cursor state and audit it against the live key set",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			j, err := openJournal(cmd)
			if err != nil {
				return err
			}
			defer j.Close()
			live, auditErr := j.Audit()
			fmt.Fprintf(cmd.OutOrStdout(), "len:\t%d\nreserved:\t%d\nlive:\t%d\n", j.Len(), j.Reserved(), live)
			if auditErr != nil {
				return auditErr
			}
			fmt.Fprintln(cmd.OutOrStdout(), "audit:\tok")
			return nil
		},
	}
}

func newCompactCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "compact",
		Short: "Compact the journal's queue key range",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			j, err := openJournal(cmd)
			if err != nil {
				return err
			}
			defer j.Close()
			lo, hi := keys.SpaceBounds(keys.Queue)
			return j.Store().CompactRange(lo, hi)
		},
	}
}

func newChunkCommand() *cobra.Command {
	chunkCmd := &cobra.Command{Use: "chunk", Short: "Chunk collection operations"}

	openChunks := func(cmd *cobra.Command) (*journal.Journal, *chunkpkg.Store, error) {
		j, err := openJournal(cmd)
		if err != nil {
			return nil, nil, err
		}
		s, err := chunkpkg.Open(j.Store())
		if err != nil {
			_ = j.Close()
			return nil, nil, err
		}
		return j, s, nil
	}

	putCmd := &cobra.Command{
		Use:   "put [payload]",
		Short: "Store a chunk, printing its id",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := readPayload(cmd, args)
			if err != nil {
				return err
			}
			j, s, err := openChunks(cmd)
			if err != nil {
				return err
			}
			defer j.Close()
			id, err := s.Put(payload)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}
	putCmd.Flags().String("file", "", "Read payload from file instead of argument")

	getCmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Print a chunk by id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid chunk id %q", args[0])
			}
			j, s, err := openChunks(cmd)
			if err != nil {
				return err
			}
			defer j.Close()
			val, err := s.Get(id)
			if err != nil {
				if errors.Is(err, pebblestore.ErrNotFound) {
					return fmt.Errorf("chunk %d not found", id)
				}
				return err
			}
			cmd.OutOrStdout().Write(val)
			fmt.Fprintln(cmd.OutOrStdout())
			return nil
		},
	}

	rmCmd := &cobra.Command{
		Use:   "rm <id>",
		Short: "Delete a chunk by id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid chunk id %q", args[0])
			}
			j, s, err := openChunks(cmd)
			if err != nil {
				return err
			}
			defer j.Close()
			return s.Delete(id)
		},
	}

	lenCmd := &cobra.Command{
		Use:   "len",
		Short: "Print the number of chunks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			j, s, err := openChunks(cmd)
			if err != nil {
				return err
			}
			defer j.Close()
			n, err := s.Len()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), n)
			return nil
		},
	}

	chunkCmd.AddCommand(putCmd, getCmd, rmCmd, lenCmd)
	return chunkCmd
}
