package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/DaanHessen/measures-tui/internal/audio"
	"github.com/DaanHessen/measures-tui/internal/audio/ebitenaudio"
	"github.com/DaanHessen/measures-tui/internal/engine"
	"github.com/DaanHessen/measures-tui/internal/exhibit"
	"github.com/DaanHessen/measures-tui/internal/store"
	"github.com/DaanHessen/measures-tui/internal/ui"
	"github.com/DaanHessen/measures-tui/internal/util"
)

var version = "0.1.0-alpha"

func main() {
	// Load .env file if it exists (ignore error if file doesn't exist)
	_ = godotenv.Load()

	cfg, err := util.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	root := &cobra.Command{
		Use:           "measures",
		Short:         "Measures: a terminal walk through the temple and its gates",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), cfg)
		},
	}
	pf := root.PersistentFlags()
	pf.StringVar(&cfg.DSN, "dsn", cfg.DSN, "Database DSN (postgres://... or sqlite://path)")
	root.Flags().StringVar(&cfg.ExhibitPath, "exhibit", cfg.ExhibitPath, "Exhibit YAML file (built-in exhibit if empty)")
	root.Flags().StringVar(&cfg.Theme, "theme", cfg.Theme, "Theme: obsidian|crystal|marble")
	root.Flags().BoolVar(&cfg.ReducedMotion, "reduced-motion", cfg.ReducedMotion, "Skip animations and land on stills")
	root.Flags().StringVar(&cfg.StartPath, "start", cfg.StartPath, "Route to open (last visited route if empty)")

	root.AddCommand(migrateCmd(&cfg), seenCmd(&cfg), versionCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, color.New(color.FgRed).Sprint("error: ")+err.Error())
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg util.Config) error {
	ex, err := exhibit.Load(cfg.ExhibitPath)
	if err != nil {
		return err
	}
	// Without storage every encounter counts as unseen and progress is not
	// kept; the exhibition still runs.
	var (
		flags    engine.FlagStore
		progress ui.ProgressRecorder
		start    = cfg.StartPath
	)
	if err := migrateUp(ctx, cfg.DSN); err != nil {
		log.Printf("migrations failed, running without storage: %v", err)
	} else if db, err := store.Open(ctx, cfg); err != nil {
		log.Printf("failed to open database, running without storage: %v", err)
	} else {
		defer db.Close()
		repo := store.NewProgressRepo(db)
		flags, progress = store.NewVisitRepo(db), repo
		if start == "" {
			if last, ok, err := repo.LastRoute(ctx); err != nil {
				log.Printf("last route unavailable: %v", err)
			} else if ok {
				start = last
			}
		}
	}

	bus := audio.New(opener(cfg, ex), audio.WithVolumes(ex.Audio.BaseVolume, ex.Audio.DuckedVolume), audio.WithRule(audio.PrefixRule(ex.Audio.Toned...)))
	defer bus.Close()

	return ui.Run(ctx, ui.Options{
		Exhibit:  ex,
		Config:   cfg,
		Flags:    flags,
		Progress: progress,
		Bus:      bus,
		Start:    start,
	})
}

// opener picks the ambient backend. A relative source resolves against the
// exhibit file's directory.
func opener(cfg util.Config, ex exhibit.Exhibit) audio.Opener {
	if cfg.AudioBackend == "silent" || ex.Audio.Source == "" {
		return nil
	}
	src := ex.Audio.Source
	if !filepath.IsAbs(src) && cfg.ExhibitPath != "" {
		src = filepath.Join(filepath.Dir(cfg.ExhibitPath), src)
	}
	return ebitenaudio.Opener(src)
}

func migrateUp(ctx context.Context, dsn string) error {
	mig, err := store.NewMigrator(dsn)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := mig.Up(ctx); err != nil && err != store.ErrNoChange {
		return err
	}
	return nil
}

func migrateCmd(cfg *util.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back the visit schema",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := migrateUp(cmd.Context(), cfg.DSN); err != nil {
				return err
			}
			fmt.Println(color.New(color.FgGreen).Sprint("Migrations applied"))
			return nil
		},
	}, &cobra.Command{
		Use:   "down",
		Short: "Roll back the latest migration",
		RunE: func(cmd *cobra.Command, args []string) error {
			mig, err := store.NewMigrator(cfg.DSN)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			if err := mig.Down(ctx); err != nil && err != store.ErrNoChange {
				return err
			}
			fmt.Println(color.New(color.FgYellow).Sprint("Migrations rolled back"))
			return nil
		},
	})
	return cmd
}

func openStore(ctx context.Context, cfg util.Config) (*store.DB, error) {
	if err := migrateUp(ctx, cfg.DSN); err != nil {
		return nil, errors.Wrap(err, "migrations failed")
	}
	return store.Open(ctx, cfg)
}

func seenCmd(cfg *util.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seen",
		Short: "Inspect or clear the encounters already seen",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List seen encounters and the last visited route",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			db, err := openStore(ctx, *cfg)
			if err != nil {
				return err
			}
			defer db.Close()
			flags, err := store.NewVisitRepo(db).List(ctx)
			if err != nil {
				return err
			}
			if len(flags) == 0 {
				fmt.Println(color.New(color.FgHiBlack).Sprint("nothing seen yet"))
			}
			for _, f := range flags {
				fmt.Printf("%s  %s\n", color.New(color.FgHiMagenta).Sprintf("%-16s", f.Identity), f.SeenAt.Local().Format(time.RFC822))
			}
			if route, ok, err := store.NewProgressRepo(db).LastRoute(ctx); err == nil && ok {
				fmt.Printf("\nlast route %s\n", color.New(color.FgCyan).Sprint(route))
			}
			return nil
		},
	}, &cobra.Command{
		Use:   "reset [identity...]",
		Short: "Clear seen flags so encounters play in full again",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			db, err := openStore(ctx, *cfg)
			if err != nil {
				return err
			}
			defer db.Close()
			n, err := store.NewVisitRepo(db).Reset(ctx, args...)
			if err != nil {
				return err
			}
			fmt.Printf("cleared %s\n", color.New(color.FgYellow).Sprintf("%d flag(s)", n))
			return nil
		},
	})
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("measures", version)
		},
	}
}
