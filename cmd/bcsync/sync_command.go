package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cn3rd/bcsync/internal/pipeline"
	"github.com/cn3rd/bcsync/internal/session"
)

func newSyncCommand(configFlag *string, verboseFlag *bool) *cobra.Command {
	var (
		usernameFlag string
		cookiesFlag  string
		outputFlag   string
		formatFlag   string
		hiddenFlag   bool
		dryRunFlag   bool
	)

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Download everything in the collection that is not yet on disk",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, _, err := loadSettings(*configFlag)
			if err != nil {
				return err
			}

			if usernameFlag != "" {
				settings.Username = usernameFlag
			}
			if cookiesFlag != "" {
				settings.CookiesPath = cookiesFlag
			}
			if outputFlag != "" {
				settings.OutputDir = outputFlag
			}
			if formatFlag != "" {
				settings.Format = formatFlag
			}
			if hiddenFlag {
				settings.IncludeHidden = true
			}

			logger := newLogger(*verboseFlag)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			runner := pipeline.New(settings, session.NewFileStore(settings.CookiesPath), logger)
			runner.DryRun = dryRunFlag

			summary, err := runner.Run(ctx)
			if err != nil {
				return err
			}

			fmt.Println(renderSummary(summary))

			// Item-level failures are reported above but do not fail
			// the process; only fatal errors do.
			return ctx.Err()
		},
	}

	cmd.Flags().StringVarP(&usernameFlag, "username", "u", "", "Bandcamp fan username (overrides settings)")
	cmd.Flags().StringVar(&cookiesFlag, "cookies", "", "Path to the exported cookies JSON (overrides settings)")
	cmd.Flags().StringVarP(&outputFlag, "output", "o", "", "Output directory (overrides settings)")
	cmd.Flags().StringVarP(&formatFlag, "format", "f", "", "Preferred audio format, e.g. flac or mp3-320")
	cmd.Flags().BoolVar(&hiddenFlag, "hidden", false, "Include hidden collection items")
	cmd.Flags().BoolVar(&dryRunFlag, "dry-run", false, "Resolve download links without transferring files")

	return cmd
}
