package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cn3rd/bcsync/internal/bandcamp"
	"github.com/cn3rd/bcsync/internal/fetch"
	"github.com/cn3rd/bcsync/internal/session"
)

func newListCommand(configFlag *string, verboseFlag *bool) *cobra.Command {
	var hiddenFlag bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the releases in the collection without downloading",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, _, err := loadSettings(*configFlag)
			if err != nil {
				return err
			}
			if err := settings.Validate(); err != nil {
				return err
			}
			if hiddenFlag {
				settings.IncludeHidden = true
			}

			logger := newLogger(*verboseFlag)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			sess, err := session.New(session.NewFileStore(settings.CookiesPath), logger)
			if err != nil {
				return err
			}

			policy := fetch.Policy{
				MaxAttempts: settings.DownloadMaxAttempts,
				Cooldown:    settings.RetryCooldown(),
				Exponent:    settings.RetryExponent,
				Jitter:      settings.RetryJitter,
			}
			fetcher := fetch.New(sess, policy, settings.RequestPause(), logger)
			client := bandcamp.NewClient(fetcher, logger)

			items, err := client.Releases(ctx, settings.Username, settings.IncludeHidden)
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(items))
			for _, item := range items {
				rows = append(rows, []string{item.ID, item.Artist, item.Title})
			}
			fmt.Println(renderTable([]string{"ID", "Artist", "Title"}, rows))
			fmt.Printf("%d release(s) in collection\n", len(items))

			return nil
		},
	}

	cmd.Flags().BoolVar(&hiddenFlag, "hidden", false, "Include hidden collection items")

	return cmd
}
