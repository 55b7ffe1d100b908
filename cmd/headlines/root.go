package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/bryan-buckman/headlines/internal/config"
	"github.com/bryan-buckman/headlines/internal/feed"
	"github.com/bryan-buckman/headlines/internal/logger"
	"github.com/bryan-buckman/headlines/internal/model"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// cli carries state shared by every subcommand.
type cli struct {
	cfgFile string
	verbose bool
	cfg     *config.Config
	logger  *slog.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:   "headlines",
		Short: "Browse top headlines and keep favorites offline",
		Long: `headlines fetches paged top headlines from NewsAPI (or a single RSS feed),
serves them to a local UI over a JSON API and keeps favorite articles in a
local database.

Example usage:
  headlines serve                          # Start the local API
  headlines top --country Kenya            # Print the first page of headlines
  headlines top --query election --pages 2 # Search
  headlines favorites list                 # Show saved favorites`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.init(cmd)
		},
	}

	root.PersistentFlags().StringVar(&c.cfgFile, "config", "", "config file (default is headlines.yaml)")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "verbose output")

	root.AddCommand(c.serveCmd(), c.topCmd(), c.favoritesCmd())
	return root
}

func (c *cli) init(cmd *cobra.Command) error {
	cfg, err := config.Load(c.cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	level := cfg.Log.Level
	if c.verbose {
		level = "debug"
	}
	c.cfg = cfg
	c.logger = logger.New(cmd.ErrOrStderr(), level, cfg.Log.Format)
	c.logger.Debug("configuration loaded",
		"source", cfg.Feed.Source,
		"database", cfg.Database.Driver,
		"page_size", cfg.Feed.PageSize,
	)
	return nil
}

func (c *cli) serveCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the headlines API",
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = c.cfg.Server.Addr
			}
			a, err := newApp(c.cfg, c.logger)
			if err != nil {
				return err
			}
			defer a.Close()

			srv := a.server(c.logger)
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() { errCh <- srv.Start(addr) }()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}
			c.logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	return cmd
}

type favoriteChecker interface {
	IsFavorite(ctx context.Context, key string) (bool, error)
}

// favoriteMark returns the table cell flagging a saved article.
func favoriteMark(ctx context.Context, store favoriteChecker, a model.Article) (string, error) {
	ok, err := store.IsFavorite(ctx, a.Key())
	if err != nil {
		return "", fmt.Errorf("checking favorite %q: %w", a.Title, err)
	}
	if ok {
		return "*", nil
	}
	return "", nil
}

func (c *cli) topCmd() *cobra.Command {
	var (
		filters model.Filters
		pages   int
	)
	cmd := &cobra.Command{
		Use:     "top",
		Aliases: []string{"headlines"},
		Short:   "Print pages of top headlines",
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := newSource(c.cfg, c.logger)
			if err != nil {
				return err
			}
			store, err := openStore(c.cfg, c.logger)
			if err != nil {
				return err
			}
			defer store.Close()

			out := cmd.OutOrStdout()
			table := newTable(out, []string{"#", "Title", "Source", "Published", "Fav"})
			n := 0
			for page, err := range feed.Pages(cmd.Context(), src, filters, c.cfg.Feed.PageSize) {
				if err != nil {
					color.New(color.FgRed).Fprintf(cmd.ErrOrStderr(), "page %d: %s\n", page.Index+1, model.ErrorMessage(err))
					if n == 0 {
						return errors.New("no headlines loaded")
					}
					break
				}
				for _, a := range page.Items {
					n++
					fav, err := favoriteMark(cmd.Context(), store, a)
					if err != nil {
						return err
					}
					table.AddRow([]string{strconv.Itoa(n), a.Title, a.Source, a.PublishedAt, fav})
				}
				if page.Index+1 >= pages {
					break
				}
			}
			if n == 0 {
				color.New(color.FgYellow).Fprintln(out, "No headlines.")
				return nil
			}
			table.Render()
			return nil
		},
	}
	cmd.Flags().StringVar(&filters.Country, "country", "", "country name or code")
	cmd.Flags().StringVar(&filters.Category, "category", "", "category")
	cmd.Flags().StringVarP(&filters.Query, "query", "q", "", "search text; overrides country and category")
	cmd.Flags().IntVar(&pages, "pages", 1, "number of pages to print")
	return cmd
}
