package main

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/bryan-buckman/headlines/internal/favorites"
	"github.com/bryan-buckman/headlines/internal/opml"
	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/spf13/cobra"
)

func (c *cli) favoritesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "favorites",
		Short: "Manage saved articles",
	}
	cmd.AddCommand(c.favoritesListCmd(), c.favoritesRemoveCmd(), c.favoritesExportCmd(), c.favoritesImportCmd())
	return cmd
}

func (c *cli) withFavorites(fn func(*favorites.Synchronizer) error) error {
	store, err := openStore(c.cfg, c.logger)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(favorites.New(store, c.logger))
}

func (c *cli) favoritesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List favorites",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withFavorites(func(s *favorites.Synchronizer) error {
				all, err := s.All(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(all) == 0 {
					color.New(color.FgYellow).Fprintln(out, "No favorites yet.")
					return nil
				}
				table := newTable(out, []string{"#", "Title", "Source", "URL"})
				for i, a := range all {
					table.AddRow([]string{strconv.Itoa(i + 1), a.Title, a.Source, a.URL})
				}
				table.Render()
				return nil
			})
		},
	}
}

func (c *cli) favoritesRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <title>",
		Short: "Remove a favorite by title",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withFavorites(func(s *favorites.Synchronizer) error {
				if err := s.RemoveKey(cmd.Context(), args[0]); err != nil {
					return err
				}
				color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "Removed %q\n", args[0])
				return nil
			})
		},
	}
}

func (c *cli) favoritesExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export [file]",
		Short: "Export favorites as OPML (stdout by default)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withFavorites(func(s *favorites.Synchronizer) error {
				all, err := s.All(cmd.Context())
				if err != nil {
					return err
				}
				data, err := opml.Export("Headlines Favorites", all)
				if err != nil {
					return err
				}
				if len(args) == 0 {
					_, err = cmd.OutOrStdout().Write(data)
					return err
				}
				if err := os.WriteFile(args[0], data, 0o644); err != nil {
					return fmt.Errorf("write %s: %w", args[0], err)
				}
				color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "Exported %d favorites to %s\n", len(all), args[0])
				return nil
			})
		},
	}
}

func (c *cli) favoritesImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Import favorites from OPML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			articles, err := opml.Parse(f)
			if err != nil {
				return err
			}
			return c.withFavorites(func(s *favorites.Synchronizer) error {
				imported := 0
				for _, a := range articles {
					if err := s.Add(cmd.Context(), a); err != nil {
						color.New(color.FgRed).Fprintf(cmd.ErrOrStderr(), "skip %q: %v\n", a.Title, err)
						continue
					}
					imported++
				}
				color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "Imported %d of %d favorites\n", imported, len(articles))
				return nil
			})
		},
	}
}

// table buffers rows and renders them borderless.
type table struct {
	t      *tablewriter.Table
	header []string
	rows   [][]string
}

func newTable(w io.Writer, header []string) *table {
	t := tablewriter.NewTable(w,
		tablewriter.WithConfig(tablewriter.Config{
			Row: tw.CellConfig{
				Formatting: tw.CellFormatting{AutoWrap: tw.WrapNone},
				Alignment:  tw.CellAlignment{Global: tw.AlignLeft},
			},
			Header: tw.CellConfig{
				Formatting: tw.CellFormatting{AutoFormat: tw.On},
				Alignment:  tw.CellAlignment{Global: tw.AlignLeft},
			},
		}),
		tablewriter.WithRendition(tw.Rendition{
			Borders: tw.BorderNone,
			Settings: tw.Settings{
				Separators: tw.Separators{ShowHeader: tw.Off},
			},
		}),
	)
	return &table{t: t, header: header}
}

func (t *table) AddRow(row []string) {
	t.rows = append(t.rows, row)
}

func (t *table) Render() {
	t.t.Header(t.header)
	t.t.Bulk(t.rows)
	t.t.Render()
}
