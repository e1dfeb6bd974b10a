package main

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/bndr/gotabulate"
	"github.com/spf13/cobra"

	"github.com/goliatone/go-formkit/pkg/api"
	"github.com/goliatone/go-formkit/pkg/listing"
	"github.com/goliatone/go-formkit/pkg/pager"
	"github.com/goliatone/go-formkit/pkg/status"
)

type row = map[string]any

// statusColumns render through status.Parse so booleans and lifecycle
// strings print the same way.
var statusColumns = map[string]bool{"status": true, "active": true, "enabled": true}

func newListCmd(a *app) *cobra.Command {
	var (
		page     int
		pageSize int
		columns  []string
		all      bool
	)
	cmd := &cobra.Command{
		Use:   "list <collection>",
		Short: "Page through a collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireLogin(); err != nil {
				return err
			}
			ctx := cmd.Context()
			size := pageSize
			if size == 0 {
				size = a.cfg.Pager.DefaultSize
			}
			p, err := pager.New(
				pager.WithPageSizes(a.cfg.Pager.PageSizes...),
				pager.WithPageSize(size),
				pager.WithLogger(a.logger),
			)
			if err != nil {
				return err
			}
			if page > 1 {
				p.SetPage(page - 1)
			}

			list := listing.New(p, resourceFetcher(api.NewResource[row](a.client, args[0])), listing.WithLogger(a.logger))
			defer list.Close()
			if err := list.Start(ctx); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for {
				if err := list.Err(); err != nil {
					return err
				}
				printPage(out, list.Items(), columns, p.Query())
				if !all || !p.Next() {
					return nil
				}
			}
		},
	}
	cmd.Flags().IntVar(&page, "page", 1, "page number, starting at 1")
	cmd.Flags().IntVar(&pageSize, "page-size", 0, "rows per page (one of the configured sizes)")
	cmd.Flags().StringSliceVar(&columns, "columns", nil, "columns to show (default: all)")
	cmd.Flags().BoolVar(&all, "all", false, "print every page")
	return cmd
}

func resourceFetcher(res *api.Resource[row]) listing.Fetcher[row] {
	return listing.FetcherFunc[row](func(ctx context.Context, q pager.Query) (listing.Page[row], error) {
		page, err := res.List(ctx, q.PageIndex, q.PageSize, nil)
		if err != nil {
			return listing.Page[row]{}, err
		}
		return listing.Page[row]{
			Items:       page.Items,
			TotalPages:  page.TotalPages,
			TotalsKnown: page.TotalsKnown,
			HasMore:     page.HasMore,
		}, nil
	})
}

func printPage(out io.Writer, items []row, columns []string, q pager.Query) {
	if len(items) == 0 {
		printf(out, "no records\n")
		return
	}
	if len(columns) == 0 {
		columns = inferColumns(items)
	}
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		cells := make([]string, len(columns))
		for i, col := range columns {
			cells[i] = cell(col, item[col])
		}
		rows = append(rows, cells)
	}
	t := gotabulate.Create(rows)
	t.SetHeaders(columns)
	t.SetAlign("left")
	t.SetWrapStrings(true)
	t.SetMaxCellSize(40)
	printf(out, "%s", t.Render("grid"))

	switch {
	case q.TotalsKnown:
		printf(out, "page %d of %d\n", q.PageIndex+1, q.TotalPages)
	case q.HasMore:
		printf(out, "page %d, more available\n", q.PageIndex+1)
	default:
		printf(out, "page %d\n", q.PageIndex+1)
	}
}

// inferColumns lists every key seen, id first.
func inferColumns(items []row) []string {
	seen := map[string]bool{}
	for _, item := range items {
		for k := range item {
			seen[k] = true
		}
	}
	cols := make([]string, 0, len(seen))
	for k := range seen {
		if k != "id" {
			cols = append(cols, k)
		}
	}
	sort.Strings(cols)
	if seen["id"] {
		cols = append([]string{"id"}, cols...)
	}
	return cols
}

func cell(column string, value any) string {
	if value == nil {
		return ""
	}
	if statusColumns[strings.ToLower(column)] {
		return status.Parse(value).String()
	}
	switch v := value.(type) {
	case []any:
		parts := make([]string, len(v))
		for i, item := range v {
			parts[i] = fmt.Sprint(item)
		}
		return strings.Join(parts, ", ")
	default:
		return fmt.Sprint(v)
	}
}
