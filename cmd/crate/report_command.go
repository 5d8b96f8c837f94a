package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"crate_ledger/internal/domain"
	"crate_ledger/internal/report"
)

func newReportCommand(ctx *commandContext) *cobra.Command {
	var (
		filter  report.Filter
		topN    int
		preview int
		locale  string
	)

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Summarize the cached collection",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if topN <= 0 {
				topN = cfg.Dashboard.TopStyles
			}
			if preview < 0 {
				preview = cfg.Dashboard.PreviewLimit
			}

			items, err := newCacheStore(cfg, ctx.logger).Load(cmd.Context())
			if err != nil {
				return fmt.Errorf("load cache: %w", err)
			}
			if len(items) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "cache is empty, run `crate sync` first")
				return nil
			}

			summary := report.Summarize(items, filter, topN)
			renderSummary(cmd.OutOrStdout(), report.NewFormatter(locale), summary)
			if preview > 0 {
				renderPreview(cmd.OutOrStdout(), filter.Apply(items), preview)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&filter.Genre, "genre", "", "Only include items with this genre")
	cmd.Flags().StringVar(&filter.Style, "style", "", "Only include items with this style")
	cmd.Flags().IntVar(&topN, "top", 0, "Number of styles, sellers and countries to rank")
	cmd.Flags().IntVar(&preview, "preview", 0, "Rows of the newest items to list (-1 uses the dashboard limit)")
	cmd.Flags().StringVar(&locale, "locale", "en", "Language tag for number formatting")
	return cmd
}

func renderSummary(w io.Writer, f *report.Formatter, s report.Summary) {
	genre, style := s.Filter.Genre, s.Filter.Style
	if genre == "" {
		genre = report.All
	}
	if style == "" {
		style = report.All
	}
	fmt.Fprintf(w, "%s items (genre: %s, style: %s)\n\n", f.Count(s.Items), f.Label(genre), f.Label(style))

	p := s.Pressings
	fmt.Fprintln(w, renderTable("Pressings",
		[]string{"Kind", "Count", "Share"},
		[][]string{
			{"Original", f.Count(p.Original), f.Percent(p.Share(p.Original))},
			{"Reissue", f.Count(p.Reissue), f.Percent(p.Share(p.Reissue))},
			{"Limited", f.Count(p.Limited), f.Percent(p.Share(p.Limited))},
		},
		[]columnAlignment{alignLeft, alignRight, alignRight},
	))

	styleRows := make([][]string, 0, len(s.TopStyles))
	for _, sc := range s.TopStyles {
		styleRows = append(styleRows, []string{sc.Name, f.Count(sc.Count)})
	}
	fmt.Fprintln(w, renderTable("Top styles", []string{"Style", "Items"}, styleRows,
		[]columnAlignment{alignLeft, alignRight}))

	yearRows := make([][]string, 0, len(s.ByYear))
	for _, yc := range s.ByYear {
		yearRows = append(yearRows, []string{strconv.Itoa(yc.Year), f.Count(yc.Count)})
	}
	fmt.Fprintln(w, renderTable("Records by year", []string{"Year", "Items"}, yearRows,
		[]columnAlignment{alignLeft, alignRight}))

	growthRows := make([][]string, 0, len(s.Growth))
	for _, mc := range s.Growth {
		growthRows = append(growthRows, []string{mc.Month.Format("2006-01"), f.Count(mc.Added), f.Count(mc.Cumulative)})
	}
	fmt.Fprintln(w, renderTable("Collection growth", []string{"Month", "Added", "Total"}, growthRows,
		[]columnAlignment{alignLeft, alignRight, alignRight}))

	sp := s.Spending
	fmt.Fprintln(w, renderTable("Spending",
		[]string{"Priced items", "Total", "Average", "Max"},
		[][]string{{f.Count(sp.Count), f.Money(sp.Total), f.Money(sp.Average), f.Money(sp.Max)}},
		[]columnAlignment{alignRight, alignRight, alignRight, alignRight},
	))
	fmt.Fprintln(w, renderTable("Top sellers", []string{"Seller", "Items", "Spent"}, spendRows(f, sp.TopSellers),
		[]columnAlignment{alignLeft, alignRight, alignRight}))
	fmt.Fprintln(w, renderTable("Spend by band country", []string{"Country", "Items", "Spent"}, spendRows(f, sp.TopCountries),
		[]columnAlignment{alignLeft, alignRight, alignRight}))
}

func spendRows(f *report.Formatter, spends []report.Spend) [][]string {
	rows := make([][]string, 0, len(spends))
	for _, s := range spends {
		rows = append(rows, []string{s.Name, f.Count(s.Count), f.Money(s.Total)})
	}
	return rows
}

func renderPreview(w io.Writer, items []domain.CollectionItem, limit int) {
	if len(items) > limit {
		items = items[:limit]
	}
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		year := ""
		if item.Year > 0 {
			year = strconv.Itoa(item.Year)
		}
		rows = append(rows, []string{
			deref(item.Artists),
			item.Title,
			year,
			deref(item.Formats),
			strings.TrimSpace(deref(item.Styles)),
		})
	}
	fmt.Fprintln(w, renderTable("Newest items",
		[]string{"Artist", "Title", "Year", "Format", "Styles"}, rows, nil))
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
