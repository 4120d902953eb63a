package app

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"cart-meal-planner/internal/cart"
	"cart-meal-planner/internal/planner"
	"cart-meal-planner/internal/schedule"
)

// ReadCartFile parses a cart export. Saved order pages (.html, .htm or any
// file starting with markup) go through the HTML parser, everything else is
// read as one item per line.
func ReadCartFile(path string) ([]cart.Item, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read cart file: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".html" || ext == ".htm" || bytes.HasPrefix(bytes.TrimSpace(data), []byte("<")) {
		return cart.ParseHTML(bytes.NewReader(data))
	}
	return cart.ParseText(bytes.NewReader(data))
}

// ImportCart creates the owner's week from a cart file.
func (a *App) ImportCart(ctx context.Context, owner string, weekOf time.Time, path string, force bool) (planner.View, error) {
	items, err := ReadCartFile(path)
	if err != nil {
		return planner.View{}, err
	}
	ref := planner.PlanRef{Owner: owner, WeekOf: weekOf}
	return a.service.CreatePlan(ctx, ref, items, planner.WriteOptions{Force: force, Source: schedule.SourceSystem})
}

// WriteSummary prints the week as a table followed by what is left of the cart.
func WriteSummary(w io.Writer, v planner.View) error {
	p := v.Plan
	fmt.Fprintf(w, "Week of %s (%s, version %d)\n\n", p.WeekOf.Format("2006-01-02"), p.Owner, v.Version)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DAY\tSLOT\tMEAL\tMIN\tLOCK")
	for _, s := range p.Slots {
		title, minutes := "-", ""
		if s.Meal != nil {
			title = s.Meal.Title
			minutes = fmt.Sprint(s.Meal.TimeMinutes)
		}
		lock := ""
		if s.Locked {
			lock = "locked"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", s.Day.Short(), s.Type, title, minutes, lock)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(w, "\nIngredients:")
	tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tCATEGORY\tTOTAL\tLEFT\tUNIT")
	for _, ing := range p.Pool.Ingredients() {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", ing.Name, ing.Category, ing.TotalQty, ing.Remaining(), ing.Unit)
	}
	return tw.Flush()
}
