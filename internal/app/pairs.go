package app

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
)

// Pairs prints the tradable USD pair catalog as a table.
func (a *App) Pairs(ctx context.Context) error {
	store := a.buildCache(ctx)
	defer store.Close()

	_, catalog, _, err := a.buildProviders(store)
	if err != nil {
		return err
	}

	pairs, err := catalog.FetchUSDPairs(ctx)
	if err != nil {
		return err
	}
	if len(pairs) == 0 {
		fmt.Fprintln(os.Stdout, "no pairs found")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Pair\tDisplay\tBase\tQuote")
	for _, p := range pairs {
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\n", p.ID, p.DisplayName, p.Base, p.Quote)
	}

	writer.Flush()
	return nil
}
