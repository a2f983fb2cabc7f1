package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jokizilla/jokizilla/internal/jokizillasrv/config"
	"github.com/jokizilla/jokizilla/internal/jokizillasrv/db/dbmanager"
	"github.com/jokizilla/jokizilla/internal/jokizillasrv/db/store"
	"github.com/jokizilla/jokizilla/internal/jokizillasrv/seed"
)

func newSeedCmd(opts *globalOptions) *cobra.Command {
	var filename string
	cmd := &cobra.Command{
		Use:   "seed -f FILENAME",
		Short: "Load lookup data from a YAML file",
		Long: `Load entities from a YAML file. Each document maps entity set names to lists of
entities, and every entity carries its Id. Entities that already exist are left
unchanged, so a file can be applied repeatedly. The file is applied in a single
transaction.

Entity sets: ` + strings.Join(seed.SetNames(), ", "),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := seed.ParseFile(filename)
			if err != nil {
				return err
			}
			stats, err := applySeed(cmd.Context(), data)
			if err != nil {
				return err
			}
			if opts.jsonOutput {
				return printJSON(cmd.OutOrStdout(), stats)
			}
			for _, name := range seed.SetNames() {
				st, ok := stats[name]
				if !ok {
					continue
				}
				okLabel.Fprintf(cmd.OutOrStdout(), "%-18s", name)
				fmt.Fprintf(cmd.OutOrStdout(), " created %d, existing %d\n", st.Created, st.Existing)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&filename, "filename", "f", "", "YAML file with the entities to load")
	cmd.MarkFlagRequired("filename")
	return cmd
}

func applySeed(ctx context.Context, data seed.Data) (map[string]seed.Stats, error) {
	pool, err := dbmanager.NewPool(ctx, config.Config().DB)
	if err != nil {
		return nil, fmt.Errorf("initializing database: %w", err)
	}
	defer pool.Close()
	conn, err := pool.Conn(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close(context.Background())

	var stats map[string]seed.Stats
	err = store.New(conn).InTx(ctx, func(tx *store.Store) error {
		var err error
		stats, err = seed.Apply(ctx, tx, data)
		return err
	})
	return stats, err
}
