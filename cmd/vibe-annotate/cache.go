package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/inodb/vibe-annotate/internal/annotation"
	"github.com/inodb/vibe-annotate/internal/duckdb"
	"github.com/inodb/vibe-annotate/internal/variant"
)

func newCacheCmd(logger func() *zap.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect the annotation cache",
		Example: `  vibe-annotate cache stats
  vibe-annotate cache lookup chr17-41245466-G-A
  vibe-annotate cache gene BRCA1`,
	}
	cmd.PersistentFlags().String("cache", "", "Annotation cache file")

	cmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Show cache size, schema version and recent runs",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(s *duckdb.Store) error {
				return runCacheStats(cmd.OutOrStdout(), s)
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "lookup <CHROM-POS-REF-ALT>",
		Short: "Show the cached annotation for one variant",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			k, err := variant.ParseKey(args[0])
			if err != nil {
				return &usageError{err}
			}
			return withStore(cmd, func(s *duckdb.Store) error {
				return runCacheLookup(cmd.OutOrStdout(), s, k)
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "gene <SYMBOL>",
		Short: "List cached variants annotated with a gene symbol",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(s *duckdb.Store) error {
				return runCacheGene(cmd.OutOrStdout(), s, args[0])
			})
		},
	})

	var force bool
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every cached annotation",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !force {
				return &usageError{errors.New("refusing to clear the cache without --force")}
			}
			return withStore(cmd, func(s *duckdb.Store) error {
				if err := s.ClearAnnotations(); err != nil {
					return err
				}
				logger().Info("cleared annotation cache", zap.String("path", s.Path()))
				return nil
			})
		},
	}
	clearCmd.Flags().BoolVar(&force, "force", false, "Confirm deletion")
	cmd.AddCommand(clearCmd)

	return cmd
}

// withStore opens the configured cache for inspection. It does not create
// a cache that does not exist yet.
func withStore(cmd *cobra.Command, fn func(*duckdb.Store) error) error {
	path, _ := cmd.Flags().GetString("cache")
	if path == "" {
		path = viper.GetString("cache.path")
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("no annotation cache at %s", path)
	}

	s, err := duckdb.Open(path)
	if err != nil {
		return fmt.Errorf("open annotation cache: %w", err)
	}
	defer s.Close()
	return fn(s)
}

func runCacheStats(w io.Writer, s *duckdb.Store) error {
	count, err := s.Count()
	if err != nil {
		return err
	}
	version, err := s.SchemaVersion()
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Path:           %s\n", s.Path())
	fmt.Fprintf(w, "Schema version: %d\n", version)
	fmt.Fprintf(w, "Records:        %d\n", count)

	runs, err := s.Runs(5)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		return nil
	}

	fmt.Fprintln(w, "\nRecent runs:")
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tSTARTED\tFILES\tSKIPPED\tVARIANTS\tHITS\tFETCHED\tADDED\tDURATION")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%d\t%d\t%d\t%s\n",
			r.ID, r.Started.Local().Format(time.DateTime), len(r.Sources), r.Skipped(),
			r.Keys, r.Hits, r.Fetched, r.Added, r.Duration().Round(time.Millisecond))
	}
	return tw.Flush()
}

// cachedRecord is the YAML view of one cached annotation.
type cachedRecord struct {
	Variant        string            `yaml:"variant"`
	FirstAnnotated string            `yaml:"first_annotated"`
	RunID          string            `yaml:"run_id,omitempty"`
	Attributes     map[string]string `yaml:"attributes"`
}

func runCacheLookup(w io.Writer, s *duckdb.Store, k variant.Key) error {
	r, err := s.LookupVariant(k)
	if err != nil {
		return err
	}
	if r == nil {
		return fmt.Errorf("variant %s is not cached", k)
	}

	out, err := yaml.Marshal(cachedRecord{
		Variant:        r.Key.String(),
		FirstAnnotated: r.FirstAnnotated.Format(time.DateOnly),
		RunID:          r.RunID,
		Attributes:     r.Attributes,
	})
	if err != nil {
		return fmt.Errorf("marshaling record: %w", err)
	}
	_, err = w.Write(out)
	return err
}

func runCacheGene(w io.Writer, s *duckdb.Store, symbol string) error {
	records, err := s.SearchByGene(symbol)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return fmt.Errorf("no cached variants for gene %s", symbol)
	}
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i].Key, records[j].Key
		if a.Chrom != b.Chrom {
			return a.Chrom < b.Chrom
		}
		return a.PosInt() < b.PosInt()
	})

	columns := []string{annotation.HGVSc, annotation.HGVSp, annotation.Effect, annotation.ACMGClassification}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "VARIANT\t"+strings.ToUpper(strings.Join(columns, "\t"))+"\tFIRST_ANNOTATED")
	for _, r := range records {
		cells := make([]string, len(columns))
		for i, c := range columns {
			if v, ok := r.Get(c); ok {
				cells[i] = v
			} else {
				cells[i] = "-"
			}
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", r.Key, strings.Join(cells, "\t"), r.FirstAnnotated.Format(time.DateOnly))
	}
	return tw.Flush()
}
