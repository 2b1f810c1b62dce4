package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/inodb/vibe-annotate/internal/annotate"
	"github.com/inodb/vibe-annotate/internal/batch"
	"github.com/inodb/vibe-annotate/internal/cache"
	"github.com/inodb/vibe-annotate/internal/config"
	"github.com/inodb/vibe-annotate/internal/datasource/oncokb"
	"github.com/inodb/vibe-annotate/internal/duckdb"
	"github.com/inodb/vibe-annotate/internal/genebe"
)

func newAnnotateCmd(logger func() *zap.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "annotate [folder]",
		Short: "Annotate every variant call file in a folder",
		Long: `Annotate every .vcf and .vcf.gz file in a folder. Variants are looked up in
the annotation cache first; only variants never seen before are sent to the
annotation service. One tab-separated report per input file is written to
the output directory. Without a folder argument the folder is prompted for.`,
		Example: `  vibe-annotate annotate ./runs/2026-05
  vibe-annotate annotate --genome hg38 --output-dir /srv/reports ./runs/2026-05
  GENEBE_USERNAME=me@example.org GENEBE_API_KEY=... vibe-annotate annotate ./runs`,
		Args: usageArgs(cobra.MaximumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			folder := ""
			if len(args) == 1 {
				folder = args[0]
			} else {
				var err error
				folder, err = promptFolder(cmd.InOrStdin(), cmd.ErrOrStderr())
				if err != nil {
					return err
				}
			}
			return runAnnotate(cmd.Context(), folder, cmd.OutOrStdout(), logger())
		},
	}

	flags := cmd.Flags()
	flags.String("genome", "", "Genome build sent to the annotation service (hg19, hg38)")
	flags.Int("batch-size", 0, "Maximum variants per service request")
	flags.String("cache", "", "Annotation cache file")
	flags.StringP("output-dir", "o", "", "Report directory, relative to the input folder unless absolute")
	flags.String("sort-by", "", "Report column to sort on, descending")
	flags.String("oncokb", "", "OncoKB cancerGeneList.tsv to tag cancer genes")

	for key, flag := range map[string]string{
		"genome":             "genome",
		"batch_size":         "batch-size",
		"cache.path":         "cache",
		"output.dir":         "output-dir",
		"report.sort_by":     "sort-by",
		"annotations.oncokb": "oncokb",
	} {
		_ = viper.BindPFlag(key, flags.Lookup(flag))
	}

	return cmd
}

// promptFolder asks for the input folder on in.
func promptFolder(in io.Reader, out io.Writer) (string, error) {
	fmt.Fprint(out, "Folder with variant call files: ")
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read folder: %w", err)
	}
	folder := strings.TrimSpace(line)
	if folder == "" {
		return "", &usageError{errors.New("folder argument required")}
	}
	return folder, nil
}

func runAnnotate(ctx context.Context, folder string, out io.Writer, logger *zap.Logger) error {
	info, err := os.Stat(folder)
	if err != nil {
		return fmt.Errorf("input folder: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("input folder: %s is not a directory", folder)
	}

	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	store, err := duckdb.Open(cfg.Cache.Path)
	if err != nil {
		return fmt.Errorf("open annotation cache: %w", err)
	}
	defer store.Close()

	c := cache.New()
	n, err := store.Load(c)
	if err != nil {
		return fmt.Errorf("load annotation cache: %w", err)
	}
	logger.Info("loaded annotation cache",
		zap.String("path", cfg.Cache.Path),
		zap.Bool("existed", store.Existed()),
		zap.Int("records", n))

	client, err := genebe.NewClient(cfg.GenebeConfig())
	if err != nil {
		return err
	}
	client.SetLogger(logger.Named("genebe"))
	if cfg.Credentials.Anonymous() {
		logger.Warn("GENEBE_USERNAME and GENEBE_API_KEY not set, using anonymous service access")
	}

	ann := annotate.NewAnnotator(c, client, store)
	ann.SetLogger(logger.Named("annotate"))
	ann.SetSortBy(cfg.Report.SortBy)

	if cfg.Annotations.OncoKB != "" {
		cgl, err := oncokb.LoadCancerGeneList(cfg.Annotations.OncoKB)
		if err != nil {
			return err
		}
		src := oncokb.NewSource(cgl)
		ann.AddSource(src)
		logger.Info("loaded annotation source",
			zap.String("name", src.Name()),
			zap.String("version", src.Version()),
			zap.Int("genes", len(cgl)))
	}

	runner := batch.NewRunner(ann, cfg.OutputDir)
	runner.SetLogger(logger.Named("batch"))
	runner.SetLedger(store)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := runner.Run(ctx, folder)
	if err != nil {
		return err
	}

	printResult(out, folder, res, client.Requests())
	if res.Failed() == len(res.Files) {
		return errors.New("no reports written")
	}
	return nil
}

func printResult(w io.Writer, folder string, res *batch.Result, requests int) {
	for _, f := range res.Files {
		name := filepath.Base(f.Path)
		if f.Err != nil {
			fmt.Fprintf(w, "  %-32s skipped: %v\n", name, f.Err)
			continue
		}
		rel, err := filepath.Rel(folder, f.Output)
		if err != nil || strings.HasPrefix(rel, "..") {
			rel = f.Output
		}
		fmt.Fprintf(w, "  %-32s -> %s (%d rows)\n", name, rel, f.Rows)
	}
	s := res.Stats
	fmt.Fprintf(w, "%d files, %d unique variants: %d cached, %d fetched in %d requests; cache holds %d\n",
		len(res.Files), s.Keys, s.Hits, s.Fetched, requests, s.CacheSize)
}
