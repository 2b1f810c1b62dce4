package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points HOME at a temp dir and clears global viper state.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("GENEBE_USERNAME", "")
	t.Setenv("GENEBE_API_KEY", "")
	viper.Reset()
	t.Cleanup(viper.Reset)
	return home
}

func TestRun_Version(t *testing.T) {
	isolate(t)
	assert.Equal(t, ExitSuccess, run([]string{"--version"}))
}

func TestRun_UsageErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"unknown flag", []string{"annotate", "--nope"}},
		{"too many folders", []string{"annotate", "a", "b"}},
		{"lookup without key", []string{"cache", "lookup"}},
		{"bad variant key", []string{"cache", "lookup", "chr1-x-A-T"}},
		{"clear without force", []string{"cache", "clear"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			assert.Equal(t, ExitUsage, run(tt.args))
		})
	}
}

func TestRun_MissingFolder(t *testing.T) {
	home := isolate(t)
	assert.Equal(t, ExitError, run([]string{"annotate", filepath.Join(home, "missing")}))
}

func TestPromptFolder(t *testing.T) {
	var out bytes.Buffer
	folder, err := promptFolder(strings.NewReader("  /data/run1 \n"), &out)
	require.NoError(t, err)
	assert.Equal(t, "/data/run1", folder)
	assert.Contains(t, out.String(), "Folder")

	_, err = promptFolder(strings.NewReader("\n"), &out)
	var uerr *usageError
	assert.ErrorAs(t, err, &uerr)
}

func TestConfigSet(t *testing.T) {
	home := isolate(t)
	require.Equal(t, ExitSuccess, run([]string{"config", "set", "genome", "hg38"}))

	data, err := os.ReadFile(filepath.Join(home, ".vibe-annotate.yaml"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "genome: hg38")
	assert.NotContains(t, string(data), "cache", "defaults are not pinned into the file")

	viper.Reset()
	assert.Equal(t, ExitSuccess, run([]string{"config", "get", "genome"}))
	assert.Equal(t, "hg38", viper.GetString("genome"))
}

func TestConfigSet_Rejected(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"credential", []string{"config", "set", "genebe_api_key", "secret"}},
		{"unknown key", []string{"config", "set", "no.such.key", "1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			home := isolate(t)
			assert.Equal(t, ExitUsage, run(tt.args))
			_, err := os.Stat(filepath.Join(home, ".vibe-annotate.yaml"))
			assert.ErrorIs(t, err, os.ErrNotExist)
		})
	}

	isolate(t)
	assert.Equal(t, ExitError, run([]string{"config", "set", "batch_size", "0"}))
}

func TestAnnotateThenInspectCache(t *testing.T) {
	home := isolate(t)
	httpmock.Activate()
	t.Cleanup(httpmock.DeactivateAndReset)

	httpmock.RegisterResponder(http.MethodPost, `=~^https://api\.genebe\.net/`,
		func(req *http.Request) (*http.Response, error) {
			body, err := io.ReadAll(req.Body)
			if err != nil {
				return nil, err
			}
			var in []map[string]any
			if err := json.Unmarshal(body, &in); err != nil {
				return nil, err
			}
			for _, v := range in {
				v["gene_symbol"] = "BRCA1"
				v["acmg_classification"] = "Pathogenic"
			}
			return httpmock.NewJsonResponse(http.StatusOK, map[string]any{"variants": in})
		})

	folder := filepath.Join(home, "run1")
	require.NoError(t, os.Mkdir(folder, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(folder, "panel.vcf"), []byte(
		"##fileformat=VCFv4.2\n"+
			"#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\n"+
			"chr17\t41245466\t.\tG\tA\t50\tPASS\tAF=0.5\n"), 0644))

	cachePath := filepath.Join(home, "cache", "annotation_cache.duckdb")
	require.Equal(t, ExitSuccess, run([]string{"annotate", "--cache", cachePath, folder}))
	assert.Equal(t, 1, httpmock.GetTotalCallCount())

	report, err := os.ReadFile(filepath.Join(folder, "annotated", "panel.tsv"))
	require.NoError(t, err)
	assert.Contains(t, string(report), "BRCA1")

	viper.Reset()
	assert.Equal(t, ExitSuccess, run([]string{"cache", "lookup", "--cache", cachePath, "chr17-41245466-G-A"}))
	viper.Reset()
	assert.Equal(t, ExitSuccess, run([]string{"cache", "gene", "--cache", cachePath, "BRCA1"}))
	viper.Reset()
	assert.Equal(t, ExitSuccess, run([]string{"cache", "stats", "--cache", cachePath}))
	viper.Reset()
	assert.Equal(t, ExitError, run([]string{"cache", "lookup", "--cache", cachePath, "1-1-A-T"}))

	// Second run hits the cache only.
	viper.Reset()
	require.Equal(t, ExitSuccess, run([]string{"annotate", "--cache", cachePath, folder}))
	assert.Equal(t, 1, httpmock.GetTotalCallCount())
}
