// Package oncokb tags annotated variants with OncoKB cancer gene roles.
package oncokb

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// Header columns read from cancerGeneList.tsv.
const (
	colHugoSymbol = "Hugo Symbol"
	colGeneType   = "Gene Type"
)

// Gene is one entry of the cancer gene list.
type Gene struct {
	HugoSymbol string
	GeneType   string // e.g. "ONCOGENE", "TSG", "ONCOGENE_AND_TSG"
}

// CancerGeneList maps Hugo symbol to gene entry.
type CancerGeneList map[string]*Gene

// IsCancerGene reports whether symbol is listed.
func (c CancerGeneList) IsCancerGene(symbol string) bool {
	_, ok := c[symbol]
	return ok
}

// LoadCancerGeneList reads an OncoKB cancerGeneList.tsv file.
func LoadCancerGeneList(path string) (CancerGeneList, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open cancer gene list: %w", err)
	}
	defer f.Close()

	cgl, err := ParseCancerGeneList(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cgl, nil
}

// ParseCancerGeneList reads a tab-separated gene list with "Hugo Symbol"
// and "Gene Type" header columns. Rows without a symbol are skipped.
func ParseCancerGeneList(r io.Reader) (CancerGeneList, error) {
	scanner := bufio.NewScanner(r)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("read header: %w", err)
		}
		return nil, fmt.Errorf("empty cancer gene list")
	}

	symbolIdx, typeIdx := -1, -1
	for i, col := range strings.Split(strings.TrimRight(scanner.Text(), "\r"), "\t") {
		switch strings.TrimSpace(col) {
		case colHugoSymbol:
			symbolIdx = i
		case colGeneType:
			typeIdx = i
		}
	}
	if symbolIdx < 0 {
		return nil, fmt.Errorf("missing %q column", colHugoSymbol)
	}
	if typeIdx < 0 {
		return nil, fmt.Errorf("missing %q column", colGeneType)
	}

	cgl := make(CancerGeneList)
	for scanner.Scan() {
		fields := strings.Split(strings.TrimRight(scanner.Text(), "\r"), "\t")
		if len(fields) <= max(symbolIdx, typeIdx) {
			continue
		}
		symbol := strings.TrimSpace(fields[symbolIdx])
		if symbol == "" {
			continue
		}
		cgl[symbol] = &Gene{
			HugoSymbol: symbol,
			GeneType:   strings.TrimSpace(fields[typeIdx]),
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read cancer gene list: %w", err)
	}
	return cgl, nil
}
