package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"lancer/internal/config"
	"lancer/internal/report"
	"lancer/internal/uploader"
	"lancer/internal/util"
)

// CaseEntry is one archived failure in the report.
type CaseEntry struct {
	report.Summary
	Archive string `json:"archive"`
	// Script holds the start of repro.sql.
	Script    string `json:"script"`
	Truncated bool   `json:"truncated,omitempty"`
}

// Site is the content of report.json.
type Site struct {
	GeneratedAt string      `json:"generated_at"`
	Source      string      `json:"source"`
	Cases       []CaseEntry `json:"cases"`
}

type options struct {
	input      string
	output     string
	configPath string
	maxBytes   int
	publish    bool
}

func main() {
	if err := newRootCmd(afero.NewOsFs()).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "report failed: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd(fs afero.Fs) *cobra.Command {
	var opts options
	cmd := &cobra.Command{
		Use:           "lancer-report",
		Short:         "Index archived failures into report.json",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			site, err := buildSite(fs, opts.input, opts.maxBytes, time.Now())
			if err != nil {
				return err
			}
			path, err := writeSite(fs, opts.output, site)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "indexed %d case(s) into %s\n", len(site.Cases), path)
			if !opts.publish {
				return nil
			}
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			up, err := uploader.New(cfg.Storage)
			if err != nil {
				return err
			}
			if !up.Enabled() {
				return errors.New("publish requested but no storage backend is enabled")
			}
			location, err := up.UploadFile(context.Background(), fs, path)
			if err != nil {
				return errors.Wrap(err, "publish report")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "published %s\n", location)
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.input, "input", "logs", "log directory holding <provider>/cases")
	cmd.Flags().StringVar(&opts.output, "output", "report", "directory report.json is written to")
	cmd.Flags().StringVar(&opts.configPath, "config", "", "config file with the storage settings used by --publish")
	cmd.Flags().IntVar(&opts.maxBytes, "max-bytes", 64*1024, "max bytes of repro.sql kept per case")
	cmd.Flags().BoolVar(&opts.publish, "publish", false, "upload report.json to the configured storage")
	return cmd
}

// buildSite reads every case archive below root, newest first.
func buildSite(fs afero.Fs, root string, maxBytes int, now time.Time) (Site, error) {
	var cases []CaseEntry
	err := afero.Walk(fs, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !strings.HasSuffix(path, report.CaseArchiveExt) {
			return nil
		}
		entry, err := readCase(fs, path, maxBytes)
		if err != nil {
			util.Warnf("skip %s: %v", path, err)
			return nil
		}
		cases = append(cases, entry)
		return nil
	})
	if err != nil {
		return Site{}, errors.Wrapf(err, "scan %s", root)
	}
	sort.Slice(cases, func(i, j int) bool {
		if cases[i].Timestamp != cases[j].Timestamp {
			return cases[i].Timestamp > cases[j].Timestamp
		}
		return cases[i].CaseID < cases[j].CaseID
	})
	return Site{GeneratedAt: now.UTC().Format(time.RFC3339), Source: root, Cases: cases}, nil
}

func readCase(fs afero.Fs, path string, maxBytes int) (CaseEntry, error) {
	files, err := report.ReadArchive(fs, path)
	if err != nil {
		return CaseEntry{}, err
	}
	raw, ok := files["summary.json"]
	if !ok {
		return CaseEntry{}, errors.New("archive has no summary.json")
	}
	entry := CaseEntry{Archive: path}
	if err := json.Unmarshal(raw, &entry.Summary); err != nil {
		return CaseEntry{}, errors.Wrap(err, "decode summary")
	}
	script := files["repro.sql"]
	if maxBytes > 0 && len(script) > maxBytes {
		script = script[:maxBytes]
		entry.Truncated = true
	}
	entry.Script = string(script)
	return entry, nil
}

func writeSite(fs afero.Fs, dir string, site Site) (string, error) {
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	data, err := json.MarshalIndent(site, "", "  ")
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, "report.json")
	return path, afero.WriteFile(fs, path, append(data, '\n'), 0o644)
}
