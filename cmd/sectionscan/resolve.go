package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	jsonformat "github.com/vpbank/snmp_sections/format/json"
	"github.com/vpbank/snmp_sections/models"
	"github.com/vpbank/snmp_sections/pkg/snmpsections/section"
)

// runResolve parses each agent output file as the raw data of one host,
// named after the file without its extension, and prints what the host's
// parsed sections resolve to. With -resolve.cluster the hosts are treated as
// nodes of one cluster and the cluster check arguments are printed instead.
func runResolve(o options, files []string, logger *slog.Logger) error {
	if len(files) == 0 {
		return fmt.Errorf("resolve: no agent output files given")
	}

	reg := section.NewRegistry()
	if o.resolvePlugins != "" {
		if err := section.LoadDeclaredPlugins(reg, o.resolvePlugins); err != nil {
			return err
		}
	}

	data := make(map[models.HostKey]models.HostSections, len(files))
	nodes := make([]models.HostKey, 0, len(files))
	for _, path := range files {
		hk := models.HostKey{
			Hostname:   strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
			SourceType: models.SourceHost,
		}
		hs, err := readAgentFile(path, logger)
		if err != nil {
			return err
		}
		data[hk] = hs
		nodes = append(nodes, hk)
	}
	broker := section.BuildBroker(reg, data, logger)

	var wanted []models.ParsedSectionName
	for _, n := range splitList(o.resolveSections) {
		name, err := models.NewParsedSectionName(n)
		if err != nil {
			return fmt.Errorf("resolve: %w", err)
		}
		wanted = append(wanted, name)
	}

	formatter := jsonformat.New(jsonformat.Config{PrettyPrint: o.pretty}, logger)

	if o.resolveCluster != "" {
		if len(wanted) == 0 {
			return fmt.Errorf("resolve: -resolve.cluster needs -resolve.sections")
		}
		kwargs, err := section.GetSectionClusterKwargs(broker, nodes, wanted)
		if err != nil {
			return fmt.Errorf("resolve: %w", err)
		}
		report := jsonformat.ParsedSectionsReport{
			Host:     o.resolveCluster,
			Source:   models.SourceHost,
			Sections: map[string]jsonformat.ParsedSection{},
			Kwargs:   make(map[string]any, len(kwargs)),
		}
		for k, v := range kwargs {
			report.Kwargs[k] = v
		}
		return printReport(formatter, &report)
	}

	for _, hk := range broker.HostKeys() {
		results, err := broker.AllParsingResults(hk)
		if err != nil {
			return fmt.Errorf("resolve: %w", err)
		}
		var kwargs map[string]any
		if len(wanted) > 0 {
			if kwargs, err = section.GetSectionKwargs(broker, hk, wanted); err != nil {
				return fmt.Errorf("resolve: %w", err)
			}
		}
		report := jsonformat.NewParsedSectionsReport(hk, results, kwargs)
		if err := printReport(formatter, &report); err != nil {
			return err
		}
	}

	if info, ok, err := broker.GetCacheInfo(wanted); err == nil && ok {
		logger.Info("resolve: requested sections served from cache",
			"cached_at", info.CachedAt,
			"interval", info.Interval,
		)
	}
	return nil
}

func readAgentFile(path string, logger *slog.Logger) (models.HostSections, error) {
	f, err := os.Open(path)
	if err != nil {
		return models.HostSections{}, fmt.Errorf("resolve: %w", err)
	}
	defer f.Close()
	return section.ParseAgentOutput(f, logger.With("file", path))
}

func printReport(f *jsonformat.JSONFormatter, report *jsonformat.ParsedSectionsReport) error {
	data, err := f.FormatReport(report)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(os.Stdout, string(data))
	return err
}
