package section

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/vpbank/snmp_sections/models"
)

// Agent output is a sequence of blocks, each opened by a header line:
//
//	<<<df>>>                               whitespace separated fields
//	<<<mssql_versions:sep(124)>>>          fields split on chr(124) = "|"
//	<<<mrpe:cached(1600000000,300)>>>      served from a 300s cache at that time
//	<<<>>>                                 closes the current block
//
// Piggyback blocks (<<<<host>>>> ... <<<<>>>>) belong to other hosts and are
// skipped.

var (
	sectionHeader   = regexp.MustCompile(`^<<<([^<>]*)>>>$`)
	piggybackHeader = regexp.MustCompile(`^<<<<([^<>]*)>>>>$`)
	sepOption       = regexp.MustCompile(`^sep\((\d+)\)$`)
	cachedOption    = regexp.MustCompile(`^cached\((\d+),(\d+)\)$`)
)

const maxAgentLine = 1 << 20

// maxCacheInterval keeps the interval in seconds representable as a
// time.Duration.
const maxCacheInterval = int64(1<<63-1) / int64(time.Second)

type blockHeader struct {
	name    models.SectionName
	sep     string // "" splits on whitespace
	cached  *models.CacheInfo
	nostrip bool
}

func parseHeader(raw string) (blockHeader, error) {
	parts := strings.Split(raw, ":")
	name, err := models.NewSectionName(parts[0])
	if err != nil {
		return blockHeader{}, err
	}
	h := blockHeader{name: name}
	for _, opt := range parts[1:] {
		switch {
		case sepOption.MatchString(opt):
			code, err := strconv.Atoi(sepOption.FindStringSubmatch(opt)[1])
			if err != nil || code <= 0 || code > 255 {
				return blockHeader{}, fmt.Errorf("bad separator %q", opt)
			}
			h.sep = string(rune(code))
		case cachedOption.MatchString(opt):
			m := cachedOption.FindStringSubmatch(opt)
			at, err := strconv.ParseInt(m[1], 10, 64)
			if err != nil {
				return blockHeader{}, fmt.Errorf("bad cache timestamp %q: %w", opt, err)
			}
			interval, err := strconv.ParseInt(m[2], 10, 64)
			if err != nil || interval > maxCacheInterval {
				return blockHeader{}, fmt.Errorf("bad cache interval %q", opt)
			}
			h.cached = &models.CacheInfo{
				CachedAt: time.Unix(at, 0).UTC(),
				Interval: time.Duration(interval) * time.Second,
			}
		case opt == "nostrip":
			h.nostrip = true
		}
	}
	return h, nil
}

// ParseAgentOutput splits agent output into raw sections. Repeated blocks of
// the same section are concatenated. Blocks with an invalid name are skipped
// with a warning.
func ParseAgentOutput(r io.Reader, logger *slog.Logger) (models.HostSections, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}
	hs := models.NewHostSections()

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxAgentLine)

	var (
		current   *blockHeader
		piggyback bool
	)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")

		if m := piggybackHeader.FindStringSubmatch(line); m != nil {
			piggyback = m[1] != ""
			current = nil
			continue
		}
		if piggyback {
			continue
		}

		if m := sectionHeader.FindStringSubmatch(line); m != nil {
			current = nil
			if m[1] == "" {
				continue
			}
			h, err := parseHeader(m[1])
			if err != nil {
				logger.Warn("section: skip agent block", "header", line, "error", err.Error())
				continue
			}
			current = &h
			if _, ok := hs.Sections[h.name]; !ok {
				hs.Sections[h.name] = models.StringTable{}
			}
			if h.cached != nil {
				hs.CacheInfo[h.name] = *h.cached
			}
			continue
		}

		if current == nil {
			continue
		}
		if !current.nostrip {
			line = strings.TrimSpace(line)
		}
		if line == "" && current.sep == "" {
			continue
		}

		var row []string
		if current.sep == "" {
			row = strings.Fields(line)
		} else {
			row = strings.Split(line, current.sep)
		}
		hs.Sections[current.name] = append(hs.Sections[current.name], row)
	}
	if err := sc.Err(); err != nil {
		return hs, fmt.Errorf("section: read agent output: %w", err)
	}
	return hs, nil
}
