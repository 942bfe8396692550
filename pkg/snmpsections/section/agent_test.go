package section_test

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vpbank/snmp_sections/models"
	"github.com/vpbank/snmp_sections/pkg/snmpsections/section"
)

const agentOutput = `<<<check_mk>>>
Version: 2.2.0
AgentOS: linux
<<<df>>>
/dev/sda1   ext4  1000  500  500  50% /
/dev/sdb1   xfs   2000  100 1900   5% /data

<<<mssql_versions:sep(124)>>>
MSSQL_SQLEXPRESS|14.0.1000.169||
<<<mrpe:cached(1700000000,300)>>>
(check_ntp) NTP 0 OK
<<<>>>
stray line outside any block
<<<<db01>>>>
<<<df>>>
/dev/foreign ext4 1 1 0 100% /
<<<<>>>>
<<<df>>>
tmpfs tmpfs 10 0 10 0% /run
<<<bad-name>>>
ignored row
`

func TestParseAgentOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	hs, err := section.ParseAgentOutput(strings.NewReader(agentOutput), logger)
	require.NoError(t, err)

	assert.Equal(t, models.StringTable{
		{"Version:", "2.2.0"},
		{"AgentOS:", "linux"},
	}, hs.Sections["check_mk"])

	assert.Equal(t, models.StringTable{
		{"/dev/sda1", "ext4", "1000", "500", "500", "50%", "/"},
		{"/dev/sdb1", "xfs", "2000", "100", "1900", "5%", "/data"},
		{"tmpfs", "tmpfs", "10", "0", "10", "0%", "/run"},
	}, hs.Sections["df"], "repeated blocks append, piggyback data is skipped")

	assert.Equal(t, models.StringTable{
		{"MSSQL_SQLEXPRESS", "14.0.1000.169", "", ""},
	}, hs.Sections["mssql_versions"])

	require.Contains(t, hs.CacheInfo, models.SectionName("mrpe"))
	assert.Equal(t, models.CacheInfo{
		CachedAt: time.Unix(1700000000, 0).UTC(),
		Interval: 300 * time.Second,
	}, hs.CacheInfo["mrpe"])
	assert.Len(t, hs.Sections["mrpe"], 1)

	assert.Len(t, hs.Sections, 4)
	assert.Contains(t, buf.String(), "skip agent block")
}

func TestParseAgentOutput_Nostrip(t *testing.T) {
	in := "<<<raw:sep(0):nostrip>>>\n  padded  \n"
	hs, err := section.ParseAgentOutput(strings.NewReader(in), nil)
	require.NoError(t, err)
	assert.NotContains(t, hs.Sections, models.SectionName("raw"), "sep(0) is rejected")

	in = "<<<raw:sep(59):nostrip>>>\n  a; b \n"
	hs, err = section.ParseAgentOutput(strings.NewReader(in), nil)
	require.NoError(t, err)
	assert.Equal(t, models.StringTable{{"  a", " b "}}, hs.Sections["raw"])
}

func TestParseAgentOutput_EmptyBlock(t *testing.T) {
	hs, err := section.ParseAgentOutput(strings.NewReader("<<<empty>>>\n<<<uptime>>>\n12345 678\n"), nil)
	require.NoError(t, err)
	require.Contains(t, hs.Sections, models.SectionName("empty"))
	assert.Empty(t, hs.Sections["empty"])

	reg := section.NewRegistry()
	b := section.BuildBroker(reg, map[models.HostKey]models.HostSections{node1: hs}, nil)
	res, err := b.AllParsingResults(node1)
	require.NoError(t, err)
	require.Len(t, res, 1, "a section without rows is not available")
	assert.Equal(t, models.ParsedSectionName("uptime"), res[0].ParsedSection)
}

func TestParseAgentOutput_BadCachedHeader(t *testing.T) {
	for _, header := range []string{
		"<<<mrpe:cached(99999999999999999999,300)>>>",
		"<<<mrpe:cached(1700000000,99999999999999999999)>>>",
		"<<<mrpe:cached(1700000000,9300000000000)>>>",
	} {
		t.Run(header, func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(slog.NewTextHandler(&buf, nil))
			hs, err := section.ParseAgentOutput(strings.NewReader(header+"\n(check_ntp) OK\n"), logger)
			require.NoError(t, err)
			assert.NotContains(t, hs.Sections, models.SectionName("mrpe"))
			assert.NotContains(t, hs.CacheInfo, models.SectionName("mrpe"))
			assert.Contains(t, buf.String(), "skip agent block")
		})
	}
}
