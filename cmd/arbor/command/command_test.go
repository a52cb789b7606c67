package command_test

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/brimdata/arbor/api"
	"github.com/brimdata/arbor/catalog"
	"github.com/brimdata/arbor/cmd/arbor/command"
	"github.com/brimdata/arbor/hist"
	"github.com/brimdata/arbor/tree"
	"github.com/brimdata/arbor/tree/treetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCatalog(t *testing.T) string {
	b := treetest.New("events").Compress("ZS")
	n := b.Branch(tree.NoBranch, tree.Branch{Name: "n", Kind: tree.KindInt32}, treetest.Entries[int32](0, 2, 1, 3), 2)
	b.Branch(tree.NoBranch, tree.Branch{Name: "arr", Kind: tree.KindInt16, Count: n.ID, Count2: tree.NoBranch},
		treetest.Arrays([]int16{}, []int16{1, 2}, []int16{3}, []int16{4, 5, 6}), 3)
	b.Compress("")
	b.Branch(tree.NoBranch, tree.Branch{Name: "x", Kind: tree.KindFloat64}, treetest.Entries(0.5, 1.5, 2.5, 3.5), 1)
	f := b.Build(t)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "events.bin"), f.Data, 0o644))
	text, err := catalog.Describe(f.Tree, "events.bin").Marshal()
	require.NoError(t, err)
	path := filepath.Join(dir, "events.yaml")
	require.NoError(t, os.WriteFile(path, text, 0o644))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := command.New()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(append(args, "--log.level", "error"))
	err := cmd.Execute()
	return out.String(), err
}

func TestLs(t *testing.T) {
	path := writeCatalog(t)
	out, err := execute(t, "ls", path, "-f", "json")
	require.NoError(t, err)
	var infos []api.BranchInfo
	require.NoError(t, json.Unmarshal([]byte(out), &infos))
	require.Len(t, infos, 3)
	assert.Equal(t, "n", infos[1].Count)

	out, err = execute(t, "ls", path)
	require.NoError(t, err)
	assert.Contains(t, out, "arr")
	assert.Contains(t, out, "int16")
}

func TestDraw(t *testing.T) {
	path := writeCatalog(t)
	out, err := execute(t, "draw", path, "x", "--bins", "3", "--min", "0", "--max", "3", "-f", "json")
	require.NoError(t, err)
	var h hist.Hist
	require.NoError(t, json.Unmarshal([]byte(out), &h))
	assert.Equal(t, []float64{0, 1, 1, 1, 1}, h.Counts)
	assert.EqualValues(t, 4, h.Entries)

	out, err = execute(t, "draw", path, "x", "--bins", "3", "--min", "0", "--max", "3", "-f", "table")
	require.NoError(t, err)
	assert.Contains(t, out, "overflow")
	assert.NotContains(t, out, "underflow")

	out, err = execute(t, "draw", path, "x", "--title", "spread")
	require.NoError(t, err)
	assert.Contains(t, out, "spread: x [0.5, 3.515) entries 4")
}

func TestDraw2DTable(t *testing.T) {
	path := writeCatalog(t)
	out, err := execute(t, "draw", path, "n", "arr[$size$]", "-f", "table")
	require.NoError(t, err)
	assert.Contains(t, out, "n \\ arr[$size$]")
}

func TestDrawErrors(t *testing.T) {
	path := writeCatalog(t)
	_, err := execute(t, "draw", path, "nope")
	assert.ErrorContains(t, err, "nope")
	_, err = execute(t, "draw", path, "x", "-f", "svg")
	assert.ErrorContains(t, err, "svg")
	_, err = execute(t, "draw", filepath.Join(t.TempDir(), "none.yaml"), "x")
	assert.Error(t, err)
}

type dumped struct {
	Entry  int64                  `json:"entry"`
	Values map[string]interface{} `json:"values"`
}

func TestDump(t *testing.T) {
	path := writeCatalog(t)
	out, err := execute(t, "dump", path, "arr", "x", "-n", "2", "--first", "1", "-f", "json")
	require.NoError(t, err)
	var records []dumped
	require.NoError(t, json.Unmarshal([]byte(out), &records))
	require.Len(t, records, 2)
	assert.EqualValues(t, 1, records[0].Entry)
	assert.Equal(t, []interface{}{1.0, 2.0}, records[0].Values["arr"])
	assert.Equal(t, 2.5, records[1].Values["x"])

	out, err = execute(t, "dump", path, "arr", "-n", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "[]")
}

func TestConfigFile(t *testing.T) {
	path := writeCatalog(t)
	conf := filepath.Join(t.TempDir(), "arbor.yaml")
	require.NoError(t, os.WriteFile(conf, []byte("process:\n  first: 2\n"), 0o644))

	out, err := execute(t, "dump", path, "x", "-f", "json", "--config", conf)
	require.NoError(t, err)
	var records []dumped
	require.NoError(t, json.Unmarshal([]byte(out), &records))
	require.Len(t, records, 2)
	assert.EqualValues(t, 2, records[0].Entry)

	out, err = execute(t, "dump", path, "x", "-f", "json", "--config", conf, "--first", "3")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &records))
	require.Len(t, records, 1)
	assert.EqualValues(t, 3, records[0].Entry)
}

func TestStatsToFile(t *testing.T) {
	path := writeCatalog(t)
	file := filepath.Join(t.TempDir(), "stats.json")
	out, err := execute(t, "stats", path, "x", "arr", "-f", "json", "-o", file)
	require.NoError(t, err)
	assert.Empty(t, out)
	b, err := os.ReadFile(file)
	require.NoError(t, err)
	var summaries []struct {
		Name  string  `json:"name"`
		Count int64   `json:"count"`
		Mean  float64 `json:"mean"`
	}
	require.NoError(t, json.Unmarshal(b, &summaries))
	require.Len(t, summaries, 2)
	assert.EqualValues(t, 4, summaries[0].Count)
	assert.InDelta(t, 3.5, summaries[1].Mean, 1e-12)
}
