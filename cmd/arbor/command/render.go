package command

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/brimdata/arbor/api"
	"github.com/brimdata/arbor/cli/outputflags"
	"github.com/brimdata/arbor/hist"
	"github.com/brimdata/arbor/selector"
	"github.com/brimdata/arbor/value"
	"github.com/guptarohit/asciigraph"
	"github.com/olekukonko/tablewriter"
)

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	t := tablewriter.NewWriter(w)
	t.SetHeader(header)
	t.SetAutoFormatHeaders(false)
	t.SetAlignment(tablewriter.ALIGN_RIGHT)
	return t
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', 6, 64)
}

func writeBranches(w io.Writer, format string, infos []api.BranchInfo) error {
	if format == outputflags.FormatJSON {
		return writeJSON(w, infos)
	}
	t := newTable(w, "branch", "kind", "count", "entries", "baskets", "bytes")
	t.SetAlignment(tablewriter.ALIGN_LEFT)
	for _, info := range infos {
		kind := info.Kind
		if info.Class != "" {
			kind = info.Class
		}
		t.Append([]string{
			info.Name,
			kind,
			info.Count,
			strconv.FormatInt(info.Entries, 10),
			strconv.Itoa(info.Baskets),
			strconv.FormatInt(info.Bytes, 10),
		})
	}
	t.Render()
	return nil
}

func writeHist(w io.Writer, format string, height int, h *hist.Hist) error {
	switch format {
	case outputflags.FormatJSON:
		return writeJSON(w, h)
	case outputflags.FormatASCII:
		if h.Dim == 1 {
			return plotHist(w, height, h)
		}
	}
	if h.Dim == 2 {
		return tableHist2D(w, h)
	}
	t := newTable(w, "bin", h.X.Title, "count")
	for k := 0; k <= h.X.Bins+1; k++ {
		var label string
		switch k {
		case 0:
			label = "underflow"
		case h.X.Bins + 1:
			label = "overflow"
		default:
			label = h.X.Label(k)
		}
		if (k == 0 || k == h.X.Bins+1) && h.At(k, 0) == 0 {
			continue
		}
		t.Append([]string{strconv.Itoa(k), label, formatFloat(h.At(k, 0))})
	}
	t.Render()
	return nil
}

func plotHist(w io.Writer, height int, h *hist.Hist) error {
	counts := make([]float64, h.X.Bins)
	for k := range counts {
		counts[k] = h.At(k+1, 0)
	}
	caption := fmt.Sprintf("%s [%s, %s) entries %d", h.X.Title, h.X.Label(1), formatFloat(h.X.Max), h.Entries)
	if h.X.IsLabels() {
		caption = fmt.Sprintf("%s (%d labels) entries %d", h.X.Title, h.X.Bins, h.Entries)
	}
	if h.Title != "" {
		caption = h.Title + ": " + caption
	}
	_, err := fmt.Fprintln(w, asciigraph.Plot(counts, asciigraph.Height(height), asciigraph.Caption(caption)))
	return err
}

// tableHist2D writes one row per X bin and one column per Y bin, regular
// bins only.
func tableHist2D(w io.Writer, h *hist.Hist) error {
	header := []string{h.X.Title + " \\ " + h.Y.Title}
	for ky := 1; ky <= h.Y.Bins; ky++ {
		header = append(header, h.Y.Label(ky))
	}
	t := newTable(w, header...)
	for kx := 1; kx <= h.X.Bins; kx++ {
		row := []string{h.X.Label(kx)}
		for ky := 1; ky <= h.Y.Bins; ky++ {
			row = append(row, formatFloat(h.At(kx, ky)))
		}
		t.Append(row)
	}
	t.Render()
	return nil
}

func writeDump(w io.Writer, format string, names []string, dump *selector.Dump) error {
	if format == outputflags.FormatJSON {
		type record struct {
			Entry  int64                  `json:"entry"`
			Values map[string]value.Value `json:"values"`
		}
		records := make([]record, len(dump.Records))
		for k, rec := range dump.Records {
			records[k] = record{Entry: dump.Entries[k], Values: rec}
		}
		return writeJSON(w, records)
	}
	t := newTable(w, append([]string{"entry"}, names...)...)
	for k, rec := range dump.Records {
		row := []string{strconv.FormatInt(dump.Entries[k], 10)}
		for _, name := range names {
			row = append(row, rec[name].String())
		}
		t.Append(row)
	}
	t.Render()
	return nil
}

func writeStats(w io.Writer, format string, stats *selector.Stats) error {
	if format == outputflags.FormatJSON {
		return writeJSON(w, stats.Summaries)
	}
	t := newTable(w, "column", "count", "labels", "min", "max", "mean", "stddev", "distinct")
	for _, s := range stats.Summaries {
		t.Append([]string{
			s.Name,
			strconv.FormatInt(s.Count, 10),
			strconv.FormatInt(s.Labels, 10),
			formatFloat(s.Min),
			formatFloat(s.Max),
			formatFloat(s.Mean),
			formatFloat(s.Stddev),
			strconv.FormatUint(s.Distinct, 10),
		})
	}
	t.Render()
	return nil
}
