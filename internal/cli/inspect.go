package cli

import (
	"fmt"
	"io"
	"regexp"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"
	"github.com/vburojevic/ttycast/internal/domain"
	"github.com/vburojevic/ttycast/internal/filter"
	"github.com/vburojevic/ttycast/internal/ingest"
	"github.com/vburojevic/ttycast/internal/output"
	"github.com/vburojevic/ttycast/internal/ttylog"
	"github.com/vburojevic/ttycast/internal/tui"
)

// InspectCmd traces the decoder's verdict for every frame of a capture
type InspectCmd struct {
	File    string   `arg:"" help:"Raw ttylog capture (optionally zstd) or a sensor log-closed event (JSON)"`
	Sensor  string   `default:"${config_sensor}" help:"Sensor name for raw captures"`
	Pattern string   `short:"p" help:"Regex matched against the payload preview"`
	Exclude []string `short:"x" help:"Regex excluding frames by payload preview (repeatable)"`
	Where   []string `short:"w" help:"Field filter such as op=write, channel!=5, dir=2, len>=10, verdict=accept (repeatable)"`
	Limit   int      `short:"n" help:"Show at most N frames (0 shows all)"`
	UI      bool     `help:"Browse frames interactively"`
}

// inspection is the result of tracing one capture.
type inspection struct {
	records []domain.FrameRecord
	summary *domain.InspectSummary
}

// Run executes the inspect command
func (c *InspectCmd) Run(globals *Globals) error {
	if err := validateFlags(globals, c.UI, false); err != nil {
		return err
	}

	pipeline, err := c.pipeline(globals)
	if err != nil {
		return err
	}

	capture, err := loadCapture(globals, c.File, c.Sensor)
	if err != nil {
		return err
	}

	res := inspectCapture(capture, pipeline, c.Limit)
	globals.Debug("inspected %s: %d frames, %d shown", c.File, res.summary.Frames, res.summary.Shown)

	switch {
	case c.UI:
		return runFrameBrowser(globals, tui.New(c.File, res.records, res.summary))
	case globals.Format == "ndjson":
		w := output.NewNDJSONWriter(globals.Stdout)
		for i := range res.records {
			if err := w.Write(&res.records[i]); err != nil {
				return err
			}
		}
		return w.Write(res.summary)
	default:
		if err := renderFrameTable(globals.Stdout, res.records); err != nil {
			return err
		}
		fmt.Fprintln(globals.Stdout, res.summary.Summary())
		return nil
	}
}

func (c *InspectCmd) pipeline(globals *Globals) (*filter.Pipeline, error) {
	var pattern *regexp.Regexp
	if c.Pattern != "" {
		re, err := regexp.Compile(c.Pattern)
		if err != nil {
			return nil, outputErrorCommon(globals, "INVALID_PATTERN", fmt.Sprintf("invalid regex pattern: %s", err))
		}
		pattern = re
	}

	excludes := make([]*regexp.Regexp, 0, len(c.Exclude))
	for _, x := range c.Exclude {
		re, err := regexp.Compile(x)
		if err != nil {
			return nil, outputErrorCommon(globals, "INVALID_PATTERN", fmt.Sprintf("invalid exclude pattern: %s", err))
		}
		excludes = append(excludes, re)
	}

	var where *filter.WhereFilter
	if len(c.Where) > 0 {
		wf, err := filter.NewWhereFilter(c.Where)
		if err != nil {
			return nil, outputErrorCommon(globals, "INVALID_WHERE", err.Error(),
				"fields: op, channel, dir, len, sec, index, offset, verdict, text")
		}
		where = wf
	}

	return filter.NewPipeline(pattern, excludes, where), nil
}

// inspectCapture runs a decode pass and records every frame it saw. Metadata
// is not needed to trace frames, so missing ids are filled in.
func inspectCapture(capture *ingest.Capture, pipeline *filter.Pipeline, limit int) inspection {
	session, sensor := capture.Session, capture.Sensor
	if session == "" {
		session = "unknown"
	}
	if sensor == "" {
		sensor = "unknown"
	}

	var records []domain.FrameRecord
	index := 0
	d := ttylog.Decoder{Observe: func(f ttylog.Frame, v ttylog.Verdict) {
		rec := frameRecord(index, f, v)
		index++
		if !pipeline.Match(&rec) {
			return
		}
		if limit > 0 && len(records) >= limit {
			return
		}
		records = append(records, rec)
	}}
	t, stats, _ := d.Decode(capture.Data, session, sensor)

	summary := &domain.InspectSummary{
		Type:          "inspect_summary",
		SchemaVersion: domain.SchemaVersion,
		Source:        capture.Source,
		Frames:        stats.Frames,
		Shown:         len(records),
		Accepted:      stats.Accepted,
		Skipped: lo.MapKeys(stats.Skipped, func(_ int, v ttylog.Verdict) string {
			return v.String()
		}),
		Closed:    stats.Closed,
		Truncated: stats.Truncated,
		Consumed:  stats.Consumed,
		Size:      len(capture.Data),
	}
	if t != nil {
		summary.Duration = float64(t.Duration)
	}
	if stats.Frames > 0 {
		ch := stats.Channel
		summary.Channel = &ch
	}
	if stats.Direction != 0 {
		dir := int32(stats.Direction)
		summary.Direction = &dir
	}
	return inspection{records: records, summary: summary}
}

func frameRecord(index int, f ttylog.Frame, v ttylog.Verdict) domain.FrameRecord {
	return domain.FrameRecord{
		Type:          "frame",
		SchemaVersion: domain.SchemaVersion,
		Index:         index,
		Offset:        f.Offset,
		Op:            f.Op.String(),
		OpCode:        int32(f.Op),
		Channel:       f.Channel,
		Direction:     int32(f.Direction),
		Length:        f.Length,
		Sec:           f.Sec,
		Usec:          f.Usec,
		Elapsed:       ttylog.Elapsed(f.Sec, f.Usec),
		Verdict:       v.String(),
		Preview:       domain.Preview(f.Payload),
	}
}

func renderFrameTable(w io.Writer, records []domain.FrameRecord) error {
	table := tablewriter.NewWriter(w)
	table.Header("#", "Offset", "Op", "Chan", "Dir", "Len", "Elapsed", "Verdict", "Payload")
	rows := lo.Map(records, func(r domain.FrameRecord, _ int) []string {
		return []string{
			strconv.Itoa(r.Index),
			strconv.Itoa(r.Offset),
			r.Op,
			strconv.FormatUint(uint64(r.Channel), 10),
			strconv.Itoa(int(r.Direction)),
			strconv.Itoa(int(r.Length)),
			strconv.FormatFloat(r.Elapsed, 'f', 3, 64),
			r.Verdict,
			r.Preview,
		}
	})
	if err := table.Bulk(rows); err != nil {
		return err
	}
	return table.Render()
}
