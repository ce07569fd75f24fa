package render

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"aegis/internal/interval"
	"aegis/internal/logging"
	"aegis/internal/media/ffmpeg"
	"aegis/internal/services"
	"aegis/internal/tracking"
)

// Options tune the censoring filters.
type Options struct {
	VideoPreset    string
	AudioCodec     string
	BlurRadius     int
	PixelateFactor int
}

// Request describes one render. Mute intervals and blur regions are in
// source-local seconds; blur boxes are in pixels of the source frame.
type Request struct {
	Source   string
	Output   string
	Mute     []interval.Interval
	Blur     []tracking.BlurRegion
	HasVideo bool
}

// Noop reports whether the request carries no edits.
func (r Request) Noop() bool { return len(r.Mute) == 0 && len(r.Blur) == 0 }

// Renderer applies mute and blur edits through ffmpeg.
type Renderer struct {
	tool   *ffmpeg.Tool
	opts   Options
	logger *slog.Logger
}

// New builds a renderer.
func New(tool *ffmpeg.Tool, opts Options, logger *slog.Logger) *Renderer {
	if opts.VideoPreset == "" {
		opts.VideoPreset = "ultrafast"
	}
	if opts.AudioCodec == "" {
		opts.AudioCodec = "aac"
	}
	if opts.BlurRadius <= 0 {
		opts.BlurRadius = 20
	}
	if opts.PixelateFactor <= 0 {
		opts.PixelateFactor = 16
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Renderer{tool: tool, opts: opts, logger: logging.NewComponentLogger(logger, "render")}
}

// Render writes the censored media to req.Output. The file appears
// atomically; a failed render leaves no partial output behind.
func (r *Renderer) Render(ctx context.Context, req Request) error {
	if strings.TrimSpace(req.Source) == "" || strings.TrimSpace(req.Output) == "" {
		return services.Wrap(services.ErrValidation, "render", "prepare", "source and output required", nil)
	}
	if err := os.MkdirAll(filepath.Dir(req.Output), 0o755); err != nil {
		return services.Wrap(services.ErrConfiguration, "render", "prepare", "ensure output dir", err)
	}
	tmp := tempPath(req.Output)
	args := r.Args(req, tmp)

	start := time.Now()
	if err := r.tool.Run(ctx, args...); err != nil {
		_ = os.Remove(tmp)
		return services.Wrap(services.ErrExternalTool, "render", "ffmpeg", filepath.Base(req.Source), err)
	}
	if err := os.Rename(tmp, req.Output); err != nil {
		_ = os.Remove(tmp)
		return services.Wrap(services.ErrExternalTool, "render", "finalize output", "", err)
	}
	r.logger.Debug("render complete",
		logging.String("output", req.Output),
		logging.Int("mute_intervals", len(req.Mute)),
		logging.Int("blur_regions", len(req.Blur)),
		logging.Duration("elapsed", time.Since(start)),
	)
	return nil
}

// tempPath keeps the extension so ffmpeg infers the muxer.
func tempPath(output string) string {
	ext := filepath.Ext(output)
	return strings.TrimSuffix(output, ext) + ".partial" + ext
}

// Args builds the ffmpeg argument list (without the common prefix) for req
// writing to dest.
func (r *Renderer) Args(req Request, dest string) []string {
	args := []string{"-i", req.Source}
	if req.Noop() {
		return append(args, "-map", "0", "-c", "copy", dest)
	}

	if req.HasVideo && len(req.Blur) > 0 {
		graph := r.blurGraph(req.Blur)
		args = append(args,
			"-filter_complex", graph,
			"-map", "[vout]",
			"-c:v", "libx264", "-preset", r.opts.VideoPreset, "-crf", "20", "-pix_fmt", "yuv420p",
		)
	} else if req.HasVideo {
		args = append(args, "-map", "0:v:0", "-c:v", "copy")
	} else {
		args = append(args, "-vn")
	}

	args = append(args, "-map", "0:a?")
	switch {
	case len(req.Mute) > 0 && req.HasVideo:
		args = append(args, "-af", muteFilter(req.Mute), "-c:a", r.opts.AudioCodec)
	case len(req.Mute) > 0:
		// Audio-only outputs keep the encoder implied by the output extension.
		args = append(args, "-af", muteFilter(req.Mute))
	default:
		args = append(args, "-c:a", "copy")
	}
	return append(args, "-sn", dest)
}

// muteFilter silences every interval with a single volume filter.
func muteFilter(mute []interval.Interval) string {
	terms := make([]string, 0, len(mute))
	for _, iv := range interval.Merge(mute, 0) {
		terms = append(terms, between(iv))
	}
	return "volume=enable='" + strings.Join(terms, "+") + "':volume=0"
}

// blurGraph packs the regions into lanes and gives each lane one crop branch
// whose position follows its regions over time. The branch count tracks how
// many regions are on screen at once, not how many the timeline holds.
func (r *Renderer) blurGraph(regions []tracking.BlurRegion) string {
	lanes := packLanes(regions)
	n := len(lanes)

	var b strings.Builder
	b.WriteString("[0:v]split=" + strconv.Itoa(n+1) + "[base]")
	for i := range lanes {
		fmt.Fprintf(&b, "[l%d]", i)
	}
	b.WriteString(";")

	for i, l := range lanes {
		pw := max(1, l.w/r.opts.PixelateFactor)
		ph := max(1, l.h/r.opts.PixelateFactor)
		radius := max(1, min(r.opts.BlurRadius, min(l.w, l.h)/4))
		fmt.Fprintf(&b,
			"[l%d]crop=w=%d:h=%d:x=%s:y=%s,scale=%d:%d:flags=neighbor,scale=%d:%d:flags=neighbor,boxblur=%d:1[b%d];",
			i, l.w, l.h, l.position(l.x, "in_w-out_w"), l.position(l.y, "in_h-out_h"),
			pw, ph, l.w, l.h, radius, i,
		)
	}

	prev := "base"
	for i, l := range lanes {
		out := fmt.Sprintf("v%d", i)
		if i == n-1 {
			out = "vout"
		}
		fmt.Fprintf(&b, "[%s][b%d]overlay=x=%s:y=%s:enable='%s'[%s]",
			prev, i, l.position(l.x, "main_w-overlay_w"), l.position(l.y, "main_h-overlay_h"), l.active(), out)
		if i < n-1 {
			b.WriteString(";")
		}
		prev = out
	}
	return b.String()
}

// laneSlack is the largest factor by which a lane may pad a region's own
// area before the region gets a lane of its own.
const laneSlack = 2

// contiguous is the gap below which two spans are treated as touching.
const contiguous = 1e-6

// lane is a run of time-disjoint regions obscured through one crop branch
// sized to the largest box it carries.
type lane struct {
	regions []tracking.BlurRegion
	w, h    int
	minArea int
	end     float64
}

// packLanes assigns regions, in start order, to the free lane that grows
// least, opening a new lane when none is free or every free lane would pad
// the region past laneSlack times its area.
func packLanes(regions []tracking.BlurRegion) []*lane {
	ordered := slices.Clone(regions)
	slices.SortStableFunc(ordered, func(a, b tracking.BlurRegion) int { return cmp.Compare(a.Start, b.Start) })

	var lanes []*lane
	for _, reg := range ordered {
		reg.Box = evenBox(reg.Box)
		w, h := reg.Box.Width(), reg.Box.Height()
		area := w * h

		var best *lane
		bestGrowth := 0
		for _, l := range lanes {
			if l.end > reg.Start+contiguous {
				continue
			}
			nw, nh := max(l.w, w), max(l.h, h)
			if nw*nh > laneSlack*min(l.minArea, area) {
				continue
			}
			if growth := nw*nh - l.w*l.h; best == nil || growth < bestGrowth {
				best, bestGrowth = l, growth
			}
		}
		if best == nil {
			best = &lane{minArea: area}
			lanes = append(lanes, best)
		}
		best.regions = append(best.regions, reg)
		best.w, best.h = max(best.w, w), max(best.h, h)
		best.minArea = min(best.minArea, area)
		best.end = max(best.end, reg.End)
	}
	return lanes
}

// x and y centre the lane's crop on each region's box.
func (l *lane) x(reg tracking.BlurRegion) int {
	return max(0, reg.Box.X1-(l.w-reg.Box.Width())/2) &^ 1
}

func (l *lane) y(reg tracking.BlurRegion) int {
	return max(0, reg.Box.Y1-(l.h-reg.Box.Height())/2) &^ 1
}

// position renders a coordinate of the lane's regions as an expression over t,
// clipped to limit so the crop and the overlay agree near the frame edge.
// A lane holding a single region gets a plain number.
func (l *lane) position(coord func(tracking.BlurRegion) int, limit string) string {
	steps := l.steps(coord)
	if len(l.regions) == 1 {
		return strconv.Itoa(steps[0].value)
	}
	terms := make([]string, 0, len(steps))
	for i, st := range steps {
		if st.value == 0 {
			continue
		}
		// Touching steps are half-open so a timestamp on the seam counts once.
		window := between(st.Interval)
		if i+1 < len(steps) && steps[i+1].Start-st.End < contiguous {
			window = fmt.Sprintf("gte(t,%s)*lt(t,%s)", seconds(st.Start), seconds(st.End))
		}
		terms = append(terms, window+"*"+strconv.Itoa(st.value))
	}
	if len(terms) == 0 {
		return "0"
	}
	return "'clip(" + strings.Join(terms, "+") + ",0," + limit + ")'"
}

// active is the overlay enable expression covering every region in the lane.
func (l *lane) active() string {
	steps := l.steps(func(tracking.BlurRegion) int { return 1 })
	terms := make([]string, 0, len(steps))
	for _, st := range steps {
		terms = append(terms, between(st.Interval))
	}
	return strings.Join(terms, "+")
}

type step struct {
	interval.Interval
	value int
}

// steps coalesces consecutive touching regions that share a coordinate.
func (l *lane) steps(coord func(tracking.BlurRegion) int) []step {
	var out []step
	for _, reg := range l.regions {
		v := coord(reg)
		if n := len(out); n > 0 && out[n-1].value == v && reg.Start-out[n-1].End < contiguous {
			out[n-1].End = max(out[n-1].End, reg.End)
			continue
		}
		out = append(out, step{Interval: reg.Interval, value: v})
	}
	return out
}

// evenBox aligns the box to even coordinates so chroma planes line up in
// 4:2:0 video.
func evenBox(b tracking.Box) tracking.Box {
	b.X1 &^= 1
	b.Y1 &^= 1
	w := max(2, (b.X2-b.X1)&^1)
	h := max(2, (b.Y2-b.Y1)&^1)
	b.X2, b.Y2 = b.X1+w, b.Y1+h
	return b
}

func between(iv interval.Interval) string {
	return fmt.Sprintf("between(t,%s,%s)", seconds(iv.Start), seconds(iv.End))
}

func seconds(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}
