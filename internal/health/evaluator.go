// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package health

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	xglog "github.com/BharathVasireddy/redstudio-nginx-rtmp/internal/log"
	"github.com/BharathVasireddy/redstudio-nginx-rtmp/internal/overlay"
	"github.com/BharathVasireddy/redstudio-nginx-rtmp/internal/restream"
	"github.com/BharathVasireddy/redstudio-nginx-rtmp/internal/rtmp"
	"github.com/BharathVasireddy/redstudio-nginx-rtmp/internal/sysmetrics"
	"github.com/BharathVasireddy/redstudio-nginx-rtmp/internal/telemetry"
)

// Severity ranks a stream warning.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Warning is one finding of the stream health report.
type Warning struct {
	Level   Severity `json:"level"`
	Message string   `json:"message"`
}

// Thresholds are the tunables of the stream health checks.
type Thresholds struct {
	CPUWarning         float64
	CPUCritical        float64
	MemoryWarning      float64
	MaxEnabledOverlays int
	MinFrameRate       float64
	FrameRateTolerance float64
	StandardFrameRates []float64
	ExpectedSampleRate int
	MinChannels        int
}

// DefaultThresholds returns the values the admin UI copy is written for.
func DefaultThresholds() Thresholds {
	return Thresholds{
		CPUWarning:         80,
		CPUCritical:        90,
		MemoryWarning:      90,
		MaxEnabledOverlays: 3,
		MinFrameRate:       24,
		FrameRateTolerance: 0.5,
		StandardFrameRates: []float64{24, 25, 30, 50, 60},
		ExpectedSampleRate: 48000,
		MinChannels:        2,
	}
}

// StreamState describes whether an application has a publisher and, if so,
// the stream that represents it.
type StreamState struct {
	Active bool `json:"active"`
	*rtmp.LiveStream
}

// OverlayCounts summarizes the configured overlays.
type OverlayCounts struct {
	Total        int `json:"total"`
	EnabledCount int `json:"enabled_count"`
}

// Report is the stream health report. Warnings keep the order the checks
// found them in.
type Report struct {
	Supported bool               `json:"supported"`
	Warnings  []Warning          `json:"warnings"`
	Ingest    StreamState        `json:"ingest"`
	Live      StreamState        `json:"live"`
	Overlays  OverlayCounts      `json:"overlays"`
	Metrics   sysmetrics.Metrics `json:"metrics"`
	Error     string             `json:"error,omitempty"`
}

// ConfigReader loads the restream configuration.
type ConfigReader interface {
	Load(ctx context.Context) (restream.Record, error)
}

// MetricsReader samples host resources.
type MetricsReader interface {
	Sample(ctx context.Context) sysmetrics.Metrics
}

// StatsFetcher returns the nginx-rtmp statistics document.
type StatsFetcher interface {
	Fetch(ctx context.Context) ([]byte, error)
}

// EvaluatorOptions names the applications inspected by the evaluator.
type EvaluatorOptions struct {
	IngestApp  string
	LiveApp    string
	StreamName string
	// Thresholds is consulted on every evaluation; nil uses DefaultThresholds.
	Thresholds func() Thresholds
}

// Evaluator builds stream health reports.
type Evaluator struct {
	config  ConfigReader
	metrics MetricsReader
	stats   StatsFetcher
	opts    EvaluatorOptions
	logger  zerolog.Logger
	tracer  trace.Tracer
}

// NewEvaluator wires an Evaluator.
func NewEvaluator(config ConfigReader, metrics MetricsReader, stats StatsFetcher, opts EvaluatorOptions) *Evaluator {
	if opts.IngestApp == "" {
		opts.IngestApp = "ingest"
	}
	if opts.LiveApp == "" {
		opts.LiveApp = "live"
	}
	if opts.StreamName == "" {
		opts.StreamName = "stream"
	}
	if opts.Thresholds == nil {
		opts.Thresholds = DefaultThresholds
	}
	return &Evaluator{
		config:  config,
		metrics: metrics,
		stats:   stats,
		opts:    opts,
		logger:  xglog.WithComponent("health"),
		tracer:  telemetry.Tracer("restreamd/health"),
	}
}

// Evaluate runs every check. Only a configuration read failure is returned
// as an error; an unreachable media server yields an unsupported report.
func (e *Evaluator) Evaluate(ctx context.Context) (Report, error) {
	ctx, span := e.tracer.Start(ctx, "health.evaluate")
	defer span.End()

	r, err := e.evaluate(ctx)
	if err != nil {
		telemetry.RecordError(span, err)
		return r, err
	}
	span.SetAttributes(
		attribute.Int(telemetry.HealthWarningKey, len(r.Warnings)),
		attribute.String(telemetry.HealthLevelKey, string(Highest(r.Warnings))),
	)
	return r, nil
}

func (e *Evaluator) evaluate(ctx context.Context) (Report, error) {
	th := e.opts.Thresholds()
	r := Report{Supported: true, Warnings: []Warning{}}
	warn := func(level Severity, format string, args ...any) {
		r.Warnings = append(r.Warnings, Warning{Level: level, Message: fmt.Sprintf(format, args...)})
	}

	rec, err := e.config.Load(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("load restream config: %w", err)
	}
	enabled := overlay.CountEnabled(rec.Overlays)
	r.Overlays = OverlayCounts{Total: len(rec.Overlays), EnabledCount: enabled}

	for _, o := range rec.Overlays {
		if o.Enabled && o.ImageFile == "" {
			warn(SeverityWarning, "An enabled overlay has no image file. Upload an image or disable it.")
			break
		}
	}
	if enabled > th.MaxEnabledOverlays {
		warn(SeverityWarning, "More than %d overlays are enabled. This can increase CPU load and cause stutter.", th.MaxEnabledOverlays)
	}
	if !rec.PublicHLS {
		warn(SeverityInfo, "HLS access is disabled. Local players and embeds will show offline.")
	}

	r.Metrics = e.metrics.Sample(ctx)
	if !r.Metrics.Supported {
		warn(SeverityInfo, "CPU metrics are unavailable on this server. Monitor system load to avoid stutter.")
	} else {
		if cpu := r.Metrics.CPU.UsagePct; cpu != nil {
			switch {
			case *cpu >= th.CPUCritical:
				warn(SeverityCritical, "CPU usage is %.1f%%. High CPU can cause dropped frames.", *cpu)
			case *cpu >= th.CPUWarning:
				warn(SeverityWarning, "CPU usage is %.1f%%. Consider reducing overlays or output bitrate.", *cpu)
			}
		}
		if mem := r.Metrics.Memory.UsedPct; mem != nil && *mem >= th.MemoryWarning {
			warn(SeverityWarning, "Memory usage is %.1f%%. This can cause buffering and stutter.", *mem)
		}
	}

	xml, err := e.stats.Fetch(ctx)
	if err == nil && len(xml) == 0 {
		err = rtmp.ErrStatsUnavailable
	}
	if err != nil {
		r.Supported = false
		r.Error = err.Error()
		logger := xglog.WithContext(ctx, e.logger)
		logger.Debug().
			Err(err).
			Str(xglog.FieldEvent, "health.stats_unavailable").
			Msg("stream checks skipped")
		return r, nil
	}

	ingest := rtmp.ParseApplication(xml, e.opts.IngestApp)
	live := rtmp.ParseApplication(xml, e.opts.LiveApp)
	if len(ingest) > 0 {
		r.Ingest = StreamState{Active: true, LiveStream: &ingest[0]}
	}
	if len(live) > 0 {
		preferred := &live[0]
		for i := range live {
			if live[i].Name == e.opts.StreamName {
				preferred = &live[i]
				break
			}
		}
		r.Live = StreamState{Active: true, LiveStream: preferred}
	}

	if r.Ingest.Active && !r.Live.Active {
		warn(SeverityCritical, "Ingest is active but live output is not. The overlay pipeline may be down.")
	}
	if !r.Ingest.Active {
		warn(SeverityInfo, "No ingest detected. Start OBS to populate stream checks.")
		return r, nil
	}

	video, audio := r.Ingest.Video, r.Ingest.Audio
	if codec := video.Codec; codec != nil && *codec != "" && strings.ToUpper(*codec) != "H264" {
		warn(SeverityWarning, "Video codec is %s. H.264 is recommended for smooth playback.", *codec)
	}
	if fps := video.FrameRate; fps != nil {
		switch {
		case *fps < th.MinFrameRate:
			warn(SeverityWarning, "Frame rate is %.1f fps. Use constant 30 or 60 fps in OBS.", *fps)
		case !isStandardRate(*fps, th):
			warn(SeverityWarning, "Non-standard frame rate (%.1f fps). Use 30 or 60 fps for smoother HLS.", *fps)
		}
	} else {
		warn(SeverityInfo, "Frame rate not reported. Ensure OBS is set to constant FPS (30 or 60).")
	}
	if sr := audio.SampleRate; sr != nil && *sr != th.ExpectedSampleRate {
		warn(SeverityWarning, "Audio sample rate is %d Hz. Set OBS audio to %g kHz.", *sr, float64(th.ExpectedSampleRate)/1000)
	}
	if ch := audio.Channels; ch != nil && *ch < th.MinChannels {
		warn(SeverityWarning, "Mono audio detected. Stereo audio is recommended for stable playback.")
	}
	return r, nil
}

func isStandardRate(fps float64, th Thresholds) bool {
	for _, rate := range th.StandardFrameRates {
		if math.Abs(fps-rate) <= th.FrameRateTolerance {
			return true
		}
	}
	return false
}

// Highest returns the most severe level in warnings, or "" when empty.
func Highest(warnings []Warning) Severity {
	var top Severity
	rank := map[Severity]int{SeverityInfo: 1, SeverityWarning: 2, SeverityCritical: 3}
	for _, w := range warnings {
		if rank[w.Level] > rank[top] {
			top = w.Level
		}
	}
	return top
}
