// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BharathVasireddy/redstudio-nginx-rtmp/internal/overlay"
	"github.com/BharathVasireddy/redstudio-nginx-rtmp/internal/restream"
	"github.com/BharathVasireddy/redstudio-nginx-rtmp/internal/sysmetrics"
)

type fakeConfig struct {
	rec restream.Record
	err error
}

func (f fakeConfig) Load(context.Context) (restream.Record, error) { return f.rec, f.err }

type fakeMetrics sysmetrics.Metrics

func (f fakeMetrics) Sample(context.Context) sysmetrics.Metrics { return sysmetrics.Metrics(f) }

type fakeStats struct {
	xml []byte
	err error
}

func (f fakeStats) Fetch(context.Context) ([]byte, error) { return f.xml, f.err }

func f64(v float64) *float64 { return &v }

// healthyRecord has no overlay or visibility findings.
func healthyRecord() restream.Record {
	rec := restream.DefaultRecord()
	rec.Overlays = []overlay.Overlay{}
	return rec
}

func calmMetrics() fakeMetrics {
	return fakeMetrics{
		Supported: true,
		CPU:       sysmetrics.CPU{UsagePct: f64(12.5)},
		Memory:    sysmetrics.Memory{UsedPct: f64(40)},
	}
}

func statDoc(ingest, live string) []byte {
	return []byte(fmt.Sprintf(`<rtmp><server>
<application><name>ingest</name><live>%s</live></application>
<application><name>live</name><live>%s</live></application>
</server></rtmp>`, ingest, live))
}

func ingestStream(fps, codec, sampleRate, channels string) string {
	return fmt.Sprintf(`<stream><name>obs</name><meta>
<video><width>1920</width><height>1080</height>%s%s</video>
<audio><codec>AAC</codec>%s%s</audio>
</meta></stream>`,
		optional("frame_rate", fps), optional("codec", codec),
		optional("sample_rate", sampleRate), optional("channels", channels))
}

func optional(tag, v string) string {
	if v == "" {
		return ""
	}
	return fmt.Sprintf("<%s>%s</%s>", tag, v, tag)
}

const liveStream = `<stream><name>stream</name></stream>`

func evaluate(t *testing.T, rec restream.Record, m fakeMetrics, stats fakeStats) Report {
	t.Helper()
	r, err := NewEvaluator(fakeConfig{rec: rec}, m, stats, EvaluatorOptions{}).Evaluate(context.Background())
	require.NoError(t, err)
	return r
}

func messages(ws []Warning) []string {
	out := make([]string, len(ws))
	for i, w := range ws {
		out[i] = string(w.Level) + ": " + w.Message
	}
	return out
}

func TestEvaluateCleanStreamHasNoWarnings(t *testing.T) {
	r := evaluate(t, healthyRecord(), calmMetrics(),
		fakeStats{xml: statDoc(ingestStream("29.9", "H264", "48000", "2"), liveStream)})

	assert.True(t, r.Supported)
	assert.Empty(t, r.Warnings)
	assert.True(t, r.Ingest.Active)
	require.NotNil(t, r.Ingest.LiveStream)
	assert.Equal(t, "obs", r.Ingest.Name)
	assert.True(t, r.Live.Active)
	assert.Equal(t, "stream", r.Live.Name)
}

func TestEvaluateLowFrameRateMonoAudio(t *testing.T) {
	r := evaluate(t, healthyRecord(), calmMetrics(),
		fakeStats{xml: statDoc(ingestStream("15", "H264", "48000", "1"), liveStream)})

	assert.Equal(t, []string{
		"warning: Frame rate is 15.0 fps. Use constant 30 or 60 fps in OBS.",
		"warning: Mono audio detected. Stereo audio is recommended for stable playback.",
	}, messages(r.Warnings))
}

func TestEvaluateIngestWithoutLiveIsCritical(t *testing.T) {
	for _, m := range []fakeMetrics{calmMetrics(), {Supported: false}, {Supported: true}} {
		r := evaluate(t, healthyRecord(), m,
			fakeStats{xml: statDoc(ingestStream("30", "H264", "48000", "2"), "")})

		var critical []string
		for _, w := range r.Warnings {
			if w.Level == SeverityCritical {
				critical = append(critical, w.Message)
			}
		}
		assert.Equal(t, []string{"Ingest is active but live output is not. The overlay pipeline may be down."}, critical)
		assert.False(t, r.Live.Active)
		assert.Nil(t, r.Live.LiveStream)
	}
}

func TestEvaluateFullOrder(t *testing.T) {
	rec := restream.DefaultRecord()
	rec.PublicHLS = false
	rec.Overlays = nil
	for i := range 4 {
		o := overlay.Default()
		o.ID = fmt.Sprintf("ovl-%d", i)
		o.Enabled = true
		rec.Overlays = append(rec.Overlays, o)
	}
	m := fakeMetrics{
		Supported: true,
		CPU:       sysmetrics.CPU{UsagePct: f64(93.25)},
		Memory:    sysmetrics.Memory{UsedPct: f64(91)},
	}

	r := evaluate(t, rec, m,
		fakeStats{xml: statDoc(ingestStream("27", "VP6", "44100", "1"), "")})

	assert.Equal(t, []string{
		"warning: An enabled overlay has no image file. Upload an image or disable it.",
		"warning: More than 3 overlays are enabled. This can increase CPU load and cause stutter.",
		"info: HLS access is disabled. Local players and embeds will show offline.",
		"critical: CPU usage is 93.2%. High CPU can cause dropped frames.",
		"warning: Memory usage is 91.0%. This can cause buffering and stutter.",
		"critical: Ingest is active but live output is not. The overlay pipeline may be down.",
		"warning: Video codec is VP6. H.264 is recommended for smooth playback.",
		"warning: Non-standard frame rate (27.0 fps). Use 30 or 60 fps for smoother HLS.",
		"warning: Audio sample rate is 44100 Hz. Set OBS audio to 48 kHz.",
		"warning: Mono audio detected. Stereo audio is recommended for stable playback.",
	}, messages(r.Warnings))
	assert.Equal(t, OverlayCounts{Total: 4, EnabledCount: 4}, r.Overlays)
	assert.Equal(t, SeverityCritical, Highest(r.Warnings))
}

func TestEvaluateCPUWarningBand(t *testing.T) {
	m := calmMetrics()
	m.CPU.UsagePct = f64(80)
	r := evaluate(t, healthyRecord(), m, fakeStats{xml: statDoc("", "")})

	assert.Equal(t, []string{
		"warning: CPU usage is 80.0%. Consider reducing overlays or output bitrate.",
		"info: No ingest detected. Start OBS to populate stream checks.",
	}, messages(r.Warnings))
}

func TestEvaluateStatsUnavailableReturnsEarly(t *testing.T) {
	r := evaluate(t, healthyRecord(), fakeMetrics{Supported: false},
		fakeStats{err: errors.New("RTMP stats unavailable: connection refused")})

	assert.False(t, r.Supported)
	assert.Equal(t, "RTMP stats unavailable: connection refused", r.Error)
	assert.Equal(t, []string{
		"info: CPU metrics are unavailable on this server. Monitor system load to avoid stutter.",
	}, messages(r.Warnings))
	assert.False(t, r.Ingest.Active)
}

func TestEvaluateEmptyStatsBody(t *testing.T) {
	r := evaluate(t, healthyRecord(), calmMetrics(), fakeStats{xml: []byte{}})

	assert.False(t, r.Supported)
	assert.Equal(t, "RTMP stats unavailable", r.Error)
}

func TestEvaluateMalformedStatsMeansNoIngest(t *testing.T) {
	r := evaluate(t, healthyRecord(), calmMetrics(), fakeStats{xml: []byte("<rtmp><server>")})

	assert.True(t, r.Supported)
	assert.Equal(t, []string{"info: No ingest detected. Start OBS to populate stream checks."}, messages(r.Warnings))
}

func TestEvaluateMissingFrameRateIsInfo(t *testing.T) {
	r := evaluate(t, healthyRecord(), calmMetrics(),
		fakeStats{xml: statDoc(ingestStream("", "h264", "", ""), liveStream)})

	assert.Equal(t, []string{
		"info: Frame rate not reported. Ensure OBS is set to constant FPS (30 or 60).",
	}, messages(r.Warnings))
}

func TestEvaluatePrefersConfiguredLiveStream(t *testing.T) {
	live := `<stream><name>preview</name></stream><stream><name>main</name></stream>`
	e := NewEvaluator(fakeConfig{rec: healthyRecord()}, calmMetrics(),
		fakeStats{xml: statDoc("", live)}, EvaluatorOptions{StreamName: "main"})

	r, err := e.Evaluate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "main", r.Live.Name)

	e = NewEvaluator(fakeConfig{rec: healthyRecord()}, calmMetrics(),
		fakeStats{xml: statDoc("", live)}, EvaluatorOptions{StreamName: "absent"})
	r, err = e.Evaluate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "preview", r.Live.Name)
}

func TestEvaluateCustomThresholds(t *testing.T) {
	th := DefaultThresholds()
	th.CPUWarning = 10
	e := NewEvaluator(fakeConfig{rec: healthyRecord()}, calmMetrics(),
		fakeStats{xml: statDoc(ingestStream("30", "H264", "48000", "2"), liveStream)},
		EvaluatorOptions{Thresholds: func() Thresholds { return th }})

	r, err := e.Evaluate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{
		"warning: CPU usage is 12.5%. Consider reducing overlays or output bitrate.",
	}, messages(r.Warnings))
}

func TestEvaluateConfigFailure(t *testing.T) {
	_, err := NewEvaluator(fakeConfig{err: errors.New("disk gone")}, calmMetrics(), fakeStats{}, EvaluatorOptions{}).
		Evaluate(context.Background())
	assert.ErrorContains(t, err, "disk gone")
}

func TestReportJSONShape(t *testing.T) {
	r := evaluate(t, healthyRecord(), fakeMetrics{Supported: false},
		fakeStats{xml: statDoc(ingestStream("30", "H264", "48000", "2"), "")})

	data, err := json.Marshal(r)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, map[string]any{"active": false}, decoded["live"])
	ingest, ok := decoded["ingest"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, ingest["active"])
	assert.Equal(t, "obs", ingest["name"])
	assert.Equal(t, map[string]any{"supported": false}, decoded["metrics"])
	assert.NotContains(t, decoded, "error")
}
