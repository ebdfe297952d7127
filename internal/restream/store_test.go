// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package restream

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BharathVasireddy/redstudio-nginx-rtmp/internal/overlay"
)

var fixedNow = time.Date(2025, 3, 1, 12, 30, 0, 0, time.UTC)

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	return NewStore(Options{DataDir: dir, Now: func() time.Time { return fixedNow }}), dir
}

func patchJSON(t *testing.T, raw string) Patch {
	t.Helper()
	var p Patch
	require.NoError(t, json.Unmarshal([]byte(raw), &p))
	return p
}

func TestLoadWithoutFileReturnsDefaults(t *testing.T) {
	s, dir := newTestStore(t)

	rec, err := s.Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, DefaultRecord(), rec)
	assert.NoFileExists(t, filepath.Join(dir, "restream.json"))
}

func TestLoadSeedsFromTemplate(t *testing.T) {
	dir := t.TempDir()
	tmpl := filepath.Join(dir, "restream.default.json")
	require.NoError(t, os.WriteFile(tmpl, []byte(`{"ingest_key": "seeded", "public_hls": false}`), 0o644))
	s := NewStore(Options{DataDir: filepath.Join(dir, "data"), TemplatePath: tmpl})

	rec, err := s.Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "seeded", rec.IngestKey)
	assert.False(t, rec.PublicHLS)
	assert.True(t, rec.PublicLive)
	assert.FileExists(t, s.Path())
	require.Len(t, rec.Overlays, 1)
	assert.Equal(t, overlay.PrimaryID, rec.Overlays[0].ID)
}

func TestLoadMalformedFileIsAnError(t *testing.T) {
	s, _ := newTestStore(t)
	require.NoError(t, os.WriteFile(s.Path(), []byte("{not json"), 0o644))

	_, err := s.Load(context.Background())
	assert.Error(t, err)
}

func TestSavePartialPreservesAbsentFields(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	_, err := s.Save(ctx, patchJSON(t, `{
		"destinations": [{"id": "yt", "name": "YouTube", "enabled": true, "rtmp_url": "rtmp://a.rtmp.youtube.com/live2", "stream_key": "abcd"}],
		"ingest_key": "secret",
		"public_live": false,
		"overlays": [{"id": "logo1", "enabled": true, "image_file": "logo.png", "opacity": 0.4}]
	}`))
	require.NoError(t, err)
	before, err := s.Load(ctx)
	require.NoError(t, err)

	after, err := s.Save(ctx, patchJSON(t, `{"public_hls": false}`))
	require.NoError(t, err)

	assert.False(t, after.PublicHLS)
	before.PublicHLS = false
	assert.Equal(t, before, after)

	reloaded, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, after, reloaded)
}

func TestSaveRejectsNonListDestinations(t *testing.T) {
	s, _ := newTestStore(t)

	_, err := s.Save(context.Background(), patchJSON(t, `{"destinations": {"id": "x"}}`))
	assert.ErrorIs(t, err, ErrInvalidDestinations)

	_, err = s.Save(context.Background(), patchJSON(t, `{"destinations": null}`))
	assert.ErrorIs(t, err, ErrInvalidDestinations)
	assert.NoFileExists(t, s.Path())
}

func TestSaveSanitizesDestinationsAndKey(t *testing.T) {
	s, _ := newTestStore(t)

	rec, err := s.Save(context.Background(), patchJSON(t, `{
		"destinations": [
			{"id": " a ", "name": "Main", "enabled": 1, "rtmp_url": "rtmp://x/app;evil", "stream_key": "k\n2", "extra": "dropped"},
			"not an object",
			{"name": 42}
		],
		"ingest_key": "  has space "
	}`))
	require.NoError(t, err)

	assert.Equal(t, []Destination{
		{ID: "a", Name: "Main", Enabled: true},
		{Name: "42"},
	}, rec.Destinations)

	rec, err = s.Save(context.Background(), patchJSON(t, `{"ingest_key": "  ok-key  "}`))
	require.NoError(t, err)
	assert.Equal(t, "ok-key", rec.IngestKey)

	rec, err = s.Save(context.Background(), patchJSON(t, `{"ingest_key": "bad key"}`))
	require.NoError(t, err)
	assert.Empty(t, rec.IngestKey)
}

func TestSaveOverlaysExplicitEmptyVersusAbsent(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	rec, err := s.Save(ctx, patchJSON(t, `{"overlays": []}`))
	require.NoError(t, err)
	assert.Empty(t, rec.Overlays)
	assert.Equal(t, overlay.Default(), rec.Overlay)

	rec, err = s.Save(ctx, patchJSON(t, `{"public_live": true}`))
	require.NoError(t, err)
	assert.Empty(t, rec.Overlays, "absent key must not resurrect the default overlay")

	reloaded, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, reloaded.Overlays)
}

func TestSaveLegacyOverlayKey(t *testing.T) {
	s, _ := newTestStore(t)

	rec, err := s.Save(context.Background(), patchJSON(t, `{"overlay": {"enabled": true, "position": "center", "size_mode": "px", "size_value": 64}}`))
	require.NoError(t, err)

	require.Len(t, rec.Overlays, 1)
	o := rec.Overlays[0]
	assert.Equal(t, overlay.PrimaryID, o.ID)
	assert.True(t, o.Enabled)
	assert.Equal(t, overlay.PositionCenter, o.Position)
	assert.Equal(t, overlay.SizePixels, o.SizeMode)
	assert.Equal(t, 64.0, o.SizeValue)
	assert.Equal(t, o, rec.Overlay)
}

func TestSaveWritesVisibilityArtifacts(t *testing.T) {
	s, dir := newTestStore(t)

	_, err := s.Save(context.Background(), patchJSON(t, `{"public_live": true, "public_hls": false}`))
	require.NoError(t, err)

	conf, err := os.ReadFile(filepath.Join(dir, "public-hls.conf"))
	require.NoError(t, err)
	assert.Equal(t, "set $public_hls 0;\n", string(conf))

	var pub PublicConfig
	data, err := os.ReadFile(filepath.Join(dir, "public-config.json"))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &pub))
	assert.Equal(t, PublicConfig{
		PublicLive:     true,
		PublicHLS:      false,
		UpdatedAtEpoch: fixedNow.Unix(),
		UpdatedAt:      "2025-03-01T12:30:00+00:00",
	}, pub)

	_, err = s.Save(context.Background(), patchJSON(t, `{"public_hls": "yes"}`))
	require.NoError(t, err)
	conf, err = os.ReadFile(filepath.Join(dir, "public-hls.conf"))
	require.NoError(t, err)
	assert.Equal(t, "set $public_hls 1;\n", string(conf))
}

func TestUpdateOverlaysFailureWritesNothing(t *testing.T) {
	s, _ := newTestStore(t)

	_, err := s.UpdateOverlays(context.Background(), func([]overlay.Overlay) ([]overlay.Overlay, error) {
		return nil, overlay.ErrOverlayNotFound
	})
	assert.ErrorIs(t, err, overlay.ErrOverlayNotFound)
	assert.NoFileExists(t, s.Path())
}

func TestConcurrentSavesKeepEveryField(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	hidden := patchJSON(t, `{"public_live": false}`)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		keyed := patchJSON(t, fmt.Sprintf(`{"ingest_key": "key-%d"}`, i))
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := s.Save(ctx, keyed)
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			_, err := s.Save(ctx, hidden)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	rec, err := s.Load(ctx)
	require.NoError(t, err)
	assert.False(t, rec.PublicLive)
	assert.Regexp(t, `^key-\d$`, rec.IngestKey)
}

func TestCheckIngestKey(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	ok, err := s.CheckIngestKey(ctx, "anything")
	require.NoError(t, err)
	assert.True(t, ok, "no stored key accepts everyone")

	_, err = s.Save(ctx, patchJSON(t, `{"ingest_key": "obs-123"}`))
	require.NoError(t, err)

	ok, err = s.CheckIngestKey(ctx, " obs-123 ")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.CheckIngestKey(ctx, "obs-124")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEnsureArtifacts(t *testing.T) {
	s, dir := newTestStore(t)

	require.NoError(t, s.EnsureArtifacts(context.Background()))

	st := s.Status().Load()
	assert.False(t, st.Active)
	require.NotNil(t, st.UpdatedAtEpoch)
	assert.Equal(t, fixedNow.Unix(), *st.UpdatedAtEpoch)
	assert.Nil(t, st.StartedAt)

	conf, err := os.ReadFile(filepath.Join(dir, "public-hls.conf"))
	require.NoError(t, err)
	assert.Equal(t, "set $public_hls 1;\n", string(conf))
}

func TestStatusLifecycle(t *testing.T) {
	st := NewStatusStore(t.TempDir())
	start := time.Unix(1_700_000_000, 0)
	end := start.Add(90 * time.Second)

	got, err := st.MarkPublishing(start)
	require.NoError(t, err)
	assert.True(t, got.Active)
	require.NotNil(t, got.StartedAtEpoch)
	assert.Equal(t, start.Unix(), *got.StartedAtEpoch)
	assert.Equal(t, "2023-11-14T22:13:20+00:00", *got.StartedAt)
	assert.Nil(t, got.EndedAt)

	got, err = st.MarkIdle(end)
	require.NoError(t, err)
	assert.False(t, got.Active)
	require.NotNil(t, got.EndedAtEpoch)
	assert.Equal(t, end.Unix(), *got.EndedAtEpoch)
	assert.Equal(t, start.Unix(), *got.StartedAtEpoch, "start survives publish_done")

	assert.Equal(t, got, st.Load())

	got, err = st.MarkPublishing(end.Add(time.Minute))
	require.NoError(t, err)
	assert.Nil(t, got.EndedAtEpoch, "a new publish clears the previous end")
}

func TestOverlayManagerAgainstStore(t *testing.T) {
	s, dir := newTestStore(t)
	ctx := context.Background()
	mgr := overlay.NewManager(s, s.Files(), s.Sanitizer())

	img, err := mgr.StoreImage(ctx, overlay.Upload{
		OverlayID:     "logo1",
		MIME:          "image/png",
		Data:          []byte("png-bytes"),
		SuggestedName: "Studio Logo.png",
	})
	require.NoError(t, err)
	assert.Equal(t, "logo1", img.OverlayID)
	assert.FileExists(t, filepath.Join(dir, "overlays", img.ImageFile))

	rec, err := s.Load(ctx)
	require.NoError(t, err)
	require.Len(t, rec.Overlays, 2)
	assert.Equal(t, overlay.PrimaryID, rec.Overlays[0].ID)
	assert.Equal(t, "logo1", rec.Overlays[1].ID)
	assert.Equal(t, img.ImageFile, rec.Overlays[1].ImageFile)

	require.NoError(t, mgr.Delete(ctx, "logo1"))
	assert.NoFileExists(t, filepath.Join(dir, "overlays", img.ImageFile))

	rec, err = s.Load(ctx)
	require.NoError(t, err)
	require.Len(t, rec.Overlays, 1)
	assert.Equal(t, overlay.PrimaryID, rec.Overlays[0].ID)

	require.NoError(t, mgr.ClearAll(ctx))
	rec, err = s.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, rec.Overlays)
}
