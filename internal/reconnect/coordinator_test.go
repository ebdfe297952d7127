// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package reconnect

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

const twoIngestStreams = `<rtmp><server><application><name>ingest</name><live>
<stream><name>obs</name></stream><stream><name>backup</name></stream>
</live></application></server></rtmp>`

type fakeControl struct {
	stats    []byte
	statsErr error
	fail     map[string]error
	drops    []string
}

func (f *fakeControl) Fetch(context.Context) ([]byte, error) {
	return f.stats, f.statsErr
}

func (f *fakeControl) DropPublisher(_ context.Context, app, name string) (string, error) {
	key := app + "/" + name
	f.drops = append(f.drops, key)
	if err := f.fail[key]; err != nil {
		return "", err
	}
	return "1", nil
}

func TestTriggerDropsIngestThenLive(t *testing.T) {
	ctl := &fakeControl{stats: []byte(twoIngestStreams)}

	ok, msg := New(ctl, Options{}).Trigger(context.Background())

	assert.True(t, ok)
	assert.Equal(t, "ingest:obs -> 1; ingest:backup -> 1; live:stream -> 1", msg)
	assert.Equal(t, []string{"ingest/obs", "ingest/backup", "live/stream"}, ctl.drops)
}

func TestTriggerPartialFailureStillSucceeds(t *testing.T) {
	ctl := &fakeControl{
		stats: []byte(twoIngestStreams),
		fail:  map[string]error{"ingest/obs": errors.New("boom"), "live/stream": errors.New("gone")},
	}

	ok, msg := New(ctl, Options{}).Trigger(context.Background())

	assert.True(t, ok)
	assert.Equal(t, "ingest:backup -> 1", msg)
}

func TestTriggerStatsFailureStillDropsLive(t *testing.T) {
	ctl := &fakeControl{statsErr: errors.New("RTMP stats unavailable: connection refused")}

	ok, msg := New(ctl, Options{LiveApp: "out", StreamName: "main"}).Trigger(context.Background())

	assert.True(t, ok)
	assert.Equal(t, "out:main -> 1", msg)
	assert.Equal(t, []string{"out/main"}, ctl.drops)
}

func TestTriggerEverythingFails(t *testing.T) {
	t.Run("stats error is the fallback", func(t *testing.T) {
		ctl := &fakeControl{
			statsErr: errors.New("stats down"),
			fail:     map[string]error{},
		}
		ctl.fail["live/stream"] = errors.New("drop down")

		ok, msg := New(ctl, Options{}).Trigger(context.Background())
		assert.False(t, ok)
		assert.Equal(t, "drop down", msg)
	})

	t.Run("no ingest streams and live drop fails", func(t *testing.T) {
		ctl := &fakeControl{
			stats: []byte(`<rtmp/>`),
			fail:  map[string]error{"live/stream": errors.New("refused")},
		}
		ok, msg := New(ctl, Options{}).Trigger(context.Background())
		assert.False(t, ok)
		assert.Equal(t, "refused", msg)
	})
}

func TestTriggerMalformedStatsDropsOnlyLive(t *testing.T) {
	ctl := &fakeControl{stats: []byte("<rtmp><server>")}

	ok, _ := New(ctl, Options{}).Trigger(context.Background())

	assert.True(t, ok)
	assert.Equal(t, []string{"live/stream"}, ctl.drops)
}

func TestTriggerThrottle(t *testing.T) {
	ctl := &fakeControl{stats: []byte(`<rtmp/>`)}
	c := New(ctl, Options{MinInterval: time.Hour})

	ok, _ := c.Trigger(context.Background())
	assert.True(t, ok)

	ok, msg := c.Trigger(context.Background())
	assert.False(t, ok)
	assert.Equal(t, ThrottledMessage, msg)
	assert.Len(t, ctl.drops, 1, "throttled trigger makes no upstream calls")
}
