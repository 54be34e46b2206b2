package timeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	errs "tweetcrawl/pkg/errors"
	"tweetcrawl/pkg/logger"
)

// scriptedDriver replays a fixed sequence of probes, repeating the last one
type scriptedDriver struct {
	probes  []Probe
	calls   int
	clicks  []string
	removed []string
	clickFn func(label string)
}

func (d *scriptedDriver) Probe(ctx context.Context) (Probe, error) {
	i := d.calls
	if i >= len(d.probes) {
		i = len(d.probes) - 1
	}
	d.calls++
	return d.probes[i], nil
}

func (d *scriptedDriver) Remove(ctx context.Context, id string) error {
	d.removed = append(d.removed, id)
	if id == "gone" {
		return errors.New("no node")
	}
	return nil
}

func (d *scriptedDriver) ClickTab(ctx context.Context, label string) error {
	d.clicks = append(d.clicks, label)
	if d.clickFn != nil {
		d.clickFn(label)
	}
	return nil
}

func testOptions() Options {
	return Options{
		WaitTimeout:      50 * time.Millisecond,
		PollInterval:     time.Millisecond,
		ReloadWorkaround: true,
		TargetTab:        "Likes",
		AlternateTab:     "Media",
	}
}

func TestNextReturnsFrontItem(t *testing.T) {
	el := &Element{ID: "c1", HTML: "<article></article>"}
	driver := &scriptedDriver{probes: []Probe{{}, {}, {Element: el}}}

	feed := NewFeed(driver, testOptions(), logger.NewNopLogger())
	got, err := feed.Next(context.Background())

	require.NoError(t, err)
	assert.Equal(t, *el, got)
	assert.Equal(t, 3, driver.calls)
	assert.Empty(t, driver.clicks)
}

func TestNextPrefersItemOverBanner(t *testing.T) {
	el := &Element{ID: "c1", HTML: "<article></article>"}
	driver := &scriptedDriver{probes: []Probe{{Element: el, ErrorBanner: true}}}

	feed := NewFeed(driver, testOptions(), logger.NewNopLogger())
	got, err := feed.Next(context.Background())

	require.NoError(t, err)
	assert.Equal(t, *el, got)
	assert.Empty(t, driver.clicks)
}

func TestNextTimesOut(t *testing.T) {
	driver := &scriptedDriver{probes: []Probe{{}}}

	feed := NewFeed(driver, testOptions(), logger.NewNopLogger())
	_, err := feed.Next(context.Background())

	require.Error(t, err)
	assert.True(t, errs.IsType(err, errs.ErrorTypeTimeout))
}

func TestNextRecoversFromBanner(t *testing.T) {
	el := &Element{ID: "c9", HTML: "<article></article>"}
	driver := &scriptedDriver{probes: []Probe{{ErrorBanner: true}}}
	driver.clickFn = func(label string) {
		if label == "Likes" {
			driver.probes = []Probe{{Element: el}}
			driver.calls = 0
		}
	}

	reloads := 0
	opts := testOptions()
	opts.OnReload = func() { reloads++ }
	log := logger.NewTestLogger()

	got, err := NewFeed(driver, opts, log).Next(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "c9", got.ID)
	assert.Equal(t, []string{"Media", "Likes"}, driver.clicks)
	assert.Equal(t, 1, reloads)
	assert.True(t, log.HasMessage("Timeline asked to reload, switching tabs"))
}

func TestNextBannerPersistsAfterWorkaround(t *testing.T) {
	driver := &scriptedDriver{probes: []Probe{{ErrorBanner: true}}}

	_, err := NewFeed(driver, testOptions(), logger.NewNopLogger()).Next(context.Background())

	require.Error(t, err)
	assert.True(t, errs.IsType(err, errs.ErrorTypeTimeout))
	assert.Equal(t, []string{"Media", "Likes"}, driver.clicks)
}

func TestNextBannerWithoutWorkaround(t *testing.T) {
	driver := &scriptedDriver{probes: []Probe{{ErrorBanner: true}}}
	opts := testOptions()
	opts.ReloadWorkaround = false

	_, err := NewFeed(driver, opts, logger.NewNopLogger()).Next(context.Background())

	require.Error(t, err)
	assert.True(t, errs.IsType(err, errs.ErrorTypeTimeout))
	assert.Empty(t, driver.clicks)
}

func TestNextHonoursCancellation(t *testing.T) {
	driver := &scriptedDriver{probes: []Probe{{}}}
	opts := testOptions()
	opts.WaitTimeout = time.Hour
	opts.PollInterval = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewFeed(driver, opts, logger.NewNopLogger()).Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFrontAndAdvance(t *testing.T) {
	driver := &scriptedDriver{probes: []Probe{{}}}
	log := logger.NewTestLogger()
	feed := NewFeed(driver, testOptions(), log)

	_, err := feed.Front(context.Background())
	assert.True(t, errs.IsType(err, errs.ErrorTypeExtraction))

	feed.Advance(context.Background(), Element{ID: "c1"})
	feed.Advance(context.Background(), Element{ID: "gone"})

	assert.Equal(t, []string{"c1", "gone"}, driver.removed)
	assert.Len(t, log.GetMessagesByLevel("WARN"), 1)
}
