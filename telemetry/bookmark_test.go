package telemetry

import (
	"testing"

	"github.com/pthm-cable/herd/config"
)

func init() {
	config.MustInit("")
}

func hasBookmark(bookmarks []Bookmark, typ BookmarkType) bool {
	for _, bm := range bookmarks {
		if bm.Type == typ {
			return true
		}
	}
	return false
}

func TestBookmarkDetector_Stampede(t *testing.T) {
	bd := NewBookmarkDetector(10)

	for i := 0; i < 5; i++ {
		bd.Check(WindowStats{WindowEndTick: int64(i * 600), Agents: 100, RunAway: 2, MapVersion: uint64(i + 1)})
	}

	bookmarks := bd.Check(WindowStats{WindowEndTick: 3000, Agents: 100, RunAway: 40, MapVersion: 6})
	if !hasBookmark(bookmarks, BookmarkStampede) {
		t.Error("expected stampede bookmark")
	}
}

func TestBookmarkDetector_NoStampedeWhenSteady(t *testing.T) {
	bd := NewBookmarkDetector(10)

	for i := 0; i < 5; i++ {
		bookmarks := bd.Check(WindowStats{WindowEndTick: int64(i * 600), Agents: 100, RunAway: 30, MapVersion: uint64(i + 1)})
		if i > 0 && hasBookmark(bookmarks, BookmarkStampede) {
			t.Errorf("window %d: stampede on a steady run-away share", i)
		}
	}
}

func TestBookmarkDetector_GridlockFiresOnce(t *testing.T) {
	bd := NewBookmarkDetector(10)

	fired := 0
	rates := []float64{0.1, 0.7, 0.8, 0.9, 0.1, 0.6}
	for i, r := range rates {
		if hasBookmark(bd.Check(WindowStats{WindowEndTick: int64(i), BlockedRate: r}), BookmarkGridlock) {
			fired++
		}
	}
	if fired != 2 {
		t.Errorf("gridlock fired %d times, want 2", fired)
	}
}

func TestBookmarkDetector_StaleMaps(t *testing.T) {
	bd := NewBookmarkDetector(10)
	bd.Check(WindowStats{WindowEndTick: 600, MapVersion: 12})

	if !hasBookmark(bd.Check(WindowStats{WindowEndTick: 1200, MapVersion: 12, MapsDropped: 40}), BookmarkStaleMaps) {
		t.Error("expected stale_maps bookmark")
	}
	if hasBookmark(bd.Check(WindowStats{WindowEndTick: 1800, MapVersion: 13}), BookmarkStaleMaps) {
		t.Error("stale_maps after a new map")
	}
}

func TestBookmarkDetector_HerdSettled(t *testing.T) {
	bd := NewBookmarkDetector(10)

	fired := 0
	for i := 0; i < 10; i++ {
		stats := WindowStats{
			WindowEndTick: int64(i * 600),
			Agents:        100,
			TargetDistP50: 12 + float64(i%2)*0.1,
			MapVersion:    uint64(i + 1),
		}
		if hasBookmark(bd.Check(stats), BookmarkHerdSettled) {
			fired++
		}
	}
	if fired != 1 {
		t.Errorf("herd_settled fired %d times, want 1", fired)
	}
}
