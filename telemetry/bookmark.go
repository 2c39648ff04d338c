package telemetry

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/pthm-cable/herd/systems"
)

// BookmarkType identifies the type of bookmark.
type BookmarkType string

const (
	BookmarkStampede    BookmarkType = "stampede"
	BookmarkGridlock    BookmarkType = "gridlock"
	BookmarkStaleMaps   BookmarkType = "stale_maps"
	BookmarkHerdSettled BookmarkType = "herd_settled"
)

// Thresholds for bookmark detection.
const (
	// Run-away share that counts as a stampede, and how far above the
	// rolling average it must be.
	stampedeFraction  = 0.25
	stampedeRise      = 3.0
	stampedeMinAgents = 10

	// Blocked forward checks per agent-tick.
	gridlockRate = 0.5

	// Squared coefficient of variation of the median target distance over
	// settledWindows windows.
	settledWindows = 5
	settledDistCV2 = 0.01
)

// Bookmark represents an automatically triggered bookmark.
type Bookmark struct {
	Type        BookmarkType
	Tick        int64
	Description string
}

// LogBookmark logs the bookmark using slog.
func (b Bookmark) LogBookmark() {
	slog.Info("bookmark",
		"type", string(b.Type),
		"tick", b.Tick,
		"description", b.Description,
	)
}

// BookmarkDetector detects interesting moments in the herd's behavior.
type BookmarkDetector struct {
	// Rolling history (circular buffer)
	history     []WindowStats
	historySize int
	historyIdx  int
	historyFull bool

	gridlocked         bool // suppresses repeats until the rate falls again
	settledWindowCount int  // consecutive windows with a steady target distance
}

// NewBookmarkDetector creates a detector with the given history size.
func NewBookmarkDetector(historySize int) *BookmarkDetector {
	if historySize < settledWindows {
		historySize = settledWindows
	}
	return &BookmarkDetector{
		history:     make([]WindowStats, historySize),
		historySize: historySize,
	}
}

// Check analyzes the latest stats and returns any triggered bookmarks.
func (bd *BookmarkDetector) Check(stats WindowStats) []Bookmark {
	var bookmarks []Bookmark

	if bd.historyFull || bd.historyIdx > 0 {
		if b := bd.checkStampede(stats); b != nil {
			bookmarks = append(bookmarks, *b)
		}
		if b := bd.checkStaleMaps(stats); b != nil {
			bookmarks = append(bookmarks, *b)
		}
		if b := bd.checkSettled(stats); b != nil {
			bookmarks = append(bookmarks, *b)
		}
	}
	if b := bd.checkGridlock(stats); b != nil {
		bookmarks = append(bookmarks, *b)
	}

	bd.addToHistory(stats)
	return bookmarks
}

func (bd *BookmarkDetector) addToHistory(stats WindowStats) {
	bd.history[bd.historyIdx] = stats
	bd.historyIdx = (bd.historyIdx + 1) % bd.historySize
	if bd.historyIdx == 0 {
		bd.historyFull = true
	}
}

// getHistory returns the stored windows, oldest first.
func (bd *BookmarkDetector) getHistory() []WindowStats {
	if !bd.historyFull {
		return bd.history[:bd.historyIdx]
	}
	out := make([]WindowStats, 0, bd.historySize)
	out = append(out, bd.history[bd.historyIdx:]...)
	return append(out, bd.history[:bd.historyIdx]...)
}

// checkStampede fires when the run-away share jumps well above its recent
// average.
func (bd *BookmarkDetector) checkStampede(stats WindowStats) *Bookmark {
	history := bd.getHistory()
	if len(history) < 2 || stats.Agents < stampedeMinAgents {
		return nil
	}
	var sum float64
	for _, h := range history {
		sum += h.Fraction(systems.StateRunAway)
	}
	avg := sum / float64(len(history))
	cur := stats.Fraction(systems.StateRunAway)
	if cur >= stampedeFraction && cur > avg*stampedeRise {
		return &Bookmark{
			Type:        BookmarkStampede,
			Tick:        stats.WindowEndTick,
			Description: fmt.Sprintf("%.0f%% of the herd running away, average %.0f%%", cur*100, avg*100),
		}
	}
	return nil
}

// checkGridlock fires once each time the blocked rate crosses the threshold.
func (bd *BookmarkDetector) checkGridlock(stats WindowStats) *Bookmark {
	if stats.BlockedRate < gridlockRate {
		bd.gridlocked = false
		return nil
	}
	if bd.gridlocked {
		return nil
	}
	bd.gridlocked = true
	return &Bookmark{
		Type:        BookmarkGridlock,
		Tick:        stats.WindowEndTick,
		Description: fmt.Sprintf("%.0f%% of forward checks blocked", stats.BlockedRate*100),
	}
}

// checkStaleMaps fires when a window went by without a new movement map.
func (bd *BookmarkDetector) checkStaleMaps(stats WindowStats) *Bookmark {
	history := bd.getHistory()
	prev := history[len(history)-1]
	if stats.MapVersion == 0 || stats.MapVersion != prev.MapVersion {
		return nil
	}
	return &Bookmark{
		Type:        BookmarkStaleMaps,
		Tick:        stats.WindowEndTick,
		Description: fmt.Sprintf("movement map stuck at version %d (%d refreshes dropped)", stats.MapVersion, stats.MapsDropped),
	}
}

// checkSettled fires once the median distance to target has held steady for
// several windows.
func (bd *BookmarkDetector) checkSettled(stats WindowStats) *Bookmark {
	history := bd.getHistory()
	if len(history) < settledWindows-1 || stats.Agents == 0 {
		bd.settledWindowCount = 0
		return nil
	}

	recent := append(slices.Clone(history[len(history)-(settledWindows-1):]), stats)
	var sum float64
	for _, h := range recent {
		sum += h.TargetDistP50
	}
	mean := sum / float64(len(recent))
	var variance float64
	for _, h := range recent {
		d := h.TargetDistP50 - mean
		variance += d * d
	}
	variance /= float64(len(recent))

	if mean > 0 && variance/(mean*mean) < settledDistCV2 {
		bd.settledWindowCount++
	} else {
		bd.settledWindowCount = 0
	}

	if bd.settledWindowCount == 1 {
		return &Bookmark{
			Type:        BookmarkHerdSettled,
			Tick:        stats.WindowEndTick,
			Description: fmt.Sprintf("median distance to target steady at %.1f over %d windows", mean, settledWindows),
		}
	}
	return nil
}
