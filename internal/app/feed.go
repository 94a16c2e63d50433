package app

import (
	"sync"

	"season-predictions/internal/domain"
)

// Feed fans rebuilt leaderboards out to live subscribers, keyed by season slug.
type Feed struct {
	mu      sync.Mutex
	latest  map[string]domain.Leaderboard
	streams map[string]map[chan domain.Leaderboard]struct{}
}

func NewFeed() *Feed {
	return &Feed{
		latest:  make(map[string]domain.Leaderboard),
		streams: make(map[string]map[chan domain.Leaderboard]struct{}),
	}
}

// Subscribe returns a channel of leaderboard updates for a season. If a
// leaderboard was already published it is delivered first. The caller must
// invoke the returned cancel function to avoid leaks.
func (f *Feed) Subscribe(seasonSlug string) (<-chan domain.Leaderboard, func()) {
	ch := make(chan domain.Leaderboard, 8)

	f.mu.Lock()
	subs, ok := f.streams[seasonSlug]
	if !ok {
		subs = make(map[chan domain.Leaderboard]struct{})
		f.streams[seasonSlug] = subs
	}
	subs[ch] = struct{}{}
	if lb, ok := f.latest[seasonSlug]; ok {
		ch <- lb
	}
	f.mu.Unlock()

	cancel := func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		subs := f.streams[seasonSlug]
		if _, ok := subs[ch]; !ok {
			return
		}
		delete(subs, ch)
		close(ch)
		if len(subs) == 0 {
			delete(f.streams, seasonSlug)
		}
	}
	return ch, cancel
}

// Publish delivers lb to every subscriber of the season. Slow subscribers lose
// their oldest pending update instead of blocking the publisher.
func (f *Feed) Publish(seasonSlug string, lb domain.Leaderboard) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.latest[seasonSlug] = lb
	for ch := range f.streams[seasonSlug] {
		select {
		case ch <- lb:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- lb
		}
	}
}

// Subscribers reports the number of live subscribers of a season.
func (f *Feed) Subscribers(seasonSlug string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.streams[seasonSlug])
}
