package relay

import (
	"sync"
	"time"

	"relaybot/internal/transport"
	logx "relaybot/pkg/logx"
)

// Aggregator collects album fragments that arrive as independent
// updates and emits one frozen Post per album after a quiet period.
//
// Telegram gives no end-of-group marker, so a fixed debounce after the
// first fragment is the only available completeness signal. This is a
// heuristic: a fragment arriving later than the debounce window starts
// a new Post. The delay must exceed the worst expected inter-fragment
// gap; too short splits albums, too long delays moderation visibility.
type Aggregator struct {
	debounce time.Duration
	emit     func(*Post)
	log      logx.Logger

	mu      sync.Mutex
	buffers map[string]*albumBuffer
}

type albumBuffer struct {
	items []MediaItem
	first int           // source message id of the first fragment
	seen  map[int]bool  // dedup by source message id
}

func NewAggregator(debounce time.Duration, emit func(*Post), log logx.Logger) *Aggregator {
	if debounce <= 0 {
		debounce = time.Second
	}
	return &Aggregator{
		debounce: debounce,
		emit:     emit,
		log:      log,
		buffers:  make(map[string]*albumBuffer),
	}
}

// OnFragment appends one album fragment in arrival order. The first
// fragment of an album creates the buffer and arms the debounce timer;
// duplicate deliveries of the same source message are ignored.
func (a *Aggregator) OnFragment(m *transport.Message) {
	if m.AlbumID == "" {
		return
	}
	a.mu.Lock()
	buf, ok := a.buffers[m.AlbumID]
	if !ok {
		buf = &albumBuffer{first: m.ID, seen: make(map[int]bool)}
		a.buffers[m.AlbumID] = buf
		albumID := m.AlbumID
		time.AfterFunc(a.debounce, func() { a.flush(albumID) })
	}
	if !buf.seen[m.ID] {
		buf.seen[m.ID] = true
		buf.items = append(buf.items, MediaItem{
			Kind:   m.Kind,
			FileID: m.FileID,
			Text:   m.Text,
		})
	}
	a.mu.Unlock()
}

// flush runs when the debounce timer fires. A missing buffer means it
// was already drained; that is a silent no-op.
func (a *Aggregator) flush(albumID string) {
	a.mu.Lock()
	buf, ok := a.buffers[albumID]
	if ok {
		delete(a.buffers, albumID)
	}
	a.mu.Unlock()

	if !ok || len(buf.items) == 0 {
		return
	}

	post := &Post{
		SourceMessageID: buf.first,
		AlbumID:         albumID,
		Items:           buf.items,
	}
	a.log.Debug("album aggregated",
		logx.String("album_id", albumID),
		logx.Int("items", len(post.Items)))
	a.emit(post)
}

// PendingAlbums reports how many albums are still buffering.
func (a *Aggregator) PendingAlbums() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.buffers)
}
