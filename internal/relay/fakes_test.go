package relay

import (
	"context"
	"strings"
	"sync"

	"relaybot/internal/storage"
	"relaybot/internal/transport"
)

// fakeAdapter records outbound traffic per method and hands out
// incrementing message ids. Error injection is per method name.
type fakeAdapter struct {
	mu     sync.Mutex
	nextID int

	texts     []sentText
	media     []sentMedia
	albums    []sentAlbum
	textEdits []editOp
	capEdits  []editOp
	answered  []string

	failOn map[string]error
}

type sentText struct {
	To   transport.ChatTarget
	Text string
	Ref  transport.MessageRef
	Opt  *transport.SendOptions
}

type sentMedia struct {
	To    transport.ChatTarget
	Media transport.Media
	Ref   transport.MessageRef
	Opt   *transport.SendOptions
}

type sentAlbum struct {
	To    transport.ChatTarget
	Items []transport.Media
	Refs  []transport.MessageRef
}

type editOp struct {
	Ref  transport.MessageRef
	Text string
}

func newFakeAdapter() *fakeAdapter {
	return &fakeAdapter{failOn: make(map[string]error)}
}

func (f *fakeAdapter) ref(chatID int64) transport.MessageRef {
	f.nextID++
	return transport.MessageRef{ChatID: chatID, MessageID: f.nextID}
}

func (f *fakeAdapter) Start(context.Context, chan<- transport.Update) error { return nil }
func (f *fakeAdapter) Stop(context.Context) error                          { return nil }

func (f *fakeAdapter) SendText(_ context.Context, to transport.ChatTarget, text string, opt *transport.SendOptions) (transport.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failOn["SendText"]; err != nil {
		return transport.MessageRef{}, err
	}
	ref := f.ref(to.ChatID)
	f.texts = append(f.texts, sentText{To: to, Text: text, Ref: ref, Opt: opt})
	return ref, nil
}

func (f *fakeAdapter) SendMedia(_ context.Context, to transport.ChatTarget, m transport.Media, opt *transport.SendOptions) (transport.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failOn["SendMedia"]; err != nil {
		return transport.MessageRef{}, err
	}
	ref := f.ref(to.ChatID)
	f.media = append(f.media, sentMedia{To: to, Media: m, Ref: ref, Opt: opt})
	return ref, nil
}

func (f *fakeAdapter) SendAlbum(_ context.Context, to transport.ChatTarget, items []transport.Media) ([]transport.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failOn["SendAlbum"]; err != nil {
		return nil, err
	}
	refs := make([]transport.MessageRef, len(items))
	for i := range items {
		refs[i] = f.ref(to.ChatID)
	}
	f.albums = append(f.albums, sentAlbum{To: to, Items: items, Refs: refs})
	return refs, nil
}

func (f *fakeAdapter) EditText(_ context.Context, ref transport.MessageRef, text string, _ *transport.SendOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failOn["EditText"]; err != nil {
		return err
	}
	f.textEdits = append(f.textEdits, editOp{Ref: ref, Text: text})
	return nil
}

func (f *fakeAdapter) EditCaption(_ context.Context, ref transport.MessageRef, caption string, _ *transport.SendOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failOn["EditCaption"]; err != nil {
		return err
	}
	f.capEdits = append(f.capEdits, editOp{Ref: ref, Text: caption})
	return nil
}

func (f *fakeAdapter) AnswerCallback(_ context.Context, id string, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answered = append(f.answered, id)
	return nil
}

func (f *fakeAdapter) sentTexts() []sentText {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentText(nil), f.texts...)
}

func (f *fakeAdapter) sentMedia() []sentMedia {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentMedia(nil), f.media...)
}

func (f *fakeAdapter) sentAlbums() []sentAlbum {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentAlbum(nil), f.albums...)
}

// upperTranslator fakes the gateway deterministically: upper-cases the
// text and tags the destination language. It also counts calls.
type upperTranslator struct {
	mu    sync.Mutex
	calls int
}

func (u *upperTranslator) Translate(_ context.Context, text, _, destLang string) (string, error) {
	u.mu.Lock()
	u.calls++
	u.mu.Unlock()
	return "[" + destLang + "] " + strings.ToUpper(text), nil
}

func (u *upperTranslator) callCount() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.calls
}

// memLog is an in-memory delivery store for asserting audit writes.
type memLog struct {
	mu      sync.Mutex
	records []storage.Delivery
}

func (m *memLog) Record(_ context.Context, d storage.Delivery) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, d)
	return nil
}

func (m *memLog) Recent(_ context.Context, n int) ([]storage.Delivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n > len(m.records) {
		n = len(m.records)
	}
	return append([]storage.Delivery(nil), m.records[len(m.records)-n:]...), nil
}

func (m *memLog) Close() error { return nil }

func (m *memLog) outcomes() []storage.Outcome {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]storage.Outcome, 0, len(m.records))
	for _, r := range m.records {
		out = append(out, r.Outcome)
	}
	return out
}
