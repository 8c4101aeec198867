package router

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"relaybot/internal/relay"
	"relaybot/internal/translate"
	"relaybot/internal/transport"
	logx "relaybot/pkg/logx"
)

const (
	sourceChannel = int64(-100)
	adminChat     = int64(777)
)

// recAdapter records outbound traffic; message ids increment per send.
type recAdapter struct {
	mu       sync.Mutex
	nextID   int
	texts    []string
	media    []transport.Media
	mediaTo  []int64
	answered []string
}

func (r *recAdapter) Start(context.Context, chan<- transport.Update) error { return nil }
func (r *recAdapter) Stop(context.Context) error                          { return nil }

func (r *recAdapter) SendText(_ context.Context, to transport.ChatTarget, text string, _ *transport.SendOptions) (transport.MessageRef, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	r.texts = append(r.texts, text)
	return transport.MessageRef{ChatID: to.ChatID, MessageID: r.nextID}, nil
}

func (r *recAdapter) SendMedia(_ context.Context, to transport.ChatTarget, m transport.Media, _ *transport.SendOptions) (transport.MessageRef, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	r.media = append(r.media, m)
	r.mediaTo = append(r.mediaTo, to.ChatID)
	return transport.MessageRef{ChatID: to.ChatID, MessageID: r.nextID}, nil
}

func (r *recAdapter) SendAlbum(_ context.Context, to transport.ChatTarget, items []transport.Media) ([]transport.MessageRef, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	refs := make([]transport.MessageRef, len(items))
	for i := range items {
		r.nextID++
		refs[i] = transport.MessageRef{ChatID: to.ChatID, MessageID: r.nextID}
	}
	return refs, nil
}

func (r *recAdapter) EditText(context.Context, transport.MessageRef, string, *transport.SendOptions) error {
	return nil
}

func (r *recAdapter) EditCaption(context.Context, transport.MessageRef, string, *transport.SendOptions) error {
	return nil
}

func (r *recAdapter) AnswerCallback(_ context.Context, id string, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.answered = append(r.answered, id)
	return nil
}

func (r *recAdapter) sentTexts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.texts...)
}

func (r *recAdapter) sentMedia() []transport.Media {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]transport.Media(nil), r.media...)
}

type harness struct {
	rt     *Router
	ad     *recAdapter
	store  *relay.Store
	toggle *relay.Toggle
	ss     *relay.Sessions
	agg    *relay.Aggregator
}

// newHarness wires a router over real relay components and a recording
// adapter. Spawn runs inline so assertions are deterministic.
func newHarness(t *testing.T, moderated bool) *harness {
	t.Helper()
	ad := &recAdapter{}
	store := relay.NewStore()
	toggle := relay.NewToggle(moderated)
	ss := relay.NewSessions()
	admin := transport.ChatTarget{ChatID: adminChat}

	tr := translate.Func(func(_ context.Context, text, _, dst string) (string, error) {
		return "[" + dst + "] " + text, nil
	})
	planner := relay.NewPlanner(relay.PlannerDeps{
		Routes:     []relay.Route{{Lang: "en", Channel: -200}},
		SourceLang: "ru",
		Translator: tr,
		Adapter:    ad,
		Store:      store,
		Toggle:     toggle,
		AdminChat:  admin,
		Log:        logx.Nop(),
	})
	spawn := func(_ string, fn func(ctx context.Context)) { fn(context.Background()) }
	agg := relay.NewAggregator(20*time.Millisecond, func(p *relay.Post) {
		spawn("plan-album", func(ctx context.Context) { planner.Plan(ctx, p) })
	}, logx.Nop())
	mod := relay.NewModerator(store, ss, ad, admin, nil, logx.Nop())

	rt := New(Deps{
		SourceChannel: sourceChannel,
		AdminChat:     admin,
		RouteCount:    1,
		Adapter:       ad,
		Aggregator:    agg,
		Planner:       planner,
		Moderator:     mod,
		Toggle:        toggle,
		Store:         store,
		Sessions:      ss,
		Spawn:         spawn,
		Log:           logx.Nop(),
	})
	return &harness{rt: rt, ad: ad, store: store, toggle: toggle, ss: ss, agg: agg}
}

func channelPost(id int, chatID int64, text string) transport.Update {
	return transport.Update{
		Kind: transport.UpdateChannelPost,
		Message: &transport.Message{
			ID:     id,
			ChatID: chatID,
			Kind:   transport.MediaText,
			Text:   text,
		},
	}
}

func adminMessage(from int64, text string) transport.Update {
	return transport.Update{
		Kind: transport.UpdateMessage,
		Message: &transport.Message{
			ID:     1,
			ChatID: adminChat,
			FromID: from,
			Kind:   transport.MediaText,
			Text:   text,
		},
	}
}

func callback(chatID int64, data string) transport.Update {
	return transport.Update{
		Kind: transport.UpdateCallback,
		Callback: &transport.Callback{
			ID:     "cb-1",
			FromID: 42,
			ChatID: chatID,
			Data:   data,
		},
	}
}

func TestDispatchIgnoresOtherChannels(t *testing.T) {
	t.Parallel()
	h := newHarness(t, false)

	h.rt.dispatch(context.Background(), channelPost(1, -999, "elsewhere"))

	if len(h.ad.sentMedia())+len(h.ad.sentTexts()) != 0 {
		t.Fatal("post from another channel reached the pipeline")
	}
}

func TestDispatchDropsForwardedPosts(t *testing.T) {
	t.Parallel()
	h := newHarness(t, false)

	u := channelPost(1, sourceChannel, "fwd")
	u.Message.Forwarded = true
	h.rt.dispatch(context.Background(), u)

	if len(h.ad.sentMedia()) != 0 {
		t.Fatal("forwarded post was relayed")
	}
}

func TestDispatchRelaysStandalonePost(t *testing.T) {
	t.Parallel()
	h := newHarness(t, false)

	h.rt.dispatch(context.Background(), channelPost(5, sourceChannel, "hello"))

	media := h.ad.sentMedia()
	if len(media) != 1 || media[0].Caption != "[en] hello" {
		t.Fatalf("unexpected relay output: %v", media)
	}
}

func TestDispatchBuffersAlbumFragments(t *testing.T) {
	t.Parallel()
	h := newHarness(t, false)

	u := channelPost(5, sourceChannel, "cap")
	u.Message.AlbumID = "alb"
	u.Message.Kind = transport.MediaPhoto
	u.Message.FileID = "f1"
	h.rt.dispatch(context.Background(), u)

	if h.agg.PendingAlbums() != 1 {
		t.Fatalf("PendingAlbums = %d, want 1", h.agg.PendingAlbums())
	}
	if len(h.ad.sentMedia()) != 0 {
		t.Fatal("fragment relayed before debounce")
	}
}

func TestCallbackApproveFlowsThroughModeration(t *testing.T) {
	t.Parallel()
	h := newHarness(t, true)

	// Seed a pending item the way the planner would.
	h.rt.dispatch(context.Background(), channelPost(9, sourceChannel, "text"))
	if !h.store.Has(relay.Key{Lang: "en", ID: "9"}) {
		t.Fatal("planner did not create the review item")
	}

	h.rt.dispatch(context.Background(), callback(adminChat, "mod:approve:en:9"))

	h.ad.mu.Lock()
	answered := len(h.ad.answered)
	h.ad.mu.Unlock()
	if answered != 1 {
		t.Fatalf("AnswerCallback calls = %d, want 1", answered)
	}
	if h.store.Has(relay.Key{Lang: "en", ID: "9"}) {
		t.Fatal("item still pending after approval")
	}
	var sent bool
	for _, m := range h.ad.sentMedia() {
		if m.Caption == "[en] text" {
			sent = true
		}
	}
	if !sent {
		t.Fatal("approved content never reached the destination")
	}
}

func TestCallbackOutsideAdminChatIsAnsweredButIgnored(t *testing.T) {
	t.Parallel()
	h := newHarness(t, true)
	h.rt.dispatch(context.Background(), channelPost(9, sourceChannel, "text"))

	h.rt.dispatch(context.Background(), callback(-555, "mod:approve:en:9"))

	h.ad.mu.Lock()
	answered := len(h.ad.answered)
	h.ad.mu.Unlock()
	if answered != 1 {
		t.Fatal("callback must be answered even when ignored")
	}
	if !h.store.Has(relay.Key{Lang: "en", ID: "9"}) {
		t.Fatal("foreign-chat callback acted on the item")
	}
}

func TestCallbackMalformedDataIsHarmless(t *testing.T) {
	t.Parallel()
	h := newHarness(t, true)

	for _, data := range []string{"", "mod", "mod:approve", "mod:approve:en", "other:approve:en:1"} {
		h.rt.dispatch(context.Background(), callback(adminChat, data))
	}
	if len(h.ad.sentMedia()) != 0 {
		t.Fatal("malformed callback produced sends")
	}
}

func TestToggleCommandFlipsAndReplies(t *testing.T) {
	t.Parallel()
	h := newHarness(t, false)

	h.rt.dispatch(context.Background(), adminMessage(42, "/toggle_moderation"))

	if !h.toggle.Enabled() {
		t.Fatal("toggle not flipped")
	}
	texts := h.ad.sentTexts()
	if len(texts) != 1 || !strings.Contains(texts[0], "enabled") {
		t.Fatalf("unexpected reply: %v", texts)
	}

	h.rt.dispatch(context.Background(), adminMessage(42, "/toggle_moderation@relaybot"))
	if h.toggle.Enabled() {
		t.Fatal("suffixed command not recognized")
	}
}

func TestPendingCommandListsItems(t *testing.T) {
	t.Parallel()
	h := newHarness(t, true)

	h.rt.dispatch(context.Background(), adminMessage(42, "/pending"))
	texts := h.ad.sentTexts()
	if len(texts) != 1 || !strings.Contains(texts[0], "Nothing is waiting") {
		t.Fatalf("unexpected empty-pending reply: %v", texts)
	}

	h.rt.dispatch(context.Background(), channelPost(3, sourceChannel, "x"))
	h.rt.dispatch(context.Background(), adminMessage(42, "/pending"))
	texts = h.ad.sentTexts()
	last := texts[len(texts)-1]
	if !strings.Contains(last, "EN") || !strings.Contains(last, "3") {
		t.Fatalf("pending list missing the item: %q", last)
	}
}

func TestStatusCommandReportsCounts(t *testing.T) {
	t.Parallel()
	h := newHarness(t, true)
	h.rt.dispatch(context.Background(), channelPost(3, sourceChannel, "x"))

	h.rt.dispatch(context.Background(), adminMessage(42, "/status"))

	texts := h.ad.sentTexts()
	last := texts[len(texts)-1]
	if !strings.Contains(last, "Moderation: on") || !strings.Contains(last, "Routes: 1") || !strings.Contains(last, "Pending review: 1") {
		t.Fatalf("unexpected status: %q", last)
	}
}

func TestFreeTextFeedsOpenEditSession(t *testing.T) {
	t.Parallel()
	h := newHarness(t, true)
	h.rt.dispatch(context.Background(), channelPost(4, sourceChannel, "orig"))

	h.rt.dispatch(context.Background(), callback(adminChat, "mod:edit:en:4"))
	if !h.ss.Active(42) {
		t.Fatal("edit callback did not open a session")
	}

	h.rt.dispatch(context.Background(), adminMessage(42, "replacement text"))

	var sent bool
	for _, m := range h.ad.sentMedia() {
		if m.Caption == "replacement text" {
			sent = true
		}
	}
	if !sent {
		t.Fatal("edited text never sent")
	}
	if h.store.Has(relay.Key{Lang: "en", ID: "4"}) {
		t.Fatal("item still pending after edited send")
	}
}

func TestFreeTextWithoutSessionIsIgnored(t *testing.T) {
	t.Parallel()
	h := newHarness(t, false)

	h.rt.dispatch(context.Background(), adminMessage(42, "just chatting"))

	if len(h.ad.sentTexts()) != 0 {
		t.Fatal("sessionless free text produced a reply")
	}
}

func TestDispatchLoopStopsOnClosedChannel(t *testing.T) {
	t.Parallel()
	h := newHarness(t, false)

	ch := make(chan transport.Update)
	close(ch)
	if err := h.rt.DispatchLoop(context.Background(), ch); err != nil {
		t.Fatalf("DispatchLoop on closed channel: %v", err)
	}
}
