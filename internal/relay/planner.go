package relay

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"relaybot/internal/storage"
	"relaybot/internal/translate"
	"relaybot/internal/transport"
	logx "relaybot/pkg/logx"
	"relaybot/pkg/tgui"
)

// Route is one configured (language, destination channel) pair.
type Route struct {
	Lang    string
	Channel int64
}

// RoutesFromMap converts the config routes map into a stable-ordered slice.
func RoutesFromMap(m map[string]int64) []Route {
	routes := make([]Route, 0, len(m))
	for lang, ch := range m {
		routes = append(routes, Route{Lang: lang, Channel: ch})
	}
	sort.Slice(routes, func(i, j int) bool { return routes[i].Lang < routes[j].Lang })
	return routes
}

// Planner expands one frozen Post into per-route work: a direct send
// when moderation is off, or a rendered review item when it is on.
type Planner struct {
	routes     []Route
	sourceLang string
	tr         translate.Translator
	ad         transport.Adapter
	store      *Store
	toggle     *Toggle
	adminChat  transport.ChatTarget
	deliveries storage.Store // may be nil
	log        logx.Logger
}

type PlannerDeps struct {
	Routes     []Route
	SourceLang string
	Translator translate.Translator
	Adapter    transport.Adapter
	Store      *Store
	Toggle     *Toggle
	AdminChat  transport.ChatTarget
	Deliveries storage.Store
	Log        logx.Logger
}

func NewPlanner(d PlannerDeps) *Planner {
	src := strings.TrimSpace(d.SourceLang)
	if src == "" {
		src = "ru"
	}
	return &Planner{
		routes:     d.Routes,
		sourceLang: src,
		tr:         d.Translator,
		ad:         d.Adapter,
		store:      d.Store,
		toggle:     d.Toggle,
		adminChat:  d.AdminChat,
		deliveries: d.Deliveries,
		log:        d.Log,
	}
}

// Plan processes one post for every configured route. Failures are
// isolated per route: one language's translation or send failure never
// blocks the others.
func (p *Planner) Plan(ctx context.Context, post *Post) {
	if post.Forwarded || len(post.Items) == 0 {
		return
	}
	// Read once per post: a toggle flip mid-plan must not split one
	// post between moderated and direct routes.
	moderated := p.toggle.Enabled()

	for _, rt := range p.routes {
		if err := p.planRoute(ctx, post, rt, moderated); err != nil {
			p.log.Error("route failed",
				logx.String("lang", rt.Lang),
				logx.String("post", post.Identifier()),
				logx.Err(err))
			p.notifyAdmin(ctx, fmt.Sprintf("⚠️ %s route failed for post %s: %v",
				strings.ToUpper(rt.Lang), post.Identifier(), err))
		}
	}
}

func (p *Planner) planRoute(ctx context.Context, post *Post, rt Route, moderated bool) error {
	items, err := p.translateItems(ctx, post, rt.Lang)
	if err != nil {
		return err
	}

	if !moderated {
		dest := transport.ChatTarget{ChatID: rt.Channel}
		n, err := SendTranslated(ctx, p.ad, dest, items)
		recordDelivery(ctx, p.deliveries, p.log, storage.Delivery{
			At:          time.Now(),
			Lang:        rt.Lang,
			PostID:      post.Identifier(),
			Destination: rt.Channel,
			Outcome:     storage.OutcomeAuto,
			Items:       n,
			Error:       errString(err),
		})
		if err != nil {
			return fmt.Errorf("send: %w", err)
		}
		return nil
	}

	item := &Item{
		Key:         Key{Lang: rt.Lang, ID: post.Identifier()},
		Post:        post,
		Translated:  items,
		Destination: transport.ChatTarget{ChatID: rt.Channel},
		State:       StatePending,
	}
	if err := p.renderForReview(ctx, item); err != nil {
		return fmt.Errorf("render review: %w", err)
	}
	p.store.Insert(item)
	p.log.Info("review item created",
		logx.String("key", item.Key.String()),
		logx.Int("items", len(items)))
	return nil
}

// translateItems translates every textual field via the gateway. Only
// the first item carries the caption in the sent form — destination
// platforms render an album with a single caption.
func (p *Planner) translateItems(ctx context.Context, post *Post, lang string) ([]transport.Media, error) {
	out := make([]transport.Media, 0, len(post.Items))
	for i, it := range post.Items {
		txt, err := translate.Text(ctx, p.tr, it.Text, p.sourceLang, lang)
		if err != nil {
			return nil, fmt.Errorf("translate to %s: %w", lang, err)
		}
		if i > 0 {
			txt = ""
		}
		out = append(out, transport.Media{Kind: it.Kind, FileID: it.FileID, Caption: txt})
	}
	return out, nil
}

// renderForReview shows the translated content in the admin chat with
// the action keyboard and records which rendered message to edit when
// acknowledging the decision.
func (p *Planner) renderForReview(ctx context.Context, item *Item) error {
	markup := moderationKeyboard(item.Key)
	label := strings.ToUpper(item.Key.Lang)

	if len(item.Translated) > 1 {
		refs, err := p.ad.SendAlbum(ctx, p.adminChat, item.Translated)
		if err != nil {
			return err
		}
		prompt, err := p.ad.SendText(ctx, p.adminChat,
			fmt.Sprintf("Choose an action for channel (%s):", label),
			&transport.SendOptions{ReplyMarkupAdapter: markup})
		if err != nil {
			return err
		}
		item.AdminRefs = append(refs, prompt)
		item.AckRef = prompt
		item.AckHasCaption = false
		return nil
	}

	m := item.Translated[0]
	header := fmt.Sprintf("Translated message (%s):\n%s", label, m.Caption)
	if m.Kind == transport.MediaText {
		ref, err := p.ad.SendText(ctx, p.adminChat, header,
			&transport.SendOptions{ReplyMarkupAdapter: markup})
		if err != nil {
			return err
		}
		item.AdminRefs = []transport.MessageRef{ref}
		item.AckRef = ref
		item.AckHasCaption = false
		return nil
	}

	ref, err := p.ad.SendMedia(ctx, p.adminChat,
		transport.Media{Kind: m.Kind, FileID: m.FileID, Caption: header},
		&transport.SendOptions{ReplyMarkupAdapter: markup})
	if err != nil {
		return err
	}
	item.AdminRefs = []transport.MessageRef{ref}
	item.AckRef = ref
	item.AckHasCaption = true
	return nil
}

func (p *Planner) notifyAdmin(ctx context.Context, text string) {
	if _, err := p.ad.SendText(ctx, p.adminChat, text, nil); err != nil {
		p.log.Warn("admin notice failed", logx.Err(err))
	}
}

func moderationKeyboard(key Key) any {
	payload := key.Lang + ":" + key.ID
	label := strings.ToUpper(key.Lang)
	kb := tgui.NewInline().Row(
		tgui.Btn(fmt.Sprintf("✅ Approve (%s)", label), tgui.Data("mod", "approve", payload)),
		tgui.Btn(fmt.Sprintf("❌ Reject (%s)", label), tgui.Data("mod", "reject", payload)),
		tgui.Btn(fmt.Sprintf("✏️ Edit (%s)", label), tgui.Data("mod", "edit", payload)),
	)
	return kb.Markup()
}

// SendTranslated delivers translated content to a chat: one grouped
// send for albums, a single media or text message otherwise. Returns
// the number of platform messages produced.
func SendTranslated(ctx context.Context, ad transport.Adapter, to transport.ChatTarget, items []transport.Media) (int, error) {
	if len(items) == 0 {
		return 0, nil
	}
	if len(items) > 1 {
		refs, err := ad.SendAlbum(ctx, to, items)
		return len(refs), err
	}
	if _, err := ad.SendMedia(ctx, to, items[0], nil); err != nil {
		return 0, err
	}
	return 1, nil
}

func recordDelivery(ctx context.Context, st storage.Store, log logx.Logger, d storage.Delivery) {
	if st == nil {
		return
	}
	if err := st.Record(ctx, d); err != nil && !log.IsZero() {
		log.Warn("delivery log write failed", logx.Err(err))
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
