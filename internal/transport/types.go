package transport

import "context"

type UpdateKind string

const (
	UpdateChannelPost UpdateKind = "channel_post"
	UpdateMessage     UpdateKind = "message"
	UpdateCallback    UpdateKind = "callback"
)

type Update struct {
	Kind     UpdateKind
	Message  *Message
	Callback *Callback
}

// MediaKind classifies what a message (or one album fragment) carries.
type MediaKind string

const (
	MediaText     MediaKind = "text"
	MediaPhoto    MediaKind = "photo"
	MediaVideo    MediaKind = "video"
	MediaDocument MediaKind = "document"
)

// Media is one outbound content unit: a platform file reference plus the
// caption it should carry. For MediaText the FileID is empty and Caption
// holds the message body.
type Media struct {
	Kind    MediaKind
	FileID  string
	Caption string
}

type Message struct {
	ID           int
	ChatID       int64
	FromID       int64
	FromUsername string

	// Text is the message body for text messages, the caption otherwise.
	Text string

	// AlbumID groups fragments of one media group ("" if standalone).
	AlbumID string

	// Forwarded is true for messages forwarded from elsewhere.
	Forwarded bool

	Kind   MediaKind
	FileID string // media file reference ("" for text)
}

type Callback struct {
	ID        string
	FromID    int64
	ChatID    int64
	MessageID int
	Data      string
}

type ChatTarget struct {
	ChatID int64
}

type MessageRef struct {
	ChatID    int64
	MessageID int
}

type SendOptions struct {
	ParseMode          string
	DisablePreview     bool
	ReplyMarkupAdapter any // adapter-specific markup (Telegram: *telebot.ReplyMarkup)
}

// Adapter abstracts the chat platform. The relay pipeline only ever talks
// to this interface; gopkg.in/telebot.v4 lives behind it.
type Adapter interface {
	Start(ctx context.Context, out chan<- Update) error
	Stop(ctx context.Context) error

	SendText(ctx context.Context, to ChatTarget, text string, opt *SendOptions) (MessageRef, error)
	SendMedia(ctx context.Context, to ChatTarget, m Media, opt *SendOptions) (MessageRef, error)
	SendAlbum(ctx context.Context, to ChatTarget, items []Media) ([]MessageRef, error)

	// EditText and EditCaption are mutually exclusive by message shape:
	// EditText only works on plain-text messages, EditCaption only on
	// caption-bearing media messages. Callers pick by shape and may use
	// the other as a fallback on rejection.
	EditText(ctx context.Context, ref MessageRef, text string, opt *SendOptions) error
	EditCaption(ctx context.Context, ref MessageRef, caption string, opt *SendOptions) error

	// AnswerCallback acknowledges a button press. Must be called exactly
	// once per callback regardless of outcome.
	AnswerCallback(ctx context.Context, callbackID string, text string) error
}
