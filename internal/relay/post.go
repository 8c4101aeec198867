// Package relay implements the moderation and fan-out pipeline: album
// aggregation, per-route planning, the review store, and the moderation
// state machine.
package relay

import (
	"strconv"

	"relaybot/internal/transport"
)

// MediaItem is one content unit of a Post in the source language.
type MediaItem struct {
	Kind   transport.MediaKind
	FileID string

	// Text is the caption for media items, the body for text items.
	Text string
}

// Post is one logical unit of content from the source channel, possibly
// assembled from several album fragments. A Post is frozen once it
// leaves the aggregator; the planner treats it as read-only.
type Post struct {
	SourceMessageID int
	AlbumID         string // "" for standalone posts
	Items           []MediaItem
	Forwarded       bool
}

func (p *Post) IsAlbum() bool { return p.AlbumID != "" }

// Identifier keys the post for review: the album id for grouped posts,
// the source message id otherwise.
func (p *Post) Identifier() string {
	if p.AlbumID != "" {
		return p.AlbumID
	}
	return strconv.Itoa(p.SourceMessageID)
}

// PostFromMessage builds a standalone (non-album) Post from one inbound
// channel message.
func PostFromMessage(m *transport.Message) *Post {
	return &Post{
		SourceMessageID: m.ID,
		Forwarded:       m.Forwarded,
		Items: []MediaItem{{
			Kind:   m.Kind,
			FileID: m.FileID,
			Text:   m.Text,
		}},
	}
}
