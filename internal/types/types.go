// Package types defines the core domain models for the MetaSnap client (msc).
// It contains the Post and Comment projections of the on-chain records and the
// coded error taxonomy used across the application. The ledger is the
// authoritative copy of every record; these structs are read-through cached
// projections built by the feed service.
package types

import (
	"strings"
	"time"
)

// Version is the current version of msc
const Version = "0.1.0"

// BuildTime is set at build time via -ldflags
var BuildTime = "dev"

// Post is the client-side view of a single on-chain post. IDs are
// ledger-assigned, zero-based and monotonic. Likes and CommentCount only ever
// grow; there is no unlike or delete operation.
type Post struct {
	ID           uint64 `json:"id"`                     // Ledger-assigned index, stable and unique
	Author       string `json:"author"`                 // Hex account address of the poster
	DisplayName  string `json:"display_name,omitempty"` // Resolved separately; empty when resolution failed
	ImageURL     string `json:"image_url"`              // Gateway URL of the pinned image
	Description  string `json:"description"`            // Caption text
	Likes        uint64 `json:"likes"`                  // Monotonically non-decreasing
	Timestamp    int64  `json:"timestamp"`              // Unix seconds, ledger clock
	CommentCount uint64 `json:"comment_count"`          // Monotonically non-decreasing
}

// Comment is one entry of a post's comment list. Comments are addressable
// only as (post id, ordinal index); they carry no id of their own.
type Comment struct {
	Author    string `json:"author"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
}

// CreatedAt returns the post's timestamp as wall-clock time.
func (p Post) CreatedAt() time.Time {
	return time.Unix(p.Timestamp, 0)
}

// CreatedAt returns the comment's timestamp as wall-clock time.
func (c Comment) CreatedAt() time.Time {
	return time.Unix(c.Timestamp, 0)
}

// ShortAddress renders an account address in the truncated 0x1234...abcd form
// used throughout the dashboard.
func ShortAddress(addr string) string {
	if len(addr) <= 10 {
		return addr
	}
	return addr[:6] + "..." + addr[len(addr)-4:]
}

// SameAccount compares two hex account addresses case-insensitively.
func SameAccount(a, b string) bool {
	return strings.EqualFold(a, b)
}
