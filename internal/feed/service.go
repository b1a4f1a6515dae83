// Package feed holds the in-memory view of the on-chain feed and applies
// user actions against it. All reads and writes go through a ledger handle
// obtained fresh for each operation, so every action runs against the
// account and chain that were active when it started.
package feed

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"metasnap.app/msc/internal/logger"
	"metasnap.app/msc/internal/types"
)

// Ledger is the slice of the contract surface the feed needs.
type Ledger interface {
	Account() string
	TotalPosts(ctx context.Context) (uint64, error)
	PostAt(ctx context.Context, index uint64) (types.Post, error)
	DisplayName(ctx context.Context, account string) (string, error)
	CommentCount(ctx context.Context, postID uint64) (uint64, error)
	CommentAt(ctx context.Context, postID, index uint64) (types.Comment, error)
	CreatePost(ctx context.Context, imageURL, description string) error
	LikePost(ctx context.Context, postID uint64) error
	AddComment(ctx context.Context, postID uint64, text string) error
	SetDisplayName(ctx context.Context, name string) error
}

// HandleFunc returns a ledger handle bound to the currently active account.
// It fails when no session is established.
type HandleFunc func() (Ledger, error)

// Pinner uploads an image and returns the URL it will be served from.
type Pinner interface {
	Upload(ctx context.Context, name string, content io.Reader) (string, error)
}

// Service is the feed state machine. One instance serves the whole process.
type Service struct {
	handle HandleFunc
	pinner Pinner
	log    *logger.Logger

	mu        sync.RWMutex
	posts     []types.Post
	comments  map[uint64][]types.Comment
	names     map[string]string
	busy      map[uint64]bool
	composing bool
	stale     bool
	updates   chan struct{}
	onSync    func([]types.Post)
}

// New creates a feed service. The pinner may be nil when no pinning service
// is configured; posting by direct image URL still works.
func New(handle HandleFunc, pinner Pinner, log *logger.Logger) *Service {
	return &Service{
		handle:   handle,
		pinner:   pinner,
		log:      log,
		comments: make(map[uint64][]types.Comment),
		names:    make(map[string]string),
		busy:     make(map[uint64]bool),
		updates:  make(chan struct{}, 1),
	}
}

// OnSync registers a callback invoked with the fresh post list after every
// successful full refresh. Used to persist feed snapshots.
func (s *Service) OnSync(fn func([]types.Post)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onSync = fn
}

// Updates returns a channel that receives a value whenever the feed view
// changes.
func (s *Service) Updates() <-chan struct{} {
	return s.updates
}

func (s *Service) notify() {
	select {
	case s.updates <- struct{}{}:
	default:
	}
}

// Posts returns the current feed, newest first.
func (s *Service) Posts() []types.Post {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.Post, len(s.posts))
	copy(out, s.posts)
	return out
}

// Stale reports whether the current posts came from a cached snapshot
// rather than a live refresh.
func (s *Service) Stale() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stale
}

// Busy reports whether an action is pending for the given post.
func (s *Service) Busy(postID uint64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.busy[postID]
}

// Composing reports whether a post creation or profile update is pending.
func (s *Service) Composing() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.composing
}

// Seed installs a cached snapshot as the initial view. It is marked stale
// and replaced wholesale by the first successful refresh.
func (s *Service) Seed(posts []types.Post) {
	s.mu.Lock()
	s.posts = posts
	s.stale = true
	s.mu.Unlock()
	s.notify()
}

// Reset discards all cached state. Wired to session identity and chain
// changes.
func (s *Service) Reset() {
	s.mu.Lock()
	s.posts = nil
	s.comments = make(map[uint64][]types.Comment)
	s.names = make(map[string]string)
	s.busy = make(map[uint64]bool)
	s.composing = false
	s.stale = false
	s.mu.Unlock()
	s.notify()
}

// Refresh reloads the whole feed from the ledger, newest post first. On any
// read failure the previous view is left untouched. Display name resolution
// failures degrade to an empty name and never fail the refresh.
func (s *Service) Refresh(ctx context.Context) error {
	h, err := s.handle()
	if err != nil {
		return err
	}

	total, err := h.TotalPosts(ctx)
	if err != nil {
		return err
	}

	loaded := make([]types.Post, 0, total)
	for i := total; i > 0; i-- {
		p, err := h.PostAt(ctx, i-1)
		if err != nil {
			return err
		}
		p.DisplayName = s.resolveName(ctx, h, p.Author)
		loaded = append(loaded, p)
	}

	s.mu.Lock()
	s.posts = loaded
	s.stale = false
	fn := s.onSync
	s.mu.Unlock()

	if fn != nil {
		fn(loaded)
	}
	s.notify()
	return nil
}

// resolveName fetches a display name, falling back to the cached value and
// then to empty. Lookup failures are logged, never surfaced.
func (s *Service) resolveName(ctx context.Context, h Ledger, account string) string {
	name, err := h.DisplayName(ctx, account)
	if err != nil {
		if s.log != nil {
			s.log.Warning(fmt.Sprintf("display name lookup failed for %s: %v", account, err))
		}
		s.mu.RLock()
		cached := s.names[account]
		s.mu.RUnlock()
		return cached
	}
	s.mu.Lock()
	s.names[account] = name
	s.mu.Unlock()
	return name
}

// DisplayNameOf returns the display name for an account, reading through
// the cache to the ledger.
func (s *Service) DisplayNameOf(ctx context.Context, account string) (string, error) {
	s.mu.RLock()
	cached, ok := s.names[account]
	s.mu.RUnlock()
	if ok {
		return cached, nil
	}

	h, err := s.handle()
	if err != nil {
		return "", err
	}
	name, err := h.DisplayName(ctx, account)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	s.names[account] = name
	s.mu.Unlock()
	return name, nil
}

// Comments returns the cached comments for a post, oldest first. Call
// LoadComments to populate or reload them.
func (s *Service) Comments(postID uint64) []types.Comment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.Comment, len(s.comments[postID]))
	copy(out, s.comments[postID])
	return out
}

// LoadComments fetches the full comment list for one post, in posting
// order, and caches it.
func (s *Service) LoadComments(ctx context.Context, postID uint64) ([]types.Comment, error) {
	h, err := s.handle()
	if err != nil {
		return nil, err
	}

	count, err := h.CommentCount(ctx, postID)
	if err != nil {
		return nil, err
	}

	loaded := make([]types.Comment, 0, count)
	for i := uint64(0); i < count; i++ {
		c, err := h.CommentAt(ctx, postID, i)
		if err != nil {
			return nil, err
		}
		loaded = append(loaded, c)
	}

	s.mu.Lock()
	s.comments[postID] = loaded
	s.mu.Unlock()
	s.notify()
	return loaded, nil
}

func (s *Service) acquirePost(postID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy[postID] {
		return types.NewError(types.ErrValidation, "another action is pending for this post")
	}
	s.busy[postID] = true
	return nil
}

func (s *Service) releasePost(postID uint64) {
	s.mu.Lock()
	delete(s.busy, postID)
	s.mu.Unlock()
	s.notify()
}

// Like submits a like for one post and waits for it to finalize. On
// success only that post's local like count is bumped; no other post is
// touched.
func (s *Service) Like(ctx context.Context, postID uint64) error {
	h, err := s.handle()
	if err != nil {
		return err
	}
	if err := s.acquirePost(postID); err != nil {
		return err
	}
	defer s.releasePost(postID)

	if err := h.LikePost(ctx, postID); err != nil {
		if s.log != nil {
			s.log.Failure("like post", err)
		}
		return err
	}

	s.mu.Lock()
	for i := range s.posts {
		if s.posts[i].ID == postID {
			s.posts[i].Likes++
			break
		}
	}
	s.mu.Unlock()
	return nil
}

// AddComment submits a comment for one post and waits for it to finalize.
// The text is trimmed before validation and submission. On success the
// post's comment count is bumped locally and that post's comment list is
// reloaded from the ledger.
func (s *Service) AddComment(ctx context.Context, postID uint64, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return types.NewError(types.ErrValidation, "comment text is empty")
	}

	h, err := s.handle()
	if err != nil {
		return err
	}
	if err := s.acquirePost(postID); err != nil {
		return err
	}
	defer s.releasePost(postID)

	if err := h.AddComment(ctx, postID, text); err != nil {
		if s.log != nil {
			s.log.Failure("add comment", err)
		}
		return err
	}

	s.mu.Lock()
	for i := range s.posts {
		if s.posts[i].ID == postID {
			s.posts[i].CommentCount++
			break
		}
	}
	s.mu.Unlock()

	if _, err := s.LoadComments(ctx, postID); err != nil {
		// Comment landed; only the reload of the list failed
		if s.log != nil {
			s.log.Failure("reload comments", err)
		}
	}
	return nil
}

func (s *Service) acquireCompose() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.composing {
		return types.NewError(types.ErrValidation, "another submission is pending")
	}
	s.composing = true
	return nil
}

func (s *Service) releaseCompose() {
	s.mu.Lock()
	s.composing = false
	s.mu.Unlock()
	s.notify()
}

// CreatePost publishes a new post. The image comes either from an uploaded
// file, pinned through the pinning service, or from a direct URL. Both the
// description and an image source are required; validation happens before
// any upload or ledger call.
func (s *Service) CreatePost(ctx context.Context, description, imageURL, filename string, file io.Reader) error {
	description = strings.TrimSpace(description)
	imageURL = strings.TrimSpace(imageURL)
	if description == "" {
		return types.NewError(types.ErrValidation, "description is required")
	}
	if file == nil && imageURL == "" {
		return types.NewError(types.ErrValidation, "an image file or image URL is required")
	}

	if err := s.acquireCompose(); err != nil {
		return err
	}
	defer s.releaseCompose()

	if file != nil {
		if s.pinner == nil {
			return types.NewError(types.ErrConfig, "no pinning service configured for file uploads")
		}
		url, err := s.pinner.Upload(ctx, filename, file)
		if err != nil {
			if s.log != nil {
				s.log.Failure("pin image", err)
			}
			return err
		}
		imageURL = url
	}

	h, err := s.handle()
	if err != nil {
		return err
	}
	if err := h.CreatePost(ctx, imageURL, description); err != nil {
		if s.log != nil {
			s.log.Failure("create post", err)
		}
		return err
	}

	return s.Refresh(ctx)
}

// SetDisplayName stores a new display name for the active account and
// patches the local name cache so the change shows without a full reload.
func (s *Service) SetDisplayName(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return types.NewError(types.ErrValidation, "display name is empty")
	}

	h, err := s.handle()
	if err != nil {
		return err
	}
	if err := s.acquireCompose(); err != nil {
		return err
	}
	defer s.releaseCompose()

	if err := h.SetDisplayName(ctx, name); err != nil {
		if s.log != nil {
			s.log.Failure("set display name", err)
		}
		return err
	}

	account := h.Account()
	s.mu.Lock()
	s.names[account] = name
	for i := range s.posts {
		if types.SameAccount(s.posts[i].Author, account) {
			s.posts[i].DisplayName = name
		}
	}
	s.mu.Unlock()
	return nil
}

// MyPosts enumerates the ledger and returns only the active account's
// posts, newest first.
func (s *Service) MyPosts(ctx context.Context) ([]types.Post, error) {
	h, err := s.handle()
	if err != nil {
		return nil, err
	}
	account := h.Account()

	total, err := h.TotalPosts(ctx)
	if err != nil {
		return nil, err
	}

	var mine []types.Post
	for i := total; i > 0; i-- {
		p, err := h.PostAt(ctx, i-1)
		if err != nil {
			return nil, err
		}
		if types.SameAccount(p.Author, account) {
			mine = append(mine, p)
		}
	}
	return mine, nil
}
