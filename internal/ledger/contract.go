package ledger

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"metasnap.app/msc/internal/types"
)

// Contract is a bound, reusable handle for the PostingImage contract, scoped
// to one signing identity. Handles are cheap; they are rebuilt from current
// session state on every use and must never be cached across identity
// changes.
type Contract struct {
	backend Backend
	address common.Address
	from    common.Address
	timeout time.Duration
}

// NewContract binds the PostingImage contract at address for the identity
// from. finalityTimeout bounds how long a write waits for its receipt.
func NewContract(backend Backend, address, from common.Address, finalityTimeout time.Duration) *Contract {
	return &Contract{backend: backend, address: address, from: from, timeout: finalityTimeout}
}

// Account returns the hex address of the identity this handle signs as.
func (c *Contract) Account() string {
	return c.from.Hex()
}

func (c *Contract) call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	data, err := postingImage.Pack(method, args...)
	if err != nil {
		return nil, types.WrapError(types.ErrLedgerRead, "encode "+method, err)
	}
	raw, err := c.backend.CallContract(ctx, c.address, data)
	if err != nil {
		return nil, types.WrapError(types.ErrLedgerRead, method+" call failed", err)
	}
	out, err := postingImage.Unpack(method, raw)
	if err != nil {
		return nil, types.WrapError(types.ErrLedgerRead, "decode "+method+" result", err)
	}
	return out, nil
}

func (c *Contract) send(ctx context.Context, method string, args ...interface{}) error {
	data, err := postingImage.Pack(method, args...)
	if err != nil {
		return types.WrapError(types.ErrLedgerWrite, "encode "+method, err)
	}
	txHash, err := c.backend.SendTransaction(ctx, c.from, c.address, data)
	if err != nil {
		return types.WrapError(types.ErrLedgerWrite, method+" submission failed", err)
	}
	_, err = waitMined(ctx, c.backend, txHash, c.timeout)
	return err
}

// TotalPosts reads the total number of posts on the ledger.
func (c *Contract) TotalPosts(ctx context.Context) (uint64, error) {
	out, err := c.call(ctx, "totalPosts")
	if err != nil {
		return 0, err
	}
	return decodeUint(out, 0, "totalPosts")
}

// PostAt reads the raw post record at the given index. The display name is
// resolved separately by the caller.
func (c *Contract) PostAt(ctx context.Context, index uint64) (types.Post, error) {
	out, err := c.call(ctx, "getPost", new(big.Int).SetUint64(index))
	if err != nil {
		return types.Post{}, err
	}
	return decodePost(out)
}

// DisplayName reads the display name registered for an account. Accounts
// without a name yield the empty string, which is not an error.
func (c *Contract) DisplayName(ctx context.Context, account string) (string, error) {
	if !common.IsHexAddress(account) {
		return "", types.NewError(types.ErrLedgerRead, "invalid account address: "+account)
	}
	out, err := c.call(ctx, "usernames", common.HexToAddress(account))
	if err != nil {
		return "", err
	}
	return decodeString(out, 0, "usernames")
}

// CommentCount reads the number of comments on a post.
func (c *Contract) CommentCount(ctx context.Context, postID uint64) (uint64, error) {
	out, err := c.call(ctx, "getCommentCount", new(big.Int).SetUint64(postID))
	if err != nil {
		return 0, err
	}
	return decodeUint(out, 0, "getCommentCount")
}

// CommentAt reads one comment of a post by ordinal index.
func (c *Contract) CommentAt(ctx context.Context, postID, index uint64) (types.Comment, error) {
	out, err := c.call(ctx, "getComment", new(big.Int).SetUint64(postID), new(big.Int).SetUint64(index))
	if err != nil {
		return types.Comment{}, err
	}
	return decodeComment(out)
}

// CreatePost submits a new post and waits for finality.
func (c *Contract) CreatePost(ctx context.Context, imageURL, description string) error {
	return c.send(ctx, "createPost", imageURL, description)
}

// LikePost submits a like for the given post and waits for finality.
func (c *Contract) LikePost(ctx context.Context, postID uint64) error {
	return c.send(ctx, "likePost", new(big.Int).SetUint64(postID))
}

// AddComment submits a comment on the given post and waits for finality.
func (c *Contract) AddComment(ctx context.Context, postID uint64, text string) error {
	return c.send(ctx, "addComment", new(big.Int).SetUint64(postID), text)
}

// SetDisplayName registers a display name for the signing identity and waits
// for finality.
func (c *Contract) SetDisplayName(ctx context.Context, name string) error {
	return c.send(ctx, "setUsername", name)
}

// decodePost maps the positional getPost tuple into a named Post. Any layout
// drift in the contract interface is caught here and nowhere else.
func decodePost(out []interface{}) (types.Post, error) {
	if len(out) != 7 {
		return types.Post{}, types.NewError(types.ErrLedgerRead,
			fmt.Sprintf("getPost returned %d fields, want 7", len(out)))
	}
	id, ok1 := out[0].(*big.Int)
	author, ok2 := out[1].(common.Address)
	imageURL, ok3 := out[2].(string)
	description, ok4 := out[3].(string)
	likes, ok5 := out[4].(*big.Int)
	timestamp, ok6 := out[5].(*big.Int)
	commentCount, ok7 := out[6].(*big.Int)
	if !(ok1 && ok2 && ok3 && ok4 && ok5 && ok6 && ok7) {
		return types.Post{}, types.NewError(types.ErrLedgerRead, "getPost returned unexpected field types")
	}
	return types.Post{
		ID:           id.Uint64(),
		Author:       author.Hex(),
		ImageURL:     imageURL,
		Description:  description,
		Likes:        likes.Uint64(),
		Timestamp:    timestamp.Int64(),
		CommentCount: commentCount.Uint64(),
	}, nil
}

// decodeComment maps the positional getComment tuple into a named Comment.
func decodeComment(out []interface{}) (types.Comment, error) {
	if len(out) != 3 {
		return types.Comment{}, types.NewError(types.ErrLedgerRead,
			fmt.Sprintf("getComment returned %d fields, want 3", len(out)))
	}
	author, ok1 := out[0].(common.Address)
	text, ok2 := out[1].(string)
	timestamp, ok3 := out[2].(*big.Int)
	if !(ok1 && ok2 && ok3) {
		return types.Comment{}, types.NewError(types.ErrLedgerRead, "getComment returned unexpected field types")
	}
	return types.Comment{
		Author:    author.Hex(),
		Text:      text,
		Timestamp: timestamp.Int64(),
	}, nil
}

func decodeUint(out []interface{}, index int, method string) (uint64, error) {
	if index >= len(out) {
		return 0, types.NewError(types.ErrLedgerRead, method+" returned too few fields")
	}
	v, ok := out[index].(*big.Int)
	if !ok {
		return 0, types.NewError(types.ErrLedgerRead, method+" returned a non-integer field")
	}
	return v.Uint64(), nil
}

func decodeString(out []interface{}, index int, method string) (string, error) {
	if index >= len(out) {
		return "", types.NewError(types.ErrLedgerRead, method+" returned too few fields")
	}
	v, ok := out[index].(string)
	if !ok {
		return "", types.NewError(types.ErrLedgerRead, method+" returned a non-string field")
	}
	return v, nil
}
