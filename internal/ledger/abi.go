package ledger

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// postingImageABI is the generated interface description of the PostingImage
// contract. The contract itself is external; only this surface is depended on.
const postingImageABI = `[
  {"type":"function","name":"totalPosts","stateMutability":"view","inputs":[],
   "outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"getPost","stateMutability":"view",
   "inputs":[{"name":"index","type":"uint256"}],
   "outputs":[
     {"name":"id","type":"uint256"},
     {"name":"author","type":"address"},
     {"name":"imageUrl","type":"string"},
     {"name":"description","type":"string"},
     {"name":"likes","type":"uint256"},
     {"name":"timestamp","type":"uint256"},
     {"name":"commentCount","type":"uint256"}]},
  {"type":"function","name":"usernames","stateMutability":"view",
   "inputs":[{"name":"","type":"address"}],
   "outputs":[{"name":"","type":"string"}]},
  {"type":"function","name":"getCommentCount","stateMutability":"view",
   "inputs":[{"name":"postId","type":"uint256"}],
   "outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"getComment","stateMutability":"view",
   "inputs":[{"name":"postId","type":"uint256"},{"name":"index","type":"uint256"}],
   "outputs":[
     {"name":"author","type":"address"},
     {"name":"text","type":"string"},
     {"name":"timestamp","type":"uint256"}]},
  {"type":"function","name":"createPost","stateMutability":"nonpayable",
   "inputs":[{"name":"imageUrl","type":"string"},{"name":"description","type":"string"}],
   "outputs":[]},
  {"type":"function","name":"likePost","stateMutability":"nonpayable",
   "inputs":[{"name":"postId","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"addComment","stateMutability":"nonpayable",
   "inputs":[{"name":"postId","type":"uint256"},{"name":"text","type":"string"}],
   "outputs":[]},
  {"type":"function","name":"setUsername","stateMutability":"nonpayable",
   "inputs":[{"name":"name","type":"string"}],"outputs":[]}
]`

// simpleStorageABI describes the unrelated demo contract driven by the toy
// backend.
const simpleStorageABI = `[
  {"type":"function","name":"value","stateMutability":"view","inputs":[],
   "outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"setValue","stateMutability":"nonpayable",
   "inputs":[{"name":"newValue","type":"uint256"}],"outputs":[]}
]`

func mustParseABI(src string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(src))
	if err != nil {
		panic("ledger: malformed built-in ABI: " + err.Error())
	}
	return parsed
}

var (
	postingImage  = mustParseABI(postingImageABI)
	simpleStorage = mustParseABI(simpleStorageABI)
)
