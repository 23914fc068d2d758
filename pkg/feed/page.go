package feed

import (
	"math/big"

	"github.com/umputun/folio/pkg/domain"
)

// pagination defaults
const (
	DefaultPage  = 1
	DefaultLimit = 6
)

// Page is a slice of the full post list
type Page struct {
	Posts       []domain.Post
	HasMore     bool
	CurrentPage int
	TotalPosts  int
}

// Paginate returns posts[(page-1)*limit : page*limit], clamped to the list.
// Out of range pages, negative offsets and non-positive limits give an empty page.
// page and limit are not validated otherwise, the offset is computed without overflow
// so any int pair is valid.
func Paginate(posts []domain.Post, page, limit int) Page {
	total := len(posts)
	bigTotal := big.NewInt(int64(total))

	offset := big.NewInt(int64(page))
	offset.Sub(offset, big.NewInt(1)).Mul(offset, big.NewInt(int64(limit)))
	next := new(big.Int).Add(offset, big.NewInt(int64(limit)))

	res := Page{
		Posts:       []domain.Post{},
		HasMore:     next.Cmp(bigTotal) < 0,
		CurrentPage: page,
		TotalPosts:  total,
	}

	if offset.Sign() < 0 || limit <= 0 || offset.Cmp(bigTotal) >= 0 {
		return res
	}
	start := int(offset.Int64()) // within [0, total)
	res.Posts = posts[start : start+min(limit, total-start)]
	return res
}
