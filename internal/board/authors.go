package board

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/hitoshi/orbit/internal/gateway"
	"github.com/hitoshi/orbit/internal/model"
)

// UnknownAuthor は作成者名を取得できなかった場合の表示名。
const UnknownAuthor = "알 수 없음"

// maxAuthorLookups は作成者名の同時取得数。
const maxAuthorLookups = 4

// UserLookup はユーザー情報の取得インターフェース。
type UserLookup interface {
	GetUser(ctx context.Context, userID string) gateway.Result[model.User]
}

// ResolveAuthors はユーザーIDから表示名への対応を作る。
// 重複を除いて並行に取得し、失敗したIDはUnknownAuthorとする。
func ResolveAuthors(ctx context.Context, lookup UserLookup, userIDs []string) map[string]string {
	names := make(map[string]string, len(userIDs))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxAuthorLookups)

	seen := make(map[string]bool, len(userIDs))
	for _, id := range userIDs {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true

		g.Go(func() error {
			name := UnknownAuthor
			if res := lookup.GetUser(gctx, id); res.OK() && res.Value.Name != "" {
				name = res.Value.Name
			}
			mu.Lock()
			names[id] = name
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return names
}

// AuthorName は対応表から表示名を返す。
func AuthorName(names map[string]string, userID string) string {
	if n, ok := names[userID]; ok {
		return n
	}
	return UnknownAuthor
}
