package service

import (
	"context"

	"github.com/arasuji/arasuji-server/internal/domain"
	"github.com/arasuji/arasuji-server/internal/id"
	"github.com/arasuji/arasuji-server/internal/store"
)

// profiles fetches user profiles by id in chunks of store.InQueryLimit.
// Unknown and malformed ids are absent from the result.
func profiles(ctx context.Context, b store.Backend, uids []string) (map[string]*domain.User, error) {
	valid := make([]string, 0, len(uids))
	for _, uid := range uids {
		if id.Valid(uid) {
			valid = append(valid, uid)
		}
	}
	users, err := store.NewCollection[domain.User](b, store.UsersCollection).GetMany(ctx, valid)
	if err != nil {
		return nil, storeError(err, "load profiles")
	}
	return users, nil
}

// displayNames resolves the display name of each uid. Missing profiles map to
// domain.AnonymousName.
func displayNames(ctx context.Context, b store.Backend, uids []string) (map[string]string, error) {
	users, err := profiles(ctx, b, uids)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(uids))
	for _, uid := range uids {
		names[uid] = users[uid].DisplayName()
	}
	return names, nil
}

// authorName picks the name shown for a post: the author's current profile
// name when the post has an author id, else the stored snapshot.
func authorName(p *domain.Post, names map[string]string) string {
	if p.AuthorID == "" {
		return domain.DisplayNameOf(p.AuthorName)
	}
	if name, ok := names[p.AuthorID]; ok {
		return name
	}
	return domain.AnonymousName
}

// memberships reports which of postIDs have a document under collection,
// such as a user's likedPosts or bookmarks.
func memberships(ctx context.Context, b store.Backend, collection string, postIDs []string) (map[string]bool, error) {
	valid := make([]string, 0, len(postIDs))
	for _, pid := range postIDs {
		if id.Valid(pid) {
			valid = append(valid, pid)
		}
	}
	found, err := store.NewCollection[struct{}](b, collection).GetMany(ctx, valid)
	if err != nil {
		return nil, storeError(err, "load memberships")
	}
	out := make(map[string]bool, len(found))
	for pid := range found {
		out[pid] = true
	}
	return out, nil
}
