package service

import (
	"context"
	"log/slog"
	"slices"

	"github.com/arasuji/arasuji-server/internal/domain"
	domainerrors "github.com/arasuji/arasuji-server/internal/errors"
	"github.com/arasuji/arasuji-server/internal/id"
	"github.com/arasuji/arasuji-server/internal/sse"
	"github.com/arasuji/arasuji-server/internal/store"
)

// Target identifies what a relation points at. ID is the post id for likes
// and bookmarks, the followee's uid for follows, and the comment id for
// comment likes, which also need PostID.
type Target struct {
	ID     string
	PostID string
}

// ToggleResult is the state after a toggle: whether the relation is now
// active, and the counter value that was written.
type ToggleResult struct {
	Active bool  `json:"active"`
	Count  int64 `json:"count"`
}

// Ledger flips relation memberships and keeps their denormalized counters
// in step. Each toggle is one store transaction.
type Ledger struct {
	store    store.Backend
	notifier *Notifier
	events   EventEmitter
	logger   *slog.Logger
	clock    Clock
}

// NewLedger creates a counter ledger.
func NewLedger(b store.Backend, notifier *Notifier, events EventEmitter, logger *slog.Logger) *Ledger {
	if events == nil {
		events = NoopEmitter{}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Ledger{store: b, notifier: notifier, events: events, logger: logger}
}

// toggleOutcome is what a committed transaction hands to the post-commit step.
type toggleOutcome struct {
	result    ToggleResult
	recipient string
	following int64 // follow only: the actor's new following count
}

// Toggle flips the actor's relation of the given kind with target.
//
// On activation a notification is queued for the target's owner unless the
// actor owns it. Notifications and counter events are only produced after
// the transaction commits. A store conflict returns an Aborted error and
// writes nothing; calling Toggle again re-reads the membership.
func (l *Ledger) Toggle(ctx context.Context, actorID string, target Target, kind domain.RelationKind) (ToggleResult, error) {
	if err := requireActor(actorID); err != nil {
		return ToggleResult{}, err
	}
	if target.ID == "" {
		return ToggleResult{}, domainerrors.Validation("target is required")
	}
	if !id.Valid(target.ID) || (target.PostID != "" && !id.Valid(target.PostID)) {
		return ToggleResult{}, domainerrors.Validation("invalid target")
	}

	var (
		out toggleOutcome
		err error
	)
	switch kind {
	case domain.RelationLike:
		out, err = l.togglePostRelation(ctx, actorID, target.ID, store.LikedPostsPath(actorID), "likeCount")
	case domain.RelationBookmark:
		out, err = l.togglePostRelation(ctx, actorID, target.ID, store.BookmarksPath(actorID), "bookmarkCount")
	case domain.RelationFollow:
		out, err = l.toggleFollow(ctx, actorID, target.ID)
	case domain.RelationCommentLike:
		if target.PostID == "" {
			return ToggleResult{}, domainerrors.Validation("post id is required for comment likes")
		}
		out, err = l.toggleCommentLike(ctx, actorID, target.PostID, target.ID)
	default:
		return ToggleResult{}, domainerrors.Validationf("unknown relation kind %q", kind)
	}
	if err != nil {
		return ToggleResult{}, storeError(err, "toggle "+string(kind))
	}

	l.afterCommit(ctx, actorID, target, kind, out)
	return out.result, nil
}

// ToggleLike flips the actor's like on a post.
func (l *Ledger) ToggleLike(ctx context.Context, actorID, postID string) (ToggleResult, error) {
	return l.Toggle(ctx, actorID, Target{ID: postID}, domain.RelationLike)
}

// ToggleBookmark flips the actor's bookmark on a post.
func (l *Ledger) ToggleBookmark(ctx context.Context, actorID, postID string) (ToggleResult, error) {
	return l.Toggle(ctx, actorID, Target{ID: postID}, domain.RelationBookmark)
}

// ToggleFollow flips whether the actor follows targetUID. The returned count
// is the followee's follower count.
func (l *Ledger) ToggleFollow(ctx context.Context, actorID, targetUID string) (ToggleResult, error) {
	return l.Toggle(ctx, actorID, Target{ID: targetUID}, domain.RelationFollow)
}

// ToggleCommentLike flips the actor's like on a comment.
func (l *Ledger) ToggleCommentLike(ctx context.Context, actorID, postID, commentID string) (ToggleResult, error) {
	return l.Toggle(ctx, actorID, Target{ID: commentID, PostID: postID}, domain.RelationCommentLike)
}

// togglePostRelation handles likes and bookmarks, which differ only in the
// membership collection, the counter field, and the record shape.
func (l *Ledger) togglePostRelation(ctx context.Context, actorID, postID, membershipCollection, counterField string) (toggleOutcome, error) {
	var out toggleOutcome
	membership := store.Doc(membershipCollection, postID)

	err := l.store.RunTransaction(ctx, func(tx store.Tx) error {
		post, err := store.GetTx[domain.Post](tx, store.PostPath(postID))
		if err != nil {
			return err
		}
		active, err := store.ExistsTx(tx, membership)
		if err != nil {
			return err
		}

		current := post.LikeCount
		if counterField == "bookmarkCount" {
			current = post.BookmarkCount
		}

		var next domain.Count
		if active {
			next = current.Add(-1)
			if err := tx.Delete(membership); err != nil {
				return err
			}
		} else {
			next = current.Add(1)
			if err := store.SetTx(tx, membership, l.membershipRecord(post, postID, counterField, next)); err != nil {
				return err
			}
		}

		out = toggleOutcome{
			result:    ToggleResult{Active: !active, Count: int64(next)},
			recipient: post.AuthorID,
		}
		return store.PatchTx(tx, store.PostPath(postID), map[string]any{counterField: int64(next)})
	})
	return out, err
}

func (l *Ledger) membershipRecord(post *domain.Post, postID, counterField string, next domain.Count) any {
	now := l.clock.now()
	snap := post.Snapshot(domain.DisplayNameOf(post.AuthorName))
	if counterField == "bookmarkCount" {
		return domain.Bookmark{PostSnapshot: snap, PostID: postID, BookmarkedAt: &now}
	}
	return domain.LikedPost{PostSnapshot: snap, PostID: postID, LikedAt: &now, LikeCountSnapshot: next}
}

func (l *Ledger) toggleFollow(ctx context.Context, actorID, targetUID string) (toggleOutcome, error) {
	if actorID == targetUID {
		return toggleOutcome{}, domainerrors.Validation("you cannot follow yourself")
	}

	var out toggleOutcome
	forward := store.Doc(store.FollowingPath(actorID), targetUID)
	back := store.Doc(store.FollowersPath(targetUID), actorID)

	err := l.store.RunTransaction(ctx, func(tx store.Tx) error {
		target, err := store.GetTx[domain.User](tx, store.UserPath(targetUID))
		if err != nil {
			return err
		}
		actor, err := store.GetTx[domain.User](tx, store.UserPath(actorID))
		if domainerrors.Is(err, store.ErrNotFound) {
			return domainerrors.NotFound("profile not found")
		}
		if err != nil {
			return err
		}

		active, err := store.ExistsTx(tx, forward)
		if err != nil {
			return err
		}

		delta := int64(1)
		if active {
			delta = -1
			if err := tx.Delete(forward); err != nil {
				return err
			}
			if err := tx.Delete(back); err != nil {
				return err
			}
		} else {
			now := l.clock.now()
			if err := store.SetTx(tx, forward, domain.FollowRecord{TargetUID: targetUID, CreatedAt: now}); err != nil {
				return err
			}
			if err := store.SetTx(tx, back, domain.FollowerRecord{FollowerUID: actorID, CreatedAt: now}); err != nil {
				return err
			}
		}

		following := actor.FollowingCount.Add(delta)
		followers := target.FollowerCount.Add(delta)
		if err := store.PatchTx(tx, store.UserPath(actorID), map[string]any{"followingCount": int64(following)}); err != nil {
			return err
		}
		if err := store.PatchTx(tx, store.UserPath(targetUID), map[string]any{"followerCount": int64(followers)}); err != nil {
			return err
		}

		out = toggleOutcome{
			result:    ToggleResult{Active: !active, Count: int64(followers)},
			recipient: targetUID,
			following: int64(following),
		}
		return nil
	})
	return out, err
}

func (l *Ledger) toggleCommentLike(ctx context.Context, actorID, postID, commentID string) (toggleOutcome, error) {
	var out toggleOutcome
	path := store.CommentPath(postID, commentID)

	err := l.store.RunTransaction(ctx, func(tx store.Tx) error {
		comment, err := store.GetTx[domain.Comment](tx, path)
		if err != nil {
			return err
		}

		active := comment.LikedBy(actorID)
		uids := slices.DeleteFunc(slices.Clone(comment.LikeUIDs), func(uid string) bool { return uid == actorID })
		var next domain.Count
		if active {
			next = comment.LikeCount.Add(-1)
		} else {
			next = comment.LikeCount.Add(1)
			uids = append(uids, actorID)
		}
		if uids == nil {
			uids = []string{}
		}

		out = toggleOutcome{
			result:    ToggleResult{Active: !active, Count: int64(next)},
			recipient: comment.AuthorID,
		}
		return store.PatchTx(tx, path, map[string]any{"likeUids": uids, "likeCount": int64(next)})
	})
	return out, err
}

// afterCommit publishes counter events and queues the activation notification.
func (l *Ledger) afterCommit(ctx context.Context, actorID string, target Target, kind domain.RelationKind, out toggleOutcome) {
	var notifyType domain.NotificationType
	req := NotifyRequest{ActorID: actorID, RecipientID: out.recipient}

	switch kind {
	case domain.RelationLike:
		l.events.Emit(sse.NewPostLikeCountEvent(target.ID, out.result.Count))
		notifyType, req.PostID = domain.NotificationLike, target.ID
	case domain.RelationBookmark:
		l.events.Emit(sse.NewPostBookmarkCountEvent(target.ID, out.result.Count))
		notifyType, req.PostID = domain.NotificationBookmark, target.ID
	case domain.RelationFollow:
		l.events.Emit(sse.NewFollowerCountEvent(target.ID, out.result.Count))
		l.events.Emit(sse.NewFollowingCountEvent(actorID, out.following))
		notifyType = domain.NotificationFollow
	case domain.RelationCommentLike:
		l.events.Emit(sse.NewCommentCountersEvent(target.PostID, target.ID, out.result.Count))
		notifyType, req.PostID, req.CommentID = domain.NotificationCommentLike, target.PostID, target.ID
	}

	l.logger.Debug("relation toggled",
		"kind", string(kind),
		"actor_id", actorID,
		"target_id", target.ID,
		"active", out.result.Active,
		"count", out.result.Count,
	)

	if !out.result.Active || l.notifier == nil {
		return
	}
	req.Type = notifyType
	l.notifier.Notify(ctx, req)
}
