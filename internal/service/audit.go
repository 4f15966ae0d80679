package service

import (
	"cmp"
	"context"
	"encoding/json/jsontext"
	"encoding/json/v2"
	"log/slog"
	"slices"

	"github.com/arasuji/arasuji-server/internal/domain"
	"github.com/arasuji/arasuji-server/internal/store"
)

// Drift is a stored counter that disagrees with its membership records.
type Drift struct {
	Path   string `json:"path"`
	Field  string `json:"field"`
	Stored int64  `json:"stored"`
	Actual int64  `json:"actual"`
}

// AuditReport lists every drifting counter.
type AuditReport struct {
	Posts    int     `json:"posts"`
	Users    int     `json:"users"`
	Comments int     `json:"comments"`
	Drifts   []Drift `json:"drifts"`
}

// CounterAuditor recomputes denormalized counters from membership records.
type CounterAuditor struct {
	store  store.Backend
	logger *slog.Logger
}

// NewCounterAuditor creates an auditor.
func NewCounterAuditor(b store.Backend, logger *slog.Logger) *CounterAuditor {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &CounterAuditor{store: b, logger: logger}
}

// Audit compares every post, user, and comment counter with the records it
// summarizes. Nothing is written.
func (a *CounterAuditor) Audit(ctx context.Context) (*AuditReport, error) {
	likes, err := a.countByDocID(ctx, store.LikedPostsGroup)
	if err != nil {
		return nil, err
	}
	bookmarks, err := a.countByDocID(ctx, store.BookmarksGroup)
	if err != nil {
		return nil, err
	}
	following, err := a.countByOwner(ctx, store.FollowingGroup)
	if err != nil {
		return nil, err
	}
	followers, err := a.countByOwner(ctx, store.FollowersGroup)
	if err != nil {
		return nil, err
	}

	report := &AuditReport{Drifts: []Drift{}}
	check := func(path, field string, stored domain.Count, actual int64) {
		if int64(stored) != actual {
			report.Drifts = append(report.Drifts, Drift{Path: path, Field: field, Stored: int64(stored), Actual: actual})
		}
	}

	for post, err := range store.NewCollection[domain.Post](a.store, store.PostsCollection).All(ctx) {
		if err != nil {
			return nil, storeError(err, "list posts")
		}
		report.Posts++
		path := store.PostPath(post.ID)
		check(path, "likeCount", post.LikeCount, likes[post.ID])
		check(path, "bookmarkCount", post.BookmarkCount, bookmarks[post.ID])
	}

	for user, err := range store.NewCollection[domain.User](a.store, store.UsersCollection).All(ctx) {
		if err != nil {
			return nil, storeError(err, "list users")
		}
		report.Users++
		path := store.UserPath(user.ID)
		check(path, "followingCount", user.FollowingCount, following[user.ID])
		check(path, "followerCount", user.FollowerCount, followers[user.ID])
	}

	for doc, err := range a.store.ListGroup(ctx, store.CommentsGroup) {
		if err != nil {
			return nil, storeError(err, "list comments")
		}
		comment, err := store.Decode[domain.Comment](doc.Data)
		if err != nil {
			a.logger.Warn("skipping undecodable comment", "path", doc.Path, "error", err)
			continue
		}
		report.Comments++
		check(doc.Path, "likeCount", comment.LikeCount, int64(len(uniqueUIDs(comment.LikeUIDs))))
	}

	slices.SortFunc(report.Drifts, func(x, y Drift) int {
		return cmp.Or(cmp.Compare(x.Path, y.Path), cmp.Compare(x.Field, y.Field))
	})
	return report, nil
}

// Reconcile audits the store and rewrites every drifting counter, each in its
// own transaction. It returns the drifts it corrected. A counter whose stored
// value changed after the audit is left alone for the next run.
func (a *CounterAuditor) Reconcile(ctx context.Context) (*AuditReport, error) {
	report, err := a.Audit(ctx)
	if err != nil {
		return nil, err
	}
	fixed, err := a.apply(ctx, report.Drifts)
	report.Drifts = fixed
	return report, err
}

func (a *CounterAuditor) apply(ctx context.Context, drifts []Drift) ([]Drift, error) {
	fixed := make([]Drift, 0, len(drifts))
	for _, d := range drifts {
		stale := false
		err := a.store.RunTransaction(ctx, func(tx store.Tx) error {
			data, err := tx.Get(d.Path)
			if err != nil {
				return err
			}
			if stored := storedCount(data, d.Field); int64(stored) != d.Stored {
				stale = true
				return nil
			}
			return store.PatchTx(tx, d.Path, map[string]any{d.Field: d.Actual})
		})
		if err != nil {
			if isNotFound(err) {
				continue
			}
			return fixed, storeError(err, "reconcile "+d.Path)
		}
		if stale {
			a.logger.Info("counter changed since audit, skipping", "path", d.Path, "field", d.Field)
			continue
		}
		fixed = append(fixed, d)
		a.logger.Info("counter reconciled",
			"path", d.Path,
			"field", d.Field,
			"stored", d.Stored,
			"actual", d.Actual,
		)
	}
	return fixed, nil
}

// storedCount reads one counter field from a raw document.
func storedCount(data []byte, field string) domain.Count {
	var doc map[string]jsontext.Value
	if err := json.Unmarshal(data, &doc); err != nil {
		return 0
	}
	var c domain.Count
	if raw, ok := doc[field]; ok {
		_ = json.Unmarshal(raw, &c)
	}
	return c
}

// countByDocID counts membership records per target id across every
// collection named group.
func (a *CounterAuditor) countByDocID(ctx context.Context, group string) (map[string]int64, error) {
	counts := make(map[string]int64)
	for doc, err := range a.store.ListGroup(ctx, group) {
		if err != nil {
			return nil, storeError(err, "list "+group)
		}
		counts[doc.ID]++
	}
	return counts, nil
}

// countByOwner counts records per owning user: users/{uid}/{group}/*.
func (a *CounterAuditor) countByOwner(ctx context.Context, group string) (map[string]int64, error) {
	counts := make(map[string]int64)
	for doc, err := range a.store.ListGroup(ctx, group) {
		if err != nil {
			return nil, storeError(err, "list "+group)
		}
		if _, uid, err := store.SplitDoc(store.ParentDoc(doc.Collection)); err == nil {
			counts[uid]++
		}
	}
	return counts, nil
}

func uniqueUIDs(uids []string) []string {
	out := slices.Clone(uids)
	slices.Sort(out)
	return slices.Compact(out)
}
