package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/arasuji/arasuji-server/internal/domain"
	domainerrors "github.com/arasuji/arasuji-server/internal/errors"
	"github.com/arasuji/arasuji-server/internal/id"
	"github.com/arasuji/arasuji-server/internal/normalize"
	"github.com/arasuji/arasuji-server/internal/store"
	"github.com/arasuji/arasuji-server/internal/validation"
)

// UpdateProfileRequest is the editable part of a profile.
type UpdateProfileRequest struct {
	Username string `json:"username" validate:"notblank,max=20"`
	Bio      string `json:"bio" validate:"max=160"`
}

// ProfileView is a user profile as seen by a viewer.
type ProfileView struct {
	domain.User
	IsFollowing bool `json:"isFollowing"`
}

// ProfileService reads and edits user profiles.
type ProfileService struct {
	store     store.Backend
	ledger    *Ledger
	validator *validation.Validator
	logger    *slog.Logger
	clock     Clock
}

// NewProfileService creates a profile service.
func NewProfileService(b store.Backend, ledger *Ledger, v *validation.Validator, logger *slog.Logger) *ProfileService {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &ProfileService{store: b, ledger: ledger, validator: v, logger: logger}
}

func (s *ProfileService) users() *store.Collection[domain.User] {
	return store.NewCollection[domain.User](s.store, store.UsersCollection)
}

// Get returns uid's profile and whether viewerID follows them.
func (s *ProfileService) Get(ctx context.Context, viewerID, uid string) (*ProfileView, error) {
	if !id.Valid(uid) {
		return nil, domainerrors.NotFound("user not found")
	}
	user, err := s.users().Get(ctx, uid)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domainerrors.NotFound("user not found")
		}
		return nil, storeError(err, "get profile")
	}

	view := &ProfileView{User: *user}
	if viewerID != "" && viewerID != uid {
		following, err := store.NewCollection[domain.FollowRecord](s.store, store.FollowingPath(viewerID)).Exists(ctx, uid)
		if err != nil {
			return nil, storeError(err, "check follow")
		}
		view.IsFollowing = following
	}
	return view, nil
}

// Update changes uid's username and bio. Both are trimmed.
func (s *ProfileService) Update(ctx context.Context, uid, username, bio string) (*ProfileView, error) {
	if err := requireActor(uid); err != nil {
		return nil, err
	}
	req := UpdateProfileRequest{Username: normalize.Trim(username), Bio: normalize.Trim(bio)}
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	err := s.store.RunTransaction(ctx, func(tx store.Tx) error {
		return store.PatchTx(tx, store.UserPath(uid), map[string]any{
			"id":        uid,
			"username":  req.Username,
			"bio":       req.Bio,
			"updatedAt": s.clock.now(),
		})
	})
	if err != nil {
		return nil, storeError(err, "update profile")
	}

	s.logger.Info("profile updated", "user_id", uid)
	return s.Get(ctx, uid, uid)
}

// Following lists the profiles uid follows, most recent first.
func (s *ProfileService) Following(ctx context.Context, uid string) ([]*domain.User, error) {
	if !id.Valid(uid) {
		return []*domain.User{}, nil
	}
	records, err := store.NewCollection[domain.FollowRecord](s.store, store.FollowingPath(uid)).Query().
		OrderBy(func(a, b *domain.FollowRecord) int { return b.CreatedAt.Compare(a.CreatedAt) }).
		Run(ctx)
	if err != nil {
		return nil, storeError(err, "list following")
	}
	uids := make([]string, len(records))
	for i, r := range records {
		uids[i] = r.TargetUID
	}
	return s.ordered(ctx, uids)
}

// Followers lists the profiles following uid, most recent first.
func (s *ProfileService) Followers(ctx context.Context, uid string) ([]*domain.User, error) {
	if !id.Valid(uid) {
		return []*domain.User{}, nil
	}
	records, err := store.NewCollection[domain.FollowerRecord](s.store, store.FollowersPath(uid)).Query().
		OrderBy(func(a, b *domain.FollowerRecord) int { return b.CreatedAt.Compare(a.CreatedAt) }).
		Run(ctx)
	if err != nil {
		return nil, storeError(err, "list followers")
	}
	uids := make([]string, len(records))
	for i, r := range records {
		uids[i] = r.FollowerUID
	}
	return s.ordered(ctx, uids)
}

// ToggleFollow flips whether actorID follows uid.
func (s *ProfileService) ToggleFollow(ctx context.Context, actorID, uid string) (ToggleResult, error) {
	return s.ledger.ToggleFollow(ctx, actorID, uid)
}

// ordered loads profiles keeping the order of uids and dropping missing ones.
func (s *ProfileService) ordered(ctx context.Context, uids []string) ([]*domain.User, error) {
	found, err := profiles(ctx, s.store, uids)
	if err != nil {
		return nil, err
	}
	users := make([]*domain.User, 0, len(found))
	for _, uid := range uids {
		if u, ok := found[uid]; ok {
			users = append(users, u)
		}
	}
	return users, nil
}
