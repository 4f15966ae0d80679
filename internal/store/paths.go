package store

import (
	"strings"

	"github.com/arasuji/arasuji-server/internal/id"
)

// Top-level collections.
const (
	PostsCollection         = "posts"
	UsersCollection         = "users"
	AccountsCollection      = "accounts"
	AccountEmailsCollection = "accountEmails"
	SessionsCollection      = "sessions"
	VerificationsCollection = "verifications"
)

// Subcollection names. These are also the group names used by ListGroup.
const (
	CommentsGroup      = "comments"
	FollowingGroup     = "following"
	FollowersGroup     = "followers"
	LikedPostsGroup    = "likedPosts"
	BookmarksGroup     = "bookmarks"
	NotificationsGroup = "notifications"
)

// Doc joins a collection path and a document id.
func Doc(collection, docID string) string {
	return collection + "/" + docID
}

// Sub returns the path of a subcollection under a document.
func Sub(docPath, name string) string {
	return docPath + "/" + name
}

// SplitDoc splits a document path into its collection path and id.
func SplitDoc(path string) (collection, docID string, err error) {
	if !ValidDocPath(path) {
		return "", "", ErrInvalidPath
	}
	i := strings.LastIndexByte(path, '/')
	return path[:i], path[i+1:], nil
}

// ParentDoc returns the document that owns a subcollection, or "" for a
// top-level collection. ParentDoc("users/u1/likedPosts") == "users/u1".
func ParentDoc(collection string) string {
	i := strings.LastIndexByte(collection, '/')
	if i < 0 {
		return ""
	}
	return collection[:i]
}

// GroupOf returns the last segment of a collection path.
func GroupOf(collection string) string {
	return collection[strings.LastIndexByte(collection, '/')+1:]
}

// ValidCollectionPath reports whether path has an odd number of valid segments.
func ValidCollectionPath(path string) bool {
	n, ok := countSegments(path)
	return ok && n%2 == 1
}

// ValidDocPath reports whether path has an even number of valid segments.
func ValidDocPath(path string) bool {
	n, ok := countSegments(path)
	return ok && n > 0 && n%2 == 0
}

func countSegments(path string) (int, bool) {
	if path == "" {
		return 0, false
	}
	n := 0
	for seg := range strings.SplitSeq(path, "/") {
		if !id.Valid(seg) {
			return 0, false
		}
		n++
	}
	return n, true
}

// PostPath returns posts/{postID}.
func PostPath(postID string) string { return Doc(PostsCollection, postID) }

// CommentsPath returns posts/{postID}/comments.
func CommentsPath(postID string) string { return Sub(PostPath(postID), CommentsGroup) }

// CommentPath returns posts/{postID}/comments/{commentID}.
func CommentPath(postID, commentID string) string { return Doc(CommentsPath(postID), commentID) }

// UserPath returns users/{uid}.
func UserPath(uid string) string { return Doc(UsersCollection, uid) }

// FollowingPath returns users/{uid}/following.
func FollowingPath(uid string) string { return Sub(UserPath(uid), FollowingGroup) }

// FollowersPath returns users/{uid}/followers.
func FollowersPath(uid string) string { return Sub(UserPath(uid), FollowersGroup) }

// LikedPostsPath returns users/{uid}/likedPosts.
func LikedPostsPath(uid string) string { return Sub(UserPath(uid), LikedPostsGroup) }

// BookmarksPath returns users/{uid}/bookmarks.
func BookmarksPath(uid string) string { return Sub(UserPath(uid), BookmarksGroup) }

// NotificationsPath returns users/{uid}/notifications.
func NotificationsPath(uid string) string { return Sub(UserPath(uid), NotificationsGroup) }

// AccountPath returns accounts/{uid}.
func AccountPath(uid string) string { return Doc(AccountsCollection, uid) }

// AccountEmailPath returns accountEmails/{email}. The email must already be normalized.
func AccountEmailPath(email string) string { return Doc(AccountEmailsCollection, email) }

// SessionPath returns sessions/{sessionID}.
func SessionPath(sessionID string) string { return Doc(SessionsCollection, sessionID) }

// VerificationPath returns verifications/{token}.
func VerificationPath(token string) string { return Doc(VerificationsCollection, token) }
