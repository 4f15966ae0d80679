package domain

import "slices"

// GenreAll is the feed filter value that disables genre filtering.
const GenreAll = "すべて"

// GenreOther is used when a post carries no genre.
const GenreOther = "その他"

// FilterGenres are the genres offered as feed filters, in display order.
var FilterGenres = []string{
	"ファンタジー",
	"SF",
	"恋愛",
	"ミステリー・サスペンス",
	"ホラー",
	"コメディ",
	"青春",
	"エッセイ・ノンフィクション",
	GenreOther,
}

// legacyGenres were offered by the old posting form and still appear on stored posts.
var legacyGenres = []string{"恋愛・ラブコメ", "現代ドラマ", "歴史"}

// Genres lists every genre a post may carry.
var Genres = slices.Concat(FilterGenres, legacyGenres)

// ValidGenre reports whether g may be stored on a post.
func ValidGenre(g string) bool {
	return slices.Contains(Genres, g)
}

// GenreOrOther returns g, or GenreOther when g is empty.
func GenreOrOther(g string) string {
	if g == "" {
		return GenreOther
	}
	return g
}
