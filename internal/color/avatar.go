// Package color picks avatar colors for users.
package color

import "hash/fnv"

// Fallback is used for users without an id, such as deleted authors.
const Fallback = "#B0B0B0"

// palette holds soft, readable background colors for the initial shown in
// place of a profile image.
var palette = []string{
	"#E57373", "#F06292", "#BA68C8", "#9575CD",
	"#7986CB", "#64B5F6", "#4FC3F7", "#4DD0E1",
	"#4DB6AC", "#81C784", "#AED581", "#DCE775",
	"#FFD54F", "#FFB74D", "#FF8A65", "#A1887F",
}

// ForUser returns the avatar color for userID. The same id always maps to
// the same color.
func ForUser(userID string) string {
	if userID == "" {
		return Fallback
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	return palette[h.Sum32()%uint32(len(palette))]
}
