package extract

import "regexp"

// LinkPattern matches a YouTube watch or youtu.be short link with its
// 11-character video ID.
var LinkPattern = regexp.MustCompile(`https?://(?:www\.)?(?:youtube\.com/watch\?v=|youtu\.be/)[\w-]{11}`)

// ExtractLinks returns the distinct media links in text, in order of first
// occurrence.
func ExtractLinks(text string) []string {
	links := []string{}
	seen := make(map[string]struct{})
	for _, link := range LinkPattern.FindAllString(text, -1) {
		if _, dup := seen[link]; dup {
			continue
		}
		seen[link] = struct{}{}
		links = append(links, link)
	}
	return links
}
