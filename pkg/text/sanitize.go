package text

import "strings"

// FilenameDenylist holds the characters SanitizeFilename strips.
const FilenameDenylist = `/\:*?"<>|`

var filenameReplacer = buildFilenameReplacer()

func buildFilenameReplacer() *strings.Replacer {
	pairs := []string{" ", "_"}
	for _, r := range FilenameDenylist {
		pairs = append(pairs, string(r), "")
	}
	return strings.NewReplacer(pairs...)
}

// SanitizeFilename turns a track title into a base name that is safe on common filesystems:
// every space becomes an underscore and the characters in FilenameDenylist are removed.
// The result is not length limited and may be empty.
func SanitizeFilename(title string) string {
	return filenameReplacer.Replace(title)
}
