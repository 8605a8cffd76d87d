package i18n

// englishMessages contains all English translations.
var englishMessages = map[string]string{
	// Error messages
	"error.generic":       "Something went wrong: %v",
	"error.not_found":     "Track not found: %s. Check the link and make sure the track is public.",
	"error.forbidden":     "Access to %s is forbidden. The track may be private or blocked in your region.",
	"error.transport":     "Network error: %v",
	"error.io":            "Could not write the file: %v",
	"error.selection":     "No stream could be selected: %v",
	"error.not_a_track":   "%s is not a single track. Playlists and profiles are not supported.",
	"error.invalid_url":   "Not a SoundCloud track link: %s",
	"error.no_urls":       "No SoundCloud links given. Pass a URL, use --input or --interactive.",
	"error.config":        "Invalid configuration: %v",
	"error.rate_limited":  "Too many downloads. Try again in %d seconds.",
	"error.bad_request":   "Invalid request: %v",
	"error.dir_not_found": "Not an existing directory",

	// Questions and prompts
	"prompt.url":         "SoundCloud track URL",
	"prompt.directory":   "Download directory",
	"prompt.fields":      "Fields to change",
	"prompt.field_value": "New %s",
	"prompt.fields_help": "Space to select, enter to confirm. Select nothing to keep all values.",
	"prompt.another":     "Download another track?",

	// Format helpers
	"format.track": "%s - %s",
	"format.album": " (Album: %s)",

	// Pipeline states
	"state.resolving":       "Resolving %s",
	"state.fetching_cover":  "Fetching cover art",
	"state.fetching_stream": "Fetching audio stream",
	"state.tagging":         "Writing tags",

	// Success messages
	"success.downloaded": "Downloaded %s to %s",
	"success.duplicate":  "Skipped, already downloaded: %s",
	"success.summary":    "%d downloaded, %d skipped, %d failed",
}
