package i18n

// germanMessages contains all German translations.
var germanMessages = map[string]string{
	// Fehlermeldungen
	"error.generic":       "Etwas ist schiefgelaufen: %v",
	"error.not_found":     "Track nicht gefunden: %s. Prüfe den Link und ob der Track öffentlich ist.",
	"error.forbidden":     "Zugriff auf %s verweigert. Der Track ist eventuell privat oder in deiner Region gesperrt.",
	"error.transport":     "Netzwerkfehler: %v",
	"error.io":            "Datei konnte nicht geschrieben werden: %v",
	"error.selection":     "Es konnte kein Stream ausgewählt werden: %v",
	"error.not_a_track":   "%s ist kein einzelner Track. Playlists und Profile werden nicht unterstützt.",
	"error.invalid_url":   "Kein SoundCloud-Track-Link: %s",
	"error.no_urls":       "Keine SoundCloud-Links angegeben. Gib eine URL an oder nutze --input bzw. --interactive.",
	"error.config":        "Ungültige Konfiguration: %v",
	"error.rate_limited":  "Zu viele Downloads. Versuche es in %d Sekunden erneut.",
	"error.bad_request":   "Ungültige Anfrage: %v",
	"error.dir_not_found": "Kein existierendes Verzeichnis",

	// Fragen und Eingaben
	"prompt.url":         "SoundCloud-Track-URL",
	"prompt.directory":   "Download-Verzeichnis",
	"prompt.fields":      "Zu ändernde Felder",
	"prompt.field_value": "Neuer Wert für %s",
	"prompt.fields_help": "Leertaste zum Auswählen, Enter zum Bestätigen. Nichts auswählen, um alle Werte zu behalten.",
	"prompt.another":     "Noch einen Track herunterladen?",

	// Formatierung
	"format.track": "%s - %s",
	"format.album": " (Album: %s)",

	// Pipeline-Zustände
	"state.resolving":       "Löse %s auf",
	"state.fetching_cover":  "Lade Cover",
	"state.fetching_stream": "Lade Audiostream",
	"state.tagging":         "Schreibe Tags",

	// Erfolgsmeldungen
	"success.downloaded": "%s nach %s heruntergeladen",
	"success.duplicate":  "Übersprungen, bereits heruntergeladen: %s",
	"success.summary":    "%d heruntergeladen, %d übersprungen, %d fehlgeschlagen",
}
