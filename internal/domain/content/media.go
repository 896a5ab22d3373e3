package content

import "strings"

// MediaKind identifies how an item is rendered by the messenger.
type MediaKind string

const (
	MediaText      MediaKind = "text"
	MediaPhoto     MediaKind = "photo"
	MediaVideo     MediaKind = "video"
	MediaDocument  MediaKind = "document"
	MediaAnimation MediaKind = "animation"
	MediaAudio     MediaKind = "audio"
	MediaVoice     MediaKind = "voice"
	MediaVideoNote MediaKind = "video_note"
)

// legacyMediaKinds maps the numeric codes older rows were stored with.
var legacyMediaKinds = map[string]MediaKind{
	"0": MediaText,
	"1": MediaPhoto,
	"2": MediaVideo,
	"3": MediaDocument,
	"4": MediaAnimation,
	"5": MediaAudio,
	"6": MediaVoice,
	"7": MediaVideoNote,
}

// Media is the payload descriptor of an item: a kind plus a Telegram file id.
type Media struct {
	Kind   MediaKind
	FileID string
}

// HasFile reports whether a usable file id is present.
func (m Media) HasFile() bool {
	return strings.TrimSpace(m.FileID) != ""
}

// SupportsMarkup reports whether the transport accepts a caption and inline
// keyboard together with this kind of media.
func (k MediaKind) SupportsMarkup() bool {
	return k != MediaVoice && k != MediaVideoNote
}

// Valid reports whether k is one of the known kinds.
func (k MediaKind) Valid() bool {
	switch k {
	case MediaText, MediaPhoto, MediaVideo, MediaDocument, MediaAnimation, MediaAudio, MediaVoice, MediaVideoNote:
		return true
	}
	return false
}

// NormalizeMediaKind converts a stored media_type value to a MediaKind.
// The second result is false when the raw value was unrecognized and text was assumed.
func NormalizeMediaKind(raw string) (MediaKind, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return MediaText, true
	}
	if k, ok := legacyMediaKinds[raw]; ok {
		return k, true
	}
	k := MediaKind(strings.ToLower(raw))
	if k.Valid() {
		return k, true
	}
	return MediaText, false
}
