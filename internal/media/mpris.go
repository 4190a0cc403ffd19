package media

import (
	"net/url"

	"github.com/godbus/dbus/v5"
)

const (
	mprisInterface       = "org.mpris.MediaPlayer2"
	mprisPlayerInterface = "org.mpris.MediaPlayer2.Player"
	mprisBusName         = "org.mpris.MediaPlayer2.beatd"
	mprisObjectPath      = "/org/mpris/MediaPlayer2"
	mprisTrackID         = "/org/beatd/track/current"
	identity             = "beatd"
)

var supportedMimeTypes = []string{"audio/wav", "audio/x-wav", "audio/mpeg", "audio/flac"}

// playbackStatus returns the MPRIS PlaybackStatus string for state
func playbackStatus(state PlaybackState) string {
	switch state {
	case StatePlaying:
		return "Playing"
	case StatePaused:
		return "Paused"
	default:
		return "Stopped"
	}
}

// metadataMap builds the MPRIS Metadata dictionary.
func metadataMap(md Metadata) map[string]dbus.Variant {
	m := map[string]dbus.Variant{
		"mpris:trackid": dbus.MakeVariant(dbus.ObjectPath(mprisTrackID)),
	}

	if md.Title != "" {
		m["xesam:title"] = dbus.MakeVariant(md.Title)
	}
	if md.Path != "" {
		u := url.URL{Scheme: "file", Path: md.Path}
		m["xesam:url"] = dbus.MakeVariant(u.String())
	}
	if md.Duration > 0 {
		m["mpris:length"] = dbus.MakeVariant(md.Duration.Microseconds())
	}
	if md.BPM > 0 {
		m["xesam:audioBPM"] = dbus.MakeVariant(int32(md.BPM + 0.5))
	}
	return m
}

// parseLoopStatus accepts the MPRIS loop values. Playlist looping is
// treated as track looping since only one track is ever loaded.
func parseLoopStatus(s string) (LoopStatus, bool) {
	switch s {
	case "None":
		return LoopNone, true
	case "Track", "Playlist":
		return LoopTrack, true
	default:
		return "", false
	}
}
