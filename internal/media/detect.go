package media

import "strings"

var audioExts = map[string]bool{
	".mp3":  true,
	".wav":  true,
	".flac": true,
	".ogg":  true,
}

// IsSupportedExt returns true if the extension is a decodable audio file format.
func IsSupportedExt(ext string) bool {
	return audioExts[strings.ToLower(ext)]
}

// SupportedExtsList returns a human-readable list of decodable audio file formats.
func SupportedExtsList() string {
	return ".mp3, .wav, .flac, .ogg"
}
