package gateway

// mimeTypes is the fixed extension-to-MIME allow-list spec §6 specifies.
// An extension not on this list is a BadRequest, not a sniffed guess --
// the gateway never inspects file contents (spec §4.7).
//
// Grounded verbatim on original_source/core/src/custom_uri.rs's
// handle_file match arm.
var mimeTypes = map[string]string{
	"aac":  "audio/aac",
	"mid":  "audio/midi, audio/x-midi",
	"midi": "audio/midi, audio/x-midi",
	"mp3":  "audio/mpeg",
	"m4a":  "audio/mp4",
	"oga":  "audio/ogg",
	"opus": "audio/opus",
	"wav":  "audio/wav",
	"weba": "audio/webm",
	"avi":  "video/x-msvideo",
	"mp4":  "video/mp4",
	"m4v":  "video/mp4",
	"mpeg": "video/mpeg",
	"ogv":  "video/ogg",
	"ts":   "video/mp2t",
	"webm": "video/webm",
	"3gp":  "video/3gpp",
	"3g2":  "video/3gpp2",
	"mov":  "video/quicktime",
	"avif": "image/avif",
	"bmp":  "image/bmp",
	"gif":  "image/gif",
	"ico":  "image/vnd.microsoft.icon",
	"jpeg": "image/jpeg",
	"jpg":  "image/jpeg",
	"png":  "image/png",
	"svg":  "image/svg+xml",
	"tif":  "image/tiff",
	"tiff": "image/tiff",
	"webp": "image/webp",
	"pdf":  "application/pdf",
}

// mimeForExtension returns the MIME type for a lowercase, dot-stripped
// extension and whether it is on the allow-list.
func mimeForExtension(ext string) (string, bool) {
	m, ok := mimeTypes[ext]
	return m, ok
}
