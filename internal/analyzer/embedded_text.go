package analyzer

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"image"
	"io"
	"strings"

	"github.com/bep/imagemeta"
)

const (
	maxEmbeddedTexts   = 32
	maxEmbeddedTextLen = 16 << 10
)

// textTagHints select the EXIF/IPTC/XMP fields generators write prompts and
// captions into
var textTagHints = []string{
	"description",
	"comment",
	"caption",
	"title",
	"subject",
	"keywords",
	"parameters",
	"prompt",
}

var metaFormats = map[string]imagemeta.ImageFormat{
	"jpeg": imagemeta.JPEG,
	"png":  imagemeta.PNG,
	"webp": imagemeta.WebP,
}

// ExtractEmbeddedText returns the descriptive text stored in the image
// container: EXIF/IPTC/XMP description and comment fields plus PNG text
// chunks, where generators record their prompts. Unreadable data yields nil.
func ExtractEmbeddedText(payload []byte) []string {
	if len(payload) == 0 {
		return nil
	}

	var texts []string
	add := func(s string) {
		s = strings.TrimSpace(strings.ToValidUTF8(s, ""))
		if s == "" || len(texts) >= maxEmbeddedTexts {
			return
		}
		if len(s) > maxEmbeddedTextLen {
			s = s[:maxEmbeddedTextLen]
		}
		texts = append(texts, s)
	}

	_, format, err := image.DecodeConfig(bytes.NewReader(payload))
	if err != nil {
		return nil
	}

	if metaFormat, ok := metaFormats[format]; ok {
		_ = imagemeta.Decode(imagemeta.Options{
			R:           bytes.NewReader(payload),
			ImageFormat: metaFormat,
			Sources:     imagemeta.EXIF | imagemeta.IPTC | imagemeta.XMP,
			ShouldHandleTag: func(ti imagemeta.TagInfo) bool {
				return wantedTextTag(ti.Tag)
			},
			HandleTag: func(ti imagemeta.TagInfo) error {
				for _, s := range tagValueStrings(ti.Value) {
					add(s)
				}
				return nil
			},
		})
	}

	if format == "png" {
		for _, s := range pngTextChunks(payload) {
			add(s)
		}
	}

	return texts
}

func wantedTextTag(tag string) bool {
	lower := strings.ToLower(tag)
	for _, hint := range textTagHints {
		if strings.Contains(lower, hint) {
			return true
		}
	}
	return false
}

// tagValueStrings extracts strings from a tag value. XMP values may be
// string or []string, EXIF comments may be raw bytes.
func tagValueStrings(v any) []string {
	switch val := v.(type) {
	case string:
		return []string{val}
	case []string:
		return val
	case []byte:
		return []string{string(bytes.Trim(val, "\x00"))}
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

var pngSignature = []byte("\x89PNG\r\n\x1a\n")

// pngTextChunks reads the values of tEXt, zTXt and iTXt chunks
func pngTextChunks(data []byte) []string {
	if !bytes.HasPrefix(data, pngSignature) {
		return nil
	}

	var out []string
	rest := data[len(pngSignature):]
	for len(rest) >= 12 && len(out) < maxEmbeddedTexts {
		length := binary.BigEndian.Uint32(rest[:4])
		chunkType := string(rest[4:8])
		if uint64(length)+12 > uint64(len(rest)) {
			break
		}
		body := rest[8 : 8+length]
		rest = rest[12+length:]

		switch chunkType {
		case "tEXt":
			if _, value, ok := bytes.Cut(body, []byte{0}); ok {
				out = append(out, string(value))
			}
		case "zTXt":
			if _, value, ok := bytes.Cut(body, []byte{0}); ok && len(value) > 1 {
				if text, err := inflate(value[1:]); err == nil {
					out = append(out, text)
				}
			}
		case "iTXt":
			if text, ok := internationalText(body); ok {
				out = append(out, text)
			}
		case "IEND":
			return out
		}
	}
	return out
}

// internationalText decodes an iTXt body:
// keyword 0 flag method language 0 translated 0 text
func internationalText(body []byte) (string, bool) {
	_, rest, ok := bytes.Cut(body, []byte{0})
	if !ok || len(rest) < 2 {
		return "", false
	}
	compressed := rest[0] == 1
	rest = rest[2:]
	if _, rest, ok = bytes.Cut(rest, []byte{0}); !ok {
		return "", false
	}
	if _, rest, ok = bytes.Cut(rest, []byte{0}); !ok {
		return "", false
	}
	if !compressed {
		return string(rest), true
	}
	text, err := inflate(rest)
	return text, err == nil
}

func inflate(data []byte) (string, error) {
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	defer r.Close()
	out, err := io.ReadAll(io.LimitReader(r, maxEmbeddedTextLen))
	if err != nil {
		return "", err
	}
	return string(out), nil
}
