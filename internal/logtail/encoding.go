package logtail

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/traditionalchinese"
	"golang.org/x/text/encoding/unicode"
)

// DefaultEncodings is the order in which encodings are tried.
var DefaultEncodings = []string{"utf-8", "gbk", "gb18030", "utf-16", "latin1"}

type codec struct {
	name   string
	wide   bool // two-byte code units, little endian newline
	decode func([]byte) (string, bool)
}

func textCodec(name string, enc encoding.Encoding, wide bool) codec {
	return codec{
		name: name,
		wide: wide,
		decode: func(b []byte) (string, bool) {
			if !wide && bytes.IndexByte(b, 0) >= 0 {
				return "", false
			}
			out, err := enc.NewDecoder().Bytes(b)
			if err != nil {
				return "", false
			}
			// x/text decoders substitute invalid input instead of failing.
			if bytes.ContainsRune(out, utf8.RuneError) {
				return "", false
			}
			return string(out), true
		},
	}
}

var utf8Codec = codec{
	name: "utf-8",
	decode: func(b []byte) (string, bool) {
		// NUL bytes mean two-byte code units, not text.
		if !utf8.Valid(b) || bytes.IndexByte(b, 0) >= 0 {
			return "", false
		}
		return string(b), true
	},
}

var asciiCodec = codec{
	name: "ascii",
	decode: func(b []byte) (string, bool) {
		for _, c := range b {
			if c == 0 || c >= utf8.RuneSelf {
				return "", false
			}
		}
		return string(b), true
	},
}

func lookupCodec(name string) (codec, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "utf-8", "utf8":
		return utf8Codec, true
	case "ascii", "us-ascii":
		return asciiCodec, true
	case "gbk", "gb2312", "cp936":
		return textCodec("gbk", simplifiedchinese.GBK, false), true
	case "gb18030":
		return textCodec("gb18030", simplifiedchinese.GB18030, false), true
	case "big5":
		return textCodec("big5", traditionalchinese.Big5, false), true
	case "shift_jis", "sjis":
		return textCodec("shift_jis", japanese.ShiftJIS, false), true
	case "euc-kr":
		return textCodec("euc-kr", korean.EUCKR, false), true
	case "utf-16", "utf16", "utf-16le":
		return textCodec("utf-16", unicode.UTF16(unicode.LittleEndian, unicode.UseBOM), true), true
	case "latin1", "latin-1", "iso-8859-1":
		return textCodec("latin1", charmap.ISO8859_1, false), true
	case "cp1252", "windows-1252":
		return textCodec("cp1252", charmap.Windows1252, false), true
	}
	return codec{}, false
}

// KnownEncoding reports whether name is a supported encoding.
func KnownEncoding(name string) bool {
	_, ok := lookupCodec(name)
	return ok
}

// completeLen returns how many bytes of b end in a newline for this codec.
func (c codec) completeLen(b []byte) int {
	if !c.wide {
		return bytes.LastIndexByte(b, '\n') + 1
	}
	for i := len(b) - 2; i >= 0; i-- {
		if i%2 == 0 && b[i] == '\n' && b[i+1] == 0 {
			return i + 2
		}
	}
	return 0
}
