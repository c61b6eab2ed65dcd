package object

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"
)

// DecodeText renders stored text bytes as UTF-8. Valid UTF-8 is returned as
// is. Otherwise the bytes are decoded with the named legacy charset (the
// commit "encoding" header) and, failing that, as ISO-8859-1, which maps
// every byte. It never fails.
func DecodeText(raw, charset string) string {
	if utf8.ValidString(raw) {
		return raw
	}
	if enc := lookupCharset(charset); enc != nil {
		if out, err := enc.NewDecoder().String(raw); err == nil && utf8.ValidString(out) {
			return out
		}
	}
	out, err := charmap.ISO8859_1.NewDecoder().String(raw)
	if err != nil {
		return strings.ToValidUTF8(raw, string(utf8.RuneError))
	}
	return out
}

func lookupCharset(name string) encoding.Encoding {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil
	}
	return enc
}

// MessageText returns the commit message as UTF-8.
func (c *Commit) MessageText() string {
	charset, _ := c.Header("encoding")
	return DecodeText(c.Message, charset)
}

// AuthorText returns the author line as UTF-8.
func (c *Commit) AuthorText() string {
	charset, _ := c.Header("encoding")
	return DecodeText(c.Author, charset)
}

// MessageText returns the tag message as UTF-8.
func (t *Tag) MessageText() string {
	charset, _ := t.Header("encoding")
	return DecodeText(t.Message, charset)
}
