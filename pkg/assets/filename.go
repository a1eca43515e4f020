package assets

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

const (
	maxNameLength = 100
	hostileChars  = `<>:"/\|?*`
	defaultExt    = ".png"
)

var whitespaceRun = regexp.MustCompile(`\s+`)

// SanitizeName makes a card name safe for use in a file name.
func SanitizeName(name string) string {
	name = strings.Map(func(r rune) rune {
		if strings.ContainsRune(hostileChars, r) {
			return '_'
		}
		return r
	}, name)
	name = strings.TrimSpace(whitespaceRun.ReplaceAllString(name, " "))
	if runes := []rune(name); len(runes) > maxNameLength {
		name = string(runes[:maxNameLength])
	}
	return name
}

// FileName builds "<NNN>_<sanitized name><ext>" for the card at index.
func FileName(index int, name, imageURL string, opts Options) string {
	ext := opts.Format.Ext()
	if !opts.Optimize {
		ext = ExtFromURL(imageURL)
	}
	return fmt.Sprintf("%03d_%s%s", index, SanitizeName(name), ext)
}

// ExtFromURL takes the extension of the file named by the thumbnail
// endpoint's "f" query parameter, falling back to .png.
func ExtFromURL(imageURL string) string {
	u, err := url.Parse(imageURL)
	if err != nil {
		return defaultExt
	}
	f := u.Query().Get("f")
	i := strings.LastIndex(f, ".")
	if i < 0 || i == len(f)-1 {
		return defaultExt
	}
	return f[i:]
}
