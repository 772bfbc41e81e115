package launcher

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/samber/lo"
)

// ParseFlags splits a space-delimited string of Chromium flags into tokens.
// Quotes are not supported.
func ParseFlags(input string) []string {
	return strings.Fields(input)
}

// MergeFlags appends extra to base. Extension directories named by
// --load-extension and --disable-extensions-except in either list are merged
// into a single occurrence of each flag, and a --disable-extensions in extra
// is dropped when base loads an extension since that would unload it.
// Other duplicates keep their first occurrence.
func MergeFlags(base, extra []string) []string {
	var load, except []string
	out := make([]string, 0, len(base)+len(extra))
	seen := map[string]struct{}{}

	collect := func(tokens []string, allowDisableAll bool) {
		for _, tok := range tokens {
			switch {
			case strings.HasPrefix(tok, "--load-extension="):
				load = appendCSV(load, strings.TrimPrefix(tok, "--load-extension="))
			case strings.HasPrefix(tok, "--disable-extensions-except="):
				except = appendCSV(except, strings.TrimPrefix(tok, "--disable-extensions-except="))
			case tok == "--disable-extensions" && !allowDisableAll:
			default:
				if _, ok := seen[tok]; ok || tok == "" {
					continue
				}
				seen[tok] = struct{}{}
				out = append(out, tok)
			}
		}
	}

	baseLoads := false
	for _, tok := range base {
		if strings.HasPrefix(tok, "--load-extension=") {
			baseLoads = true
		}
	}
	collect(base, true)
	collect(extra, !baseLoads)

	if len(load) > 0 {
		out = append(out, "--load-extension="+strings.Join(load, ","))
	}
	if len(except) > 0 {
		out = append(out, "--disable-extensions-except="+strings.Join(except, ","))
	}
	return out
}

func appendCSV(dst []string, csv string) []string {
	parts := lo.Map(strings.Split(csv, ","), func(p string, _ int) string {
		return strings.TrimSpace(p)
	})
	return lo.Uniq(append(dst, lo.Compact(parts)...))
}

// ExtensionID returns the ID Chrome assigns to an unpacked extension loaded
// from absPath when its manifest carries no "key": the first 128 bits of the
// SHA-256 of the path, hex encoded with digits 0-f mapped onto a-p.
func ExtensionID(absPath string) string {
	sum := sha256.Sum256([]byte(absPath))
	hexID := hex.EncodeToString(sum[:16])

	var b strings.Builder
	b.Grow(len(hexID))
	for _, r := range hexID {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune('a' + (r - '0'))
		default:
			b.WriteRune('a' + 10 + (r - 'a'))
		}
	}
	return b.String()
}
