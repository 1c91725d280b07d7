package services

import (
	"path"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"catalog-import-service/internal/models"
)

// gallerySuffix matches a trailing "_<digits>" gallery marker
var gallerySuffix = regexp.MustCompile(`^(.+)_(\d+)$`)

// PhotoKey is the matching key derived from a photo file name
type PhotoKey struct {
	FileName   string
	Raw        string
	Base       string
	Normalized string
	Index      int
}

// ParsePhotoKey strips directories and the extension, then splits a trailing
// "_<digits>" into the gallery index when suffixParsing is on.
func ParsePhotoKey(fileName string, suffixParsing bool) PhotoKey {
	name := path.Base(strings.ReplaceAll(fileName, "\\", "/"))
	raw := strings.TrimSuffix(name, path.Ext(name))

	key := PhotoKey{FileName: fileName, Raw: raw, Base: raw}
	if suffixParsing {
		if m := gallerySuffix.FindStringSubmatch(raw); m != nil {
			if n, err := strconv.Atoi(m[2]); err == nil {
				key.Base = m[1]
				key.Index = n
			}
		}
	}
	key.Normalized = NormalizeKey(key.Base)
	return key
}

// NormalizeKey canonicalizes a matching key: NFKC, full Unicode case folding,
// then removal of whitespace, '_', '-' and '.'. File names and record values go
// through the same function.
func NormalizeKey(s string) string {
	s = cases.Fold().String(norm.NFKC.String(s))
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		switch r {
		case '_', '-', '.':
			return -1
		}
		return r
	}, s)
}

// MatchIndex is a snapshot of a category's records keyed by the normalized
// mapping property value
type MatchIndex struct {
	property string
	byKey    map[string][]models.ProductRecord
}

// NewMatchIndex indexes records by property. Records without a usable value are
// left out. When property is the identity field, the internal SKU stands in for
// a missing property value.
func NewMatchIndex(records []models.ProductRecord, property, identityField string) *MatchIndex {
	idx := &MatchIndex{property: property, byKey: make(map[string][]models.ProductRecord)}
	for _, rec := range records {
		key := NormalizeKey(mappingValue(rec, property, identityField))
		if key == "" {
			continue
		}
		idx.byKey[key] = append(idx.byKey[key], rec)
	}
	return idx
}

func mappingValue(rec models.ProductRecord, property, identityField string) string {
	if v, ok := rec.Properties[property]; ok && !v.IsZero() {
		return v.String()
	}
	if property == identityField {
		return rec.InternalSKU
	}
	return ""
}

// FindByMappingPropertyNormalized returns the records whose normalized mapping value equals key
func (m *MatchIndex) FindByMappingPropertyNormalized(key string) []models.ProductRecord {
	if key == "" {
		return nil
	}
	return m.byKey[key]
}

// Keys returns the number of distinct keys in the index
func (m *MatchIndex) Keys() int {
	return len(m.byKey)
}
