// Package language implements the three-letter language code with optional
// country and script, and the process-wide registry of provider-specific
// code converters. The core works entirely in this canonical form and only
// crosses into a provider's own vocabulary through a named Converter, so
// adding a provider never touches this package.
package language

import (
	"fmt"
	"sync"

	xtext "golang.org/x/text/language"
)

// Language is a three-letter (ISO 639-2/T) language code with an optional
// country and script. Equality is structural — two Languages with the same
// fields are the same language.
type Language struct {
	Alpha3  string
	Country string
	Script  string
}

// ParseError reports that an IETF tag could not be resolved to a Language.
type ParseError struct {
	Tag string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("language: cannot parse IETF tag %q: %v", e.Tag, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// FromIETF parses a BCP-47 tag such as "en", "pt-BR", or "zh-Hant-TW" into
// a Language. "und" and unparseable tags fail with *ParseError.
func FromIETF(tag string) (Language, error) {
	t, err := xtext.Parse(tag)
	if err != nil {
		return Language{}, &ParseError{Tag: tag, Err: err}
	}
	base, conf := t.Base()
	if conf != xtext.Exact {
		return Language{}, &ParseError{Tag: tag, Err: fmt.Errorf("no base language")}
	}
	iso3, err := base.ISO3()
	if err != nil {
		return Language{}, &ParseError{Tag: tag, Err: err}
	}

	lang := Language{Alpha3: iso3}
	if region, conf := t.Region(); conf == xtext.Exact && region.String() != "ZZ" {
		lang.Country = region.String()
	}
	if script, conf := t.Script(); conf == xtext.Exact && script.String() != "Zzzz" {
		lang.Script = script.String()
	}
	return lang, nil
}

// ToIETF renders the Language back as a BCP-47 tag, the inverse of
// FromIETF for every Language FromIETF can produce.
func (l Language) ToIETF() string {
	base, err := xtext.ParseBase(l.Alpha3)
	if err != nil {
		return l.Alpha3
	}
	components := []any{base}
	if l.Script != "" {
		if scr, err := xtext.ParseScript(l.Script); err == nil {
			components = append(components, scr)
		}
	}
	if l.Country != "" {
		if reg, err := xtext.ParseRegion(l.Country); err == nil {
			components = append(components, reg)
		}
	}

	tag, err := xtext.Compose(components...)
	if err != nil {
		return l.Alpha3
	}
	return tag.String()
}

// IsUndefined reports whether l is the zero-value "undefined" language used
// as a sentinel for "no specific language" (e.g. a video's own audio track).
func (l Language) IsUndefined() bool {
	return l.Alpha3 == ""
}

func (l Language) String() string {
	return l.ToIETF()
}

// ConversionError reports that a Language or provider code fell outside a
// named converter's domain.
type ConversionError struct {
	Converter string
	Detail    string
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("language: converter %q: %s", e.Converter, e.Detail)
}

// Converter is a bidirectional codec between Language and one provider's
// own code vocabulary (a string, an integer, whatever that provider speaks
// natively).
type Converter interface {
	Convert(l Language) (any, error)
	Reverse(code any) (Language, error)
}

var (
	registryMu sync.RWMutex
	registry   = map[string]Converter{}
)

// RegisterConverter installs c under name, process-wide. A second
// registration under the same name silently replaces the first.
func RegisterConverter(name string, c Converter) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = c
}

// Convert looks up the converter registered as name and converts l through
// it.
func Convert(name string, l Language) (any, error) {
	c, ok := lookupConverter(name)
	if !ok {
		return nil, &ConversionError{Converter: name, Detail: "not registered"}
	}
	return c.Convert(l)
}

// Reverse looks up the converter registered as name and converts code back
// into a Language.
func Reverse(name string, code any) (Language, error) {
	c, ok := lookupConverter(name)
	if !ok {
		return Language{}, &ConversionError{Converter: name, Detail: "not registered"}
	}
	return c.Reverse(code)
}

func lookupConverter(name string) (Converter, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	c, ok := registry[name]
	return c, ok
}
