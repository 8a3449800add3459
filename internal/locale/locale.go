// Package locale loads the embedded message bundles used for formatted range
// text and UI labels.
package locale

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"path"
	"sync"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

// Message IDs shared by the formatter and the web UI.
const (
	MsgRangePrimaryOnly   = "RangePrimaryOnly"
	MsgRangeWithSecondary = "RangeWithSecondary"

	MsgTitle               = "Title"
	MsgSecondaryZoneLabel  = "SecondaryZoneLabel"
	MsgUseSecondaryLabel   = "UseSecondaryLabel"
	MsgSelectedRangesLabel = "SelectedRangesLabel"
	MsgHowToUse            = "HowToUse"
)

// LabelIDs lists the messages returned by Labels.
var LabelIDs = []string{
	MsgTitle,
	MsgSecondaryZoneLabel,
	MsgUseSecondaryLabel,
	MsgSelectedRangesLabel,
	MsgHowToUse,
}

//go:embed messages/*.json
var messageFS embed.FS

// Catalog wraps an i18n bundle with a small per-language localizer cache.
type Catalog struct {
	bundle  *i18n.Bundle
	matcher language.Matcher

	mu         sync.RWMutex
	localizers map[string]*i18n.Localizer
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
	defaultErr     error
)

// Default returns the catalog built from the embedded message files.
func Default() (*Catalog, error) {
	defaultOnce.Do(func() {
		defaultCatalog, defaultErr = Load(messageFS, "messages")
	})
	return defaultCatalog, defaultErr
}

// Load parses every *.json file under dir. File names must carry the language
// tag (e.g. active.ja.json).
func Load(fsys fs.FS, dir string) (*Catalog, error) {
	bundle := i18n.NewBundle(language.Japanese)
	bundle.RegisterUnmarshalFunc("json", json.Unmarshal)

	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("locale: read %s: %w", dir, err)
	}
	for _, e := range entries {
		if e.IsDir() || path.Ext(e.Name()) != ".json" {
			continue
		}
		p := path.Join(dir, e.Name())
		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			return nil, fmt.Errorf("locale: read %s: %w", p, err)
		}
		if _, err := bundle.ParseMessageFileBytes(data, p); err != nil {
			return nil, fmt.Errorf("locale: parse %s: %w", p, err)
		}
	}

	return &Catalog{
		bundle:     bundle,
		matcher:    language.NewMatcher(bundle.LanguageTags()),
		localizers: make(map[string]*i18n.Localizer),
	}, nil
}

// Match picks the best supported language for an Accept-Language header
// value. An empty or unparsable header yields the bundle default.
func (c *Catalog) Match(acceptLanguage string) string {
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return language.Japanese.String()
	}
	_, idx, _ := c.matcher.Match(tags...)
	return c.bundle.LanguageTags()[idx].String()
}

func (c *Catalog) localizer(lang string) *i18n.Localizer {
	c.mu.RLock()
	l, ok := c.localizers[lang]
	c.mu.RUnlock()
	if ok {
		return l
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if l, ok := c.localizers[lang]; ok {
		return l
	}
	tag, err := language.Parse(lang)
	if err != nil {
		tag = language.Japanese
	}
	l = i18n.NewLocalizer(c.bundle, tag.String())
	c.localizers[lang] = l
	return l
}

// Render localizes messageID for lang with the given template data.
func (c *Catalog) Render(lang, messageID string, data map[string]any) (string, error) {
	msg, err := c.localizer(lang).Localize(&i18n.LocalizeConfig{
		MessageID:    messageID,
		TemplateData: data,
	})
	if err != nil {
		return "", fmt.Errorf("locale: %s/%s: %w", lang, messageID, err)
	}
	return msg, nil
}

// Labels returns every UI label for lang.
func (c *Catalog) Labels(lang string) (map[string]string, error) {
	out := make(map[string]string, len(LabelIDs))
	for _, id := range LabelIDs {
		msg, err := c.Render(lang, id, nil)
		if err != nil {
			return nil, err
		}
		out[id] = msg
	}
	return out, nil
}
