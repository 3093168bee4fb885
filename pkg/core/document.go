package core

import (
	"encoding/json"
	"fmt"
)

// Section names accepted by ApplySection and the admin section endpoint.
const (
	SectionAnnouncements = "announcements"
	SectionHeader        = "header"
	SectionSlider        = "slider"
	SectionBanners       = "banners"
	SectionCategories    = "categories"
)

// Document is the per-shop mobile display configuration. Each field is an
// independently replaceable section; writes replace a whole section (or the
// whole document), never individual fields within one.
type Document struct {
	Announcements *AnnouncementsSection `json:"announcements,omitempty"`
	Header        *HeaderSection        `json:"header,omitempty"`
	Slider        *SliderSection        `json:"slider,omitempty"`
	Banners       *BannersSection       `json:"banners,omitempty"`
	Categories    *CategoriesSection    `json:"categories,omitempty"`
}

type AnnouncementsSection struct {
	Enabled       bool           `json:"enabled"`
	Announcements []Announcement `json:"announcements"`
}

type Announcement struct {
	ID   string `json:"id"`
	Text string `json:"text"`
	Link string `json:"link,omitempty"`
}

type HeaderSection struct {
	LogoURL    string    `json:"logoUrl,omitempty"`
	ShowSearch bool      `json:"showSearch"`
	Links      []NavLink `json:"links,omitempty"`
}

type NavLink struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

type SliderSection struct {
	Enabled         bool    `json:"enabled"`
	AutoplaySeconds int     `json:"autoplaySeconds,omitempty"`
	Slides          []Slide `json:"slides"`
}

type Slide struct {
	ID       string `json:"id"`
	ImageURL string `json:"imageUrl"`
	Title    string `json:"title,omitempty"`
	Link     string `json:"link,omitempty"`
}

type BannersSection struct {
	Enabled bool     `json:"enabled"`
	Banners []Banner `json:"banners"`
}

type Banner struct {
	ID       string `json:"id"`
	Title    string `json:"title,omitempty"`
	ImageURL string `json:"imageUrl,omitempty"`
	Link     string `json:"link,omitempty"`
}

type CategoriesSection struct {
	Featured []CategoryRef `json:"featured"`
}

type CategoryRef struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Handle   string `json:"handle,omitempty"`
	ImageURL string `json:"imageUrl,omitempty"`
}

// DefaultDocument is served to subscribers of a shop that has never been
// written: everything present but disabled, so clients always render from a
// complete document.
func DefaultDocument() *Document {
	return &Document{
		Announcements: &AnnouncementsSection{Announcements: []Announcement{}},
		Header:        &HeaderSection{ShowSearch: true},
		Slider:        &SliderSection{Slides: []Slide{}},
		Banners:       &BannersSection{Banners: []Banner{}},
		Categories:    &CategoriesSection{Featured: []CategoryRef{}},
	}
}

// ApplySection replaces one named section wholesale with the given JSON.
// Fields inside a section are never merged; the last writer for a section
// wins.
func (d *Document) ApplySection(name string, raw json.RawMessage) error {
	switch name {
	case SectionAnnouncements:
		var s AnnouncementsSection
		if err := json.Unmarshal(raw, &s); err != nil {
			return fmt.Errorf("parse %s section: %w", name, err)
		}
		d.Announcements = &s
	case SectionHeader:
		var s HeaderSection
		if err := json.Unmarshal(raw, &s); err != nil {
			return fmt.Errorf("parse %s section: %w", name, err)
		}
		d.Header = &s
	case SectionSlider:
		var s SliderSection
		if err := json.Unmarshal(raw, &s); err != nil {
			return fmt.Errorf("parse %s section: %w", name, err)
		}
		d.Slider = &s
	case SectionBanners:
		var s BannersSection
		if err := json.Unmarshal(raw, &s); err != nil {
			return fmt.Errorf("parse %s section: %w", name, err)
		}
		d.Banners = &s
	case SectionCategories:
		var s CategoriesSection
		if err := json.Unmarshal(raw, &s); err != nil {
			return fmt.Errorf("parse %s section: %w", name, err)
		}
		d.Categories = &s
	default:
		return fmt.Errorf("%w: %s", ErrUnknownSection, name)
	}
	return nil
}

// Clone returns a deep copy via a JSON round trip. Documents handed out by
// stores must not alias store-internal state.
func (d *Document) Clone() (*Document, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	var cp Document
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, err
	}
	return &cp, nil
}
