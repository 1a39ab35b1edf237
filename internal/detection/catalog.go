package detection

import (
	"fmt"
	"io"
	"os"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

// ItemsPerPage is the number of catalog entries revealed per page.
const ItemsPerPage = 6

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// datasetItem is one element of the dataset file.
type datasetItem struct {
	Image  string `json:"image"`
	Bboxes []Box  `json:"bboxes"`
}

// Entry is a catalog row: a Record plus the fields derived for listing.
type Entry struct {
	ID           int      `json:"id"`
	Filename     string   `json:"filename"`
	ImageURL     string   `json:"image_url"`
	Boxes        []Box    `json:"boxes"`
	UniqueLabels []string `json:"unique_labels"`
	BoxCount     int      `json:"box_count"`
}

// Record returns the entry as a viewer input.
func (e Entry) Record() Record {
	return Record{ImageURL: e.ImageURL, Filename: e.Filename, Boxes: e.Boxes}
}

// FilteredCount returns the number of boxes at or above threshold.
func (e Entry) FilteredCount(threshold float64) int {
	return CountVisible(e.Boxes, threshold)
}

// VisibleLabels returns the distinct labels of the boxes at or above threshold.
func (e Entry) VisibleLabels(threshold float64) []string {
	return UniqueLabels(Filter(e.Boxes, threshold))
}

// matches reports whether term (already lower-cased) occurs in the filename
// or in any label.
func (e Entry) matches(term string) bool {
	if strings.Contains(strings.ToLower(e.Filename), term) {
		return true
	}
	for _, l := range e.UniqueLabels {
		if strings.Contains(strings.ToLower(l), term) {
			return true
		}
	}
	return false
}

// Catalog is an immutable, indexed detection dataset.
type Catalog struct {
	entries []Entry
}

// LoadCatalog decodes a dataset of the form [{"image": url, "bboxes": [...]}].
//
// Every entry is validated; the first invalid box aborts the load.
func LoadCatalog(r io.Reader) (*Catalog, error) {
	var items []datasetItem
	if err := json.NewDecoder(r).Decode(&items); err != nil {
		return nil, fmt.Errorf("failed to decode dataset: %w", err)
	}

	entries := make([]Entry, 0, len(items))
	for i, item := range items {
		e := Entry{
			ID:           i,
			Filename:     FilenameFromURL(item.Image),
			ImageURL:     item.Image,
			Boxes:        item.Bboxes,
			UniqueLabels: UniqueLabels(item.Bboxes),
			BoxCount:     len(item.Bboxes),
		}
		if err := e.Record().Validate(); err != nil {
			return nil, fmt.Errorf("dataset entry %d: %w", i, err)
		}
		entries = append(entries, e)
	}

	return &Catalog{entries: entries}, nil
}

// LoadCatalogFile opens path and calls LoadCatalog.
func LoadCatalogFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset: %w", err)
	}
	defer f.Close()

	return LoadCatalog(f)
}

// Len returns the number of entries.
func (c *Catalog) Len() int { return len(c.entries) }

// Entries returns all entries in dataset order.
func (c *Catalog) Entries() []Entry {
	return append([]Entry(nil), c.entries...)
}

// Get returns the entry with the given ID.
func (c *Catalog) Get(id int) (Entry, bool) {
	if id < 0 || id >= len(c.entries) {
		return Entry{}, false
	}
	return c.entries[id], true
}

// Search returns entries whose filename or labels contain term,
// case-insensitively. An empty term returns everything.
func (c *Catalog) Search(term string) []Entry {
	if term == "" {
		return c.Entries()
	}
	term = strings.ToLower(term)
	var out []Entry
	for _, e := range c.entries {
		if e.matches(term) {
			out = append(out, e)
		}
	}
	return out
}

// Displayed returns the entries revealed after page (0-based) infinite-scroll
// pages, and whether more remain.
func Displayed(entries []Entry, page int) ([]Entry, bool) {
	if page < 0 {
		page = 0
	}
	end := (page + 1) * ItemsPerPage
	if end >= len(entries) {
		return entries, false
	}
	return entries[:end], true
}

// TotalVisible sums FilteredCount over entries.
func TotalVisible(entries []Entry, threshold float64) int {
	total := 0
	for _, e := range entries {
		total += e.FilteredCount(threshold)
	}
	return total
}
