// Package catalog reads the repository alias catalog.
//
// Workflow steps may name a repository by a short alias instead of a path.
// The catalog maps each alias to the repository path that is appended to the
// configured base URL, or to a full URL that is used as-is.
//
// CSV format:
//
//	alias,repo,description
//	payments,Payments/_git/payments-api,Payments service
//	web,https://github.com/acme/web,Public site
//
// Aliases are matched case-insensitively. A later row with the same alias
// replaces the earlier one.
package catalog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
)

// Entry is a single row of the catalog.
type Entry struct {
	// Alias is the short name used in a step's "- Repo:" line.
	Alias string `json:"alias"`

	// Repo is the repository path or full URL the alias stands for.
	Repo string `json:"repo"`

	// Description is free text shown by listings.
	Description string `json:"description,omitempty"`
}

// Catalog holds alias entries keyed by lowercase alias.
type Catalog struct {
	entries map[string]Entry
}

// New builds a catalog from entries. Entries with an empty alias or repo are
// skipped.
func New(entries ...Entry) *Catalog {
	c := &Catalog{entries: make(map[string]Entry, len(entries))}
	for _, e := range entries {
		c.add(e)
	}
	return c
}

// ReadFromFile reads and parses a catalog CSV file.
func ReadFromFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open repo catalog: %w", err)
	}
	defer f.Close()

	return readFromReader(f)
}

func readFromReader(r io.Reader) (*Catalog, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1
	reader.Comment = '#'

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read repo catalog header: %w", err)
	}

	colIndex := buildColumnIndex(header)
	if err := validateColumns(colIndex); err != nil {
		return nil, err
	}

	c := New()
	lineNum := 1
	for {
		lineNum++
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read repo catalog line %d: %w", lineNum, err)
		}

		entry := Entry{
			Alias:       getField(record, colIndex, "alias"),
			Repo:        getField(record, colIndex, "repo"),
			Description: getField(record, colIndex, "description"),
		}
		if entry.Alias == "" {
			return nil, fmt.Errorf("repo catalog line %d: alias is required", lineNum)
		}
		if entry.Repo == "" {
			return nil, fmt.Errorf("repo catalog line %d: repo is required for alias %q", lineNum, entry.Alias)
		}
		c.add(entry)
	}

	return c, nil
}

var requiredColumns = []string{"alias", "repo"}

func buildColumnIndex(header []string) map[string]int {
	index := make(map[string]int, len(header))
	for i, col := range header {
		index[strings.TrimSpace(strings.ToLower(col))] = i
	}
	return index
}

func validateColumns(colIndex map[string]int) error {
	for _, col := range requiredColumns {
		if _, ok := colIndex[col]; !ok {
			return fmt.Errorf("repo catalog missing required column: %s", col)
		}
	}
	return nil
}

func getField(record []string, colIndex map[string]int, column string) string {
	idx, ok := colIndex[column]
	if !ok || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}

func (c *Catalog) add(e Entry) {
	e.Alias = strings.TrimSpace(e.Alias)
	e.Repo = strings.TrimSpace(e.Repo)
	if e.Alias == "" || e.Repo == "" {
		return
	}
	c.entries[strings.ToLower(e.Alias)] = e
}

// Lookup returns the repo for an alias.
func (c *Catalog) Lookup(alias string) (string, bool) {
	if c == nil {
		return "", false
	}
	e, ok := c.entries[strings.ToLower(strings.TrimSpace(alias))]
	if !ok {
		return "", false
	}
	return e.Repo, true
}

// Resolve returns the repo for an alias, or the input unchanged when it is
// not an alias. A nil catalog resolves nothing.
func (c *Catalog) Resolve(repo string) string {
	if r, ok := c.Lookup(repo); ok {
		return r
	}
	return repo
}

// Len returns the number of aliases.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.entries)
}

// Entries returns all entries sorted by alias.
func (c *Catalog) Entries() []Entry {
	if c == nil {
		return nil
	}
	out := make([]Entry, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i].Alias) < strings.ToLower(out[j].Alias)
	})
	return out
}
