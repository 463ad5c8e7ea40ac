// Package catalog serves the read-only opportunity listing used for yield
// discovery and APY alert evaluation.
package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
)

// Opportunity is one yield-bearing product.
type Opportunity struct {
	ID     string          `json:"id"`
	Title  string          `json:"title"`
	Chain  string          `json:"chain"`
	Asset  string          `json:"asset"`
	APY    decimal.Decimal `json:"apy"`
	Risk   string          `json:"risk"`
	Lockup string          `json:"lockup"`
	Action Action          `json:"action"`
}

// Action carries the metadata needed to act on an opportunity.
type Action struct {
	Kind string `json:"kind"`
	URL  string `json:"url"`
}

type document struct {
	Items []Opportunity `json:"items"`
}

// Catalog reads opportunities from a JSON document. The file is re-read on
// every access so catalog edits are picked up without a restart; there is no
// caching by contract.
type Catalog struct {
	path string
}

// New points a Catalog at a document path.
func New(path string) *Catalog {
	return &Catalog{path: path}
}

// List returns every opportunity in document order.
func (c *Catalog) List() ([]Opportunity, error) {
	raw, err := os.ReadFile(c.path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}

	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	return doc.Items, nil
}

// ListByChain filters opportunities for one chain.
func (c *Catalog) ListByChain(chain string) ([]Opportunity, error) {
	items, err := c.List()
	if err != nil {
		return nil, err
	}

	filtered := make([]Opportunity, 0, len(items))
	for _, item := range items {
		if strings.EqualFold(item.Chain, chain) {
			filtered = append(filtered, item)
		}
	}
	return filtered, nil
}

// Get returns the opportunity with the given id, or false.
func (c *Catalog) Get(id string) (Opportunity, bool, error) {
	items, err := c.List()
	if err != nil {
		return Opportunity{}, false, err
	}
	for _, item := range items {
		if item.ID == id {
			return item, true, nil
		}
	}
	return Opportunity{}, false, nil
}

// Lookup returns the APY entry for an (asset, chain) pair, or false on a
// catalog miss.
func (c *Catalog) Lookup(asset, chain string) (Opportunity, bool, error) {
	items, err := c.List()
	if err != nil {
		return Opportunity{}, false, err
	}
	for _, item := range items {
		if strings.EqualFold(item.Asset, asset) && strings.EqualFold(item.Chain, chain) {
			return item, true, nil
		}
	}
	return Opportunity{}, false, nil
}
