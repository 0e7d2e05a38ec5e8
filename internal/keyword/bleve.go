package keyword

import (
	"context"
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	blevequery "github.com/blevesearch/bleve/v2/search/query"
	"github.com/hyperjump/egaku/internal/models"
)

// DefaultFuzziness is the edit distance tolerated for misspelled name terms.
const DefaultFuzziness = 1

type catalogEntry struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// CatalogIndex implements Catalog with an in-memory Bleve index.
type CatalogIndex struct {
	index     bleve.Index
	fuzziness int
}

// NewCatalogIndex creates an empty in-memory catalog.
func NewCatalogIndex() (*CatalogIndex, error) {
	im := bleve.NewIndexMapping()

	docMapping := bleve.NewDocumentMapping()
	// Standard analyzer (lowercase + tokenize, no stemming) keeps prefix queries predictable.
	textFieldMapping := bleve.NewTextFieldMapping()
	textFieldMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt("name", textFieldMapping)
	docMapping.AddFieldMappingsAt("description", textFieldMapping)
	im.AddDocumentMapping("drawing", docMapping)
	im.DefaultType = "drawing"
	im.DefaultMapping = docMapping

	index, err := bleve.NewMemOnly(im)
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &CatalogIndex{index: index, fuzziness: DefaultFuzziness}, nil
}

// Index adds or replaces the catalog entry for name.
func (c *CatalogIndex) Index(ctx context.Context, name, description string) error {
	return c.index.Index(name, catalogEntry{Name: name, Description: description})
}

// IndexDrawings indexes drawings in one batch.
func (c *CatalogIndex) IndexDrawings(ctx context.Context, drawings []*models.Drawing) error {
	batch := c.index.NewBatch()
	for _, d := range drawings {
		if err := batch.Index(d.Name, catalogEntry{Name: d.Name, Description: d.Description}); err != nil {
			return fmt.Errorf("failed to index %q: %w", d.Name, err)
		}
	}
	return c.index.Batch(batch)
}

// Search matches query terms against names and descriptions. Each term also matches name
// prefixes and near misses within the fuzziness distance. Hits are ordered by score, then name.
func (c *CatalogIndex) Search(ctx context.Context, query string, limit int) ([]*CatalogResult, error) {
	if limit <= 0 {
		return nil, nil
	}
	terms := strings.Fields(strings.ToLower(query))

	var req *bleve.SearchRequest
	if len(terms) == 0 {
		req = bleve.NewSearchRequest(bleve.NewMatchAllQuery())
		req.SortBy([]string{"_id"})
	} else {
		req = bleve.NewSearchRequest(c.buildQuery(terms))
		req.SortBy([]string{"-_score", "_id"})
	}
	req.Size = limit

	results, err := c.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("Bleve search failed: %w", err)
	}
	out := make([]*CatalogResult, len(results.Hits))
	for i, hit := range results.Hits {
		out[i] = &CatalogResult{Name: hit.ID, Score: hit.Score}
	}
	return out, nil
}

// buildQuery requires every term to hit somewhere, and lets each hit come from an exact
// match, a name prefix, or a fuzzy name match.
func (c *CatalogIndex) buildQuery(terms []string) blevequery.Query {
	perTerm := make([]blevequery.Query, 0, len(terms))
	for _, term := range terms {
		mq := bleve.NewMatchQuery(term)

		pq := bleve.NewPrefixQuery(term)
		pq.SetField("name")

		fq := bleve.NewFuzzyQuery(term)
		fq.SetField("name")
		fq.SetFuzziness(c.fuzziness)

		perTerm = append(perTerm, bleve.NewDisjunctionQuery(mq, pq, fq))
	}
	if len(perTerm) == 1 {
		return perTerm[0]
	}
	return bleve.NewConjunctionQuery(perTerm...)
}

// Delete removes the catalog entry for name.
func (c *CatalogIndex) Delete(ctx context.Context, name string) error {
	return c.index.Delete(name)
}

// DocCount returns the number of catalog entries.
func (c *CatalogIndex) DocCount() (uint64, error) {
	return c.index.DocCount()
}

// Close releases the index.
func (c *CatalogIndex) Close() error {
	return c.index.Close()
}
