package keyword

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	blevequery "github.com/blevesearch/bleve/v2/search/query"

	"github.com/hyperjump/kanren/internal/models"
)

const deletePageSize = 500

// unitDoc is the indexed form of a TextUnit.
type unitDoc struct {
	VideoID    string  `json:"video_id"`
	Origin     string  `json:"origin"`
	UnitIndex  float64 `json:"unit_index"`
	Text       string  `json:"text"`
	Start      float64 `json:"start"`
	SceneIndex float64 `json:"scene_index"`
}

// BleveIndex implements KeywordIndex using Bleve.
type BleveIndex struct {
	index bleve.Index
}

func newMapping() *mapping.IndexMappingImpl {
	im := bleve.NewIndexMapping()

	docMapping := bleve.NewDocumentMapping()
	textFieldMapping := bleve.NewTextFieldMapping()
	// Standard analyzer (lowercase + tokenize, no stemming) keeps slide terms and acronyms intact.
	textFieldMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt("text", textFieldMapping)
	keywordFieldMapping := bleve.NewKeywordFieldMapping()
	docMapping.AddFieldMappingsAt("video_id", keywordFieldMapping)
	docMapping.AddFieldMappingsAt("origin", keywordFieldMapping)
	numericFieldMapping := bleve.NewNumericFieldMapping()
	docMapping.AddFieldMappingsAt("unit_index", numericFieldMapping)
	docMapping.AddFieldMappingsAt("start", numericFieldMapping)
	docMapping.AddFieldMappingsAt("scene_index", numericFieldMapping)
	im.AddDocumentMapping("unit", docMapping)
	im.DefaultType = "unit"
	im.DefaultMapping = docMapping
	return im
}

// NewBleveIndex creates or opens a Bleve index at path. An empty path creates an in-memory index.
// If you change the index mapping in code, remove the index directory; units are re-indexed on
// the next relationship computation.
func NewBleveIndex(path string) (*BleveIndex, error) {
	if path == "" {
		index, err := bleve.NewMemOnly(newMapping())
		if err != nil {
			return nil, fmt.Errorf("failed to create Bleve index: %w", err)
		}
		return &BleveIndex{index: index}, nil
	}

	if _, err := os.Stat(path); err == nil {
		index, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open Bleve index: %w", openErr)
		}
		return &BleveIndex{index: index}, nil
	}

	index, err := bleve.New(path, newMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &BleveIndex{index: index}, nil
}

func docID(videoID string, origin models.Origin, i int) string {
	return fmt.Sprintf("%s:%s:%d", videoID, origin, i)
}

// IndexUnits replaces the indexed units of videoID in one batch.
func (b *BleveIndex) IndexUnits(ctx context.Context, videoID string, transcript, ocr []models.TextUnit) error {
	if err := b.DeleteVideo(ctx, videoID); err != nil {
		return err
	}
	batch := b.index.NewBatch()
	add := func(units []models.TextUnit) error {
		for i, u := range units {
			doc := unitDoc{
				VideoID:    videoID,
				Origin:     string(u.Origin),
				UnitIndex:  float64(i),
				Text:       u.Text,
				Start:      u.Start,
				SceneIndex: float64(u.Scene()),
			}
			if err := batch.Index(docID(videoID, u.Origin, i), doc); err != nil {
				return fmt.Errorf("index unit %d: %w", i, err)
			}
		}
		return nil
	}
	if err := add(transcript); err != nil {
		return err
	}
	if err := add(ocr); err != nil {
		return err
	}
	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("Bleve batch failed: %w", err)
	}
	return nil
}

func videoQuery(videoID string) *blevequery.TermQuery {
	q := bleve.NewTermQuery(videoID)
	q.SetField("video_id")
	return q
}

// DeleteVideo removes every indexed unit of videoID.
func (b *BleveIndex) DeleteVideo(ctx context.Context, videoID string) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		req := bleve.NewSearchRequest(videoQuery(videoID))
		req.Size = deletePageSize
		res, err := b.index.Search(req)
		if err != nil {
			return fmt.Errorf("Bleve search failed: %w", err)
		}
		if len(res.Hits) == 0 {
			return nil
		}
		batch := b.index.NewBatch()
		for _, hit := range res.Hits {
			batch.Delete(hit.ID)
		}
		if err := b.index.Batch(batch); err != nil {
			return fmt.Errorf("Bleve delete failed: %w", err)
		}
	}
}

// Search runs a match (or fuzzy) query over the text of one video's units.
func (b *BleveIndex) Search(ctx context.Context, videoID, query string, limit int, opts *SearchOptions) ([]*KeywordResult, error) {
	if strings.TrimSpace(query) == "" {
		return []*KeywordResult{}, nil
	}
	if limit <= 0 {
		limit = 10
	}
	var textQuery blevequery.Query
	if opts != nil && opts.FuzzyEnabled {
		fuzziness := opts.Fuzziness
		if fuzziness <= 0 {
			fuzziness = 1
		}
		textQuery = buildFuzzyQuery(query, fuzziness)
	} else {
		mq := bleve.NewMatchQuery(query)
		mq.SetField("text")
		textQuery = mq
	}
	parts := []blevequery.Query{videoQuery(videoID), textQuery}
	if opts != nil && opts.Origin != "" {
		oq := bleve.NewTermQuery(string(opts.Origin))
		oq.SetField("origin")
		parts = append(parts, oq)
	}

	req := bleve.NewSearchRequest(bleve.NewConjunctionQuery(parts...))
	req.Size = limit
	req.Fields = []string{"*"}
	res, err := b.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("Bleve search failed: %w", err)
	}

	out := make([]*KeywordResult, 0, len(res.Hits))
	for _, hit := range res.Hits {
		r := &KeywordResult{ID: hit.ID, VideoID: videoID, Score: hit.Score}
		if v, ok := hit.Fields["origin"].(string); ok {
			r.Origin = models.Origin(v)
		}
		if v, ok := hit.Fields["text"].(string); ok {
			r.Text = v
		}
		if v, ok := hit.Fields["unit_index"].(float64); ok {
			r.Index = int(v)
		}
		if v, ok := hit.Fields["start"].(float64); ok {
			r.Start = v
		}
		if v, ok := hit.Fields["scene_index"].(float64); ok && v >= 0 {
			r.SceneIndex = models.IntPtr(int(v))
		}
		out = append(out, r)
	}
	return out, nil
}

// tokenizeQuery splits query into lowercase terms.
func tokenizeQuery(query string) []string {
	return strings.Fields(strings.ToLower(query))
}

// buildFuzzyQuery creates a disjunction of FuzzyQueries on the text field, one per term.
func buildFuzzyQuery(queryStr string, fuzziness int) blevequery.Query {
	terms := tokenizeQuery(queryStr)
	queries := make([]blevequery.Query, 0, len(terms))
	for _, term := range terms {
		fq := bleve.NewFuzzyQuery(term)
		fq.SetFuzziness(fuzziness)
		fq.SetField("text")
		queries = append(queries, fq)
	}
	if len(queries) == 1 {
		return queries[0]
	}
	return bleve.NewDisjunctionQuery(queries...)
}

// DocCount returns the total number of indexed units.
func (b *BleveIndex) DocCount() (uint64, error) {
	return b.index.DocCount()
}

// Close closes the Bleve index.
func (b *BleveIndex) Close() error {
	return b.index.Close()
}
