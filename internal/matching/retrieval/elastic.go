package retrieval

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"pathfinder-workers/internal/models"
	"pathfinder-workers/internal/reference"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

// ElasticKeywordSearcher runs a match query over the chunk index. Scores are divided by
// the best score of the page so they share the [0,1] range of vector similarity.
type ElasticKeywordSearcher struct {
	client *elasticsearch.Client
	index  string
}

func NewElasticKeywordSearcher(client *elasticsearch.Client, index string) *ElasticKeywordSearcher {
	if index == "" {
		index = "corpus_chunks"
	}
	return &ElasticKeywordSearcher{client: client, index: index}
}

func (*ElasticKeywordSearcher) Name() string { return "elasticsearch" }

type esChunk struct {
	ID            string   `json:"id"`
	EntityType    string   `json:"entity_type"`
	EntityID      string   `json:"entity_id"`
	Text          string   `json:"text"`
	DurationYears *float64 `json:"duration_years"`
	DegreeType    string   `json:"degree_type"`
	Location      string   `json:"location"`
	InstitutionID string   `json:"institution_id"`
	SourceURL     string   `json:"source_url"`
}

type esSearchResponse struct {
	Hits struct {
		MaxScore float64 `json:"max_score"`
		Hits     []struct {
			Score  float64 `json:"_score"`
			Source esChunk `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

func buildKeywordQuery(query string, k int, f Filters) map[string]interface{} {
	var filter []interface{}
	if f.EntityType != "" {
		filter = append(filter, anyTermFold("entity_type", []string{string(f.EntityType)}))
	}
	if f.MaxDuration != nil {
		filter = append(filter, map[string]interface{}{
			"range": map[string]interface{}{"duration_years": map[string]interface{}{"lte": *f.MaxDuration}},
		})
	}
	if len(f.Locations) > 0 {
		filter = append(filter, anyTermFold("location", f.Locations))
	}
	if len(f.DegreeTypes) > 0 {
		filter = append(filter, anyTermFold("degree_type", f.DegreeTypes))
	}

	boolQuery := map[string]interface{}{
		"must": []interface{}{
			map[string]interface{}{"match": map[string]interface{}{"text": query}},
		},
	}
	if len(filter) > 0 {
		boolQuery["filter"] = filter
	}

	return map[string]interface{}{
		"size":  k,
		"query": map[string]interface{}{"bool": boolQuery},
	}
}

// anyTermFold matches keyword field values ignoring case, the way Filters.Match compares them.
// A terms query cannot do that, so each value becomes a case-insensitive term clause.
func anyTermFold(field string, values []string) map[string]interface{} {
	should := make([]interface{}, 0, len(values))
	for _, v := range values {
		should = append(should, map[string]interface{}{
			"term": map[string]interface{}{
				field: map[string]interface{}{"value": v, "case_insensitive": true},
			},
		})
	}
	return map[string]interface{}{
		"bool": map[string]interface{}{
			"should":               should,
			"minimum_should_match": 1,
		},
	}
}

func (s *ElasticKeywordSearcher) Search(ctx context.Context, _ *reference.Snapshot, query string, k int, f Filters) ([]Hit, error) {
	body, err := json.Marshal(buildKeywordQuery(query, k, f))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal query: %w", err)
	}

	req := esapi.SearchRequest{
		Index: []string{s.index},
		Body:  strings.NewReader(string(body)),
	}

	res, err := req.Do(ctx, s.client)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch query failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("elasticsearch error: %s", res.String())
	}

	var parsed esSearchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	maxScore := parsed.Hits.MaxScore
	hits := make([]Hit, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		et, ok := models.ParseEntityType(h.Source.EntityType)
		if !ok {
			continue
		}
		sim := 0.0
		if maxScore > 0 {
			sim = h.Score / maxScore
		}
		hits = append(hits, Hit{
			Chunk: models.Chunk{
				ID:         h.Source.ID,
				EntityType: et,
				EntityID:   h.Source.EntityID,
				Text:       h.Source.Text,
				Metadata: models.ChunkMetadata{
					DurationYears: h.Source.DurationYears,
					DegreeType:    h.Source.DegreeType,
					Location:      h.Source.Location,
					InstitutionID: h.Source.InstitutionID,
					SourceURL:     h.Source.SourceURL,
				},
			},
			Similarity: sim,
		})
	}
	return hits, nil
}
