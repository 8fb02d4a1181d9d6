package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/shopspring/decimal"

	"ticketbay/internal/config"
	"ticketbay/internal/models"
)

// EventDocument - документ публичного каталога событий
type EventDocument struct {
	ID          string             `json:"id"`
	ProducerID  string             `json:"producer_id"`
	Title       string             `json:"title"`
	Description string             `json:"description"`
	Location    string             `json:"location"`
	Address     string             `json:"address"`
	ImageURL    string             `json:"image_url"`
	StartsAt    time.Time          `json:"starts_at"`
	EndsAt      time.Time          `json:"ends_at"`
	Status      models.EventStatus `json:"status"`
	MinPrice    *decimal.Decimal   `json:"min_price,omitempty"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

func NewEventDocument(event *models.Event) EventDocument {
	doc := EventDocument{
		ID:          event.ID,
		ProducerID:  event.ProducerID,
		Title:       event.Title,
		Description: event.Description,
		Location:    event.Location,
		Address:     event.Address,
		ImageURL:    event.ImageURL,
		StartsAt:    event.StartsAt,
		EndsAt:      event.EndsAt,
		Status:      event.Status,
		UpdatedAt:   event.UpdatedAt,
	}
	for _, b := range event.Batches {
		if !b.IsActive {
			continue
		}
		if doc.MinPrice == nil || b.Price.LessThan(*doc.MinPrice) {
			price := b.Price
			doc.MinPrice = &price
		}
	}
	return doc
}

func (d EventDocument) Event() models.Event {
	return models.Event{
		ID:          d.ID,
		ProducerID:  d.ProducerID,
		Title:       d.Title,
		Description: d.Description,
		Location:    d.Location,
		Address:     d.Address,
		ImageURL:    d.ImageURL,
		StartsAt:    d.StartsAt,
		EndsAt:      d.EndsAt,
		Status:      d.Status,
		UpdatedAt:   d.UpdatedAt,
	}
}

// ElasticsearchClient представляет клиент каталога событий
type ElasticsearchClient struct {
	client *elasticsearch.Client
	config config.ElasticsearchConfig
}

// NewElasticsearchClient создает клиент и индекс каталога при необходимости
func NewElasticsearchClient(ctx context.Context, cfg config.ElasticsearchConfig) (*ElasticsearchClient, error) {
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses:     []string{cfg.URL},
		Username:      cfg.Username,
		Password:      cfg.Password,
		RetryOnStatus: []int{502, 503, 504, 429},
		MaxRetries:    cfg.MaxRetries,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Elasticsearch client: %w", err)
	}

	client := &ElasticsearchClient{
		client: es,
		config: cfg,
	}

	if err := client.ensureIndex(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure index exists: %w", err)
	}

	return client, nil
}

var catalogMapping = map[string]any{
	"settings": map[string]any{
		"number_of_shards":   1,
		"number_of_replicas": 0,
		"analysis": map[string]any{
			"analyzer": map[string]any{
				"catalog_analyzer": map[string]any{
					"type":      "custom",
					"tokenizer": "standard",
					"filter":    []string{"lowercase", "asciifolding", "portuguese_stop", "portuguese_stemmer"},
				},
			},
			"filter": map[string]any{
				"portuguese_stop": map[string]any{
					"type":      "stop",
					"stopwords": "_brazilian_",
				},
				"portuguese_stemmer": map[string]any{
					"type":     "stemmer",
					"language": "brazilian",
				},
			},
		},
	},
	"mappings": map[string]any{
		"properties": map[string]any{
			"id":          map[string]any{"type": "keyword"},
			"producer_id": map[string]any{"type": "keyword"},
			"title": map[string]any{
				"type":     "text",
				"analyzer": "catalog_analyzer",
				"fields": map[string]any{
					"keyword": map[string]any{"type": "keyword", "ignore_above": 256},
				},
			},
			"description": map[string]any{"type": "text", "analyzer": "catalog_analyzer"},
			"location":    map[string]any{"type": "text", "analyzer": "catalog_analyzer"},
			"address":     map[string]any{"type": "text"},
			"image_url":   map[string]any{"type": "keyword", "index": false},
			"starts_at":   map[string]any{"type": "date"},
			"ends_at":     map[string]any{"type": "date"},
			"status":      map[string]any{"type": "keyword"},
			"min_price":   map[string]any{"type": "scaled_float", "scaling_factor": 100},
			"updated_at":  map[string]any{"type": "date"},
		},
	},
}

// ensureIndex создает индекс если он не существует
func (c *ElasticsearchClient) ensureIndex(ctx context.Context) error {
	res, err := esapi.IndicesExistsRequest{Index: []string{c.config.Index}}.Do(ctx, c.client)
	if err != nil {
		return fmt.Errorf("failed to check index existence: %w", err)
	}
	res.Body.Close()

	if res.StatusCode == 200 {
		slog.Info("Elasticsearch index already exists", "index", c.config.Index)
		return nil
	}

	mappingJSON, err := json.Marshal(catalogMapping)
	if err != nil {
		return fmt.Errorf("failed to marshal mapping: %w", err)
	}

	createRes, err := esapi.IndicesCreateRequest{
		Index: c.config.Index,
		Body:  bytes.NewReader(mappingJSON),
	}.Do(ctx, c.client)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	defer createRes.Body.Close()

	if createRes.IsError() {
		return fmt.Errorf("failed to create index: %s", createRes.String())
	}

	slog.Info("Created Elasticsearch index", "index", c.config.Index)
	return nil
}

// Search ищет опубликованные будущие события
func (c *ElasticsearchClient) Search(ctx context.Context, query string, page, pageSize int) ([]models.Event, error) {
	if pageSize <= 0 {
		pageSize = 20
	}
	from := 0
	if page > 0 {
		from = (page - 1) * pageSize
	}

	searchRequest := map[string]any{
		"query": buildSearchQuery(query, time.Now()),
		"sort":  buildSortQuery(query),
		"from":  from,
		"size":  pageSize,
	}

	searchJSON, err := json.Marshal(searchRequest)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal search query: %w", err)
	}

	res, err := esapi.SearchRequest{
		Index: []string{c.config.Index},
		Body:  bytes.NewReader(searchJSON),
	}.Do(ctx, c.client)
	if err != nil {
		return nil, fmt.Errorf("failed to execute search: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("search error: %s", res.String())
	}

	var response struct {
		Hits struct {
			Hits []struct {
				Source EventDocument `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}

	if err := json.NewDecoder(res.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	events := make([]models.Event, len(response.Hits.Hits))
	for i, hit := range response.Hits.Hits {
		events[i] = hit.Source.Event()
	}

	return events, nil
}

// buildSearchQuery строит поисковый запрос
func buildSearchQuery(query string, now time.Time) map[string]any {
	filters := []map[string]any{
		{"term": map[string]any{"status": models.EventStatusPublished}},
		{"range": map[string]any{"starts_at": map[string]any{"gt": now.UTC().Format(time.RFC3339)}}},
	}

	boolQuery := map[string]any{"filter": filters}
	if query != "" {
		boolQuery["must"] = []map[string]any{
			{
				"multi_match": map[string]any{
					"query":     query,
					"fields":    []string{"title^3", "location^2", "description"},
					"fuzziness": "AUTO",
				},
			},
		}
	}

	return map[string]any{"bool": boolQuery}
}

// buildSortQuery строит сортировку
func buildSortQuery(query string) []map[string]any {
	if query != "" {
		return []map[string]any{
			{"_score": map[string]any{"order": "desc"}},
			{"starts_at": map[string]any{"order": "asc"}},
		}
	}
	return []map[string]any{
		{"starts_at": map[string]any{"order": "asc"}},
		{"id": map[string]any{"order": "asc"}},
	}
}

// IndexEvent индексирует событие
func (c *ElasticsearchClient) IndexEvent(ctx context.Context, event *models.Event) error {
	docJSON, err := json.Marshal(NewEventDocument(event))
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	res, err := esapi.IndexRequest{
		Index:      c.config.Index,
		DocumentID: event.ID,
		Body:       bytes.NewReader(docJSON),
		Refresh:    "wait_for",
	}.Do(ctx, c.client)
	if err != nil {
		return fmt.Errorf("failed to index event: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("indexing error: %s", res.String())
	}

	return nil
}

// DeleteEvent удаляет событие из каталога
func (c *ElasticsearchClient) DeleteEvent(ctx context.Context, id string) error {
	res, err := esapi.DeleteRequest{
		Index:      c.config.Index,
		DocumentID: id,
		Refresh:    "wait_for",
	}.Do(ctx, c.client)
	if err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() && res.StatusCode != 404 {
		return fmt.Errorf("delete error: %s", res.String())
	}

	return nil
}

// HealthCheck проверяет состояние Elasticsearch
func (c *ElasticsearchClient) HealthCheck(ctx context.Context) error {
	res, err := esapi.ClusterHealthRequest{
		WaitForStatus: "yellow",
		Timeout:       10 * time.Second,
	}.Do(ctx, c.client)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("health check error: %s", res.String())
	}

	return nil
}
