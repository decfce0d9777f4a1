// Package service 提供了搜索相关的业务逻辑。
package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"

	"qa-smart-go/internal/model"
	"qa-smart-go/pkg/es"
	"qa-smart-go/pkg/log"
)

const (
	defaultSearchSize = 10
	maxSearchSize     = 50
)

// SearchService 接口定义了问题的索引与全文搜索操作。
type SearchService interface {
	IndexQuestion(ctx context.Context, q *model.Question) error
	SearchQuestions(ctx context.Context, query, category string, size int) ([]model.QuestionHit, error)
}

type searchService struct {
	esClient  *elasticsearch.Client
	indexName string
	filter    FilterService
}

// NewSearchService 创建一个新的 SearchService 实例。
func NewSearchService(esClient *elasticsearch.Client, indexName string, filter FilterService) SearchService {
	return &searchService{
		esClient:  esClient,
		indexName: indexName,
		filter:    filter,
	}
}

// IndexQuestion 将问题写入搜索索引。
func (s *searchService) IndexQuestion(ctx context.Context, q *model.Question) error {
	doc := model.QuestionDocument{
		QuestionID: q.ID,
		Title:      q.Title,
		Body:       q.Body,
		Tags:       q.TagNames(),
		AuthorID:   q.AuthorID,
		UpdatedAt:  q.LastActivityAt,
	}
	return es.IndexQuestion(ctx, s.esClient, s.indexName, doc)
}

// SearchQuestions 在标题与正文上做全文搜索。category 非空时只返回带有该分类子树中标签的问题。
func (s *searchService) SearchQuestions(ctx context.Context, query, category string, size int) ([]model.QuestionHit, error) {
	if size < 1 {
		size = defaultSearchSize
	}
	if size > maxSearchSize {
		size = maxSearchSize
	}

	var tagNames []string
	if category != "" {
		names, err := s.filter.ResolveTagNames(ctx, category)
		if err != nil {
			return nil, err
		}
		// 分类下没有任何标签时不可能有命中
		if len(names) == 0 {
			return []model.QuestionHit{}, nil
		}
		tagNames = names
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(buildQuestionQuery(query, tagNames, size)); err != nil {
		log.Errorf("[SearchService] 序列化 Elasticsearch 查询失败: %v", err)
		return nil, fmt.Errorf("failed to encode es query: %w", err)
	}

	res, err := s.esClient.Search(
		s.esClient.Search.WithContext(ctx),
		s.esClient.Search.WithIndex(s.indexName),
		s.esClient.Search.WithBody(&buf),
		s.esClient.Search.WithTrackTotalHits(true),
	)
	if err != nil {
		log.Errorf("[SearchService] 向 Elasticsearch 发送搜索请求失败: %v", err)
		return nil, fmt.Errorf("elasticsearch search failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		bodyBytes, _ := io.ReadAll(res.Body)
		log.Errorf("[SearchService] Elasticsearch 返回错误, status: %s, body: %s", res.Status(), string(bodyBytes))
		return nil, fmt.Errorf("elasticsearch returned an error: %s", res.Status())
	}

	hits, err := decodeQuestionHits(res.Body)
	if err != nil {
		log.Errorf("[SearchService] 解析 Elasticsearch 响应失败: %v", err)
		return nil, err
	}
	log.Infof("[SearchService] 搜索完成, query: '%s', category: '%s', 命中 %d 条", query, category, len(hits))
	return hits, nil
}

// buildQuestionQuery 构建 bool 查询：must 为标题/正文的 multi_match，filter 为标签 terms。
func buildQuestionQuery(query string, tagNames []string, size int) map[string]interface{} {
	boolQuery := map[string]interface{}{}
	if q := strings.TrimSpace(query); q != "" {
		boolQuery["must"] = map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  q,
				"fields": []string{"title^2", "body"},
			},
		}
	} else {
		boolQuery["must"] = map[string]interface{}{"match_all": map[string]interface{}{}}
	}
	if len(tagNames) > 0 {
		boolQuery["filter"] = []map[string]interface{}{
			{"terms": map[string]interface{}{"tags": tagNames}},
		}
	}
	return map[string]interface{}{
		"query":   map[string]interface{}{"bool": boolQuery},
		"size":    size,
		"_source": []string{"question_id", "title", "tags"},
	}
}

func decodeQuestionHits(r io.Reader) ([]model.QuestionHit, error) {
	var esResponse struct {
		Hits struct {
			Hits []struct {
				Source model.QuestionDocument `json:"_source"`
				Score  float64                `json:"_score"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(r).Decode(&esResponse); err != nil {
		return nil, fmt.Errorf("failed to decode es response: %w", err)
	}

	results := make([]model.QuestionHit, 0, len(esResponse.Hits.Hits))
	for _, hit := range esResponse.Hits.Hits {
		tags := make([]string, 0, len(hit.Source.Tags))
		for _, t := range hit.Source.Tags {
			tags = append(tags, html.EscapeString(t))
		}
		results = append(results, model.QuestionHit{
			QuestionID: hit.Source.QuestionID,
			Title:      html.EscapeString(hit.Source.Title),
			Tags:       tags,
			Score:      hit.Score,
		})
	}
	return results, nil
}
