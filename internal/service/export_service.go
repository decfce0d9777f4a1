package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"qa-smart-go/pkg/log"
	"qa-smart-go/pkg/storage"
)

// ExportURLExpiry 是导出文件下载链接的有效期。
const ExportURLExpiry = time.Hour

// ExportResult 是一次分类树导出的结果。
type ExportResult struct {
	ObjectName string    `json:"objectName"`
	URL        string    `json:"url"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

// ExportService 将序列化后的分类树快照写入对象存储。
type ExportService interface {
	ExportTree(ctx context.Context) (*ExportResult, error)
}

type exportService struct {
	categories CategoryService
	store      storage.ObjectStore
	now        func() time.Time
}

// NewExportService 创建一个新的 ExportService 实例。
func NewExportService(categories CategoryService, store storage.ObjectStore) ExportService {
	return &exportService{categories: categories, store: store, now: time.Now}
}

// ExportTree 上传当前分类树的 JSON，并返回一小时内有效的下载链接。
func (s *exportService) ExportTree(ctx context.Context) (*ExportResult, error) {
	root, err := s.categories.GenerateTree(ctx)
	if err != nil {
		return nil, err
	}

	var data []byte
	if root == nil {
		data = []byte("{}")
	} else if data, err = json.Marshal(root); err != nil {
		return nil, fmt.Errorf("failed to marshal category tree: %w", err)
	}

	now := s.now()
	objectName := fmt.Sprintf("exports/category-tree-%d.json", now.Unix())
	if err := s.store.PutObject(ctx, objectName, data, "application/json"); err != nil {
		log.Errorf("[ExportService] 上传分类树失败, object: %s, error: %v", objectName, err)
		return nil, fmt.Errorf("failed to upload category tree: %w", err)
	}

	url, err := s.store.PresignedURL(ctx, objectName, ExportURLExpiry)
	if err != nil {
		return nil, fmt.Errorf("failed to presign export url: %w", err)
	}
	log.Infof("[ExportService] 分类树已导出到 %s", objectName)
	return &ExportResult{ObjectName: objectName, URL: url, ExpiresAt: now.Add(ExportURLExpiry)}, nil
}
