package service

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"
	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/mmo7amed2010/swenam-sis-sub001/internal/config"
	"github.com/mmo7amed2010/swenam-sis-sub001/pkg/logger"
	"go.uber.org/zap"
)

// StorageProvider 定义通用存储接口
type StorageProvider interface {
	Upload(ctx context.Context, filename string, reader io.Reader, size int64, contentType string) (string, error)
	Delete(ctx context.Context, filename string) error
	GetURL(filename string) string
}

// LocalStorageProvider 本地存储实现
type LocalStorageProvider struct {
	Config *config.StorageConfig
}

func (p *LocalStorageProvider) Upload(ctx context.Context, filename string, reader io.Reader, size int64, contentType string) (string, error) {
	dst := filepath.Join(p.Config.LocalPath, filename)
	dir := filepath.Dir(dst)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", err
		}
	}

	out, err := os.Create(dst)
	if err != nil {
		return "", err
	}
	defer out.Close()

	_, err = io.Copy(out, reader)
	if err != nil {
		return "", err
	}

	return p.GetURL(filename), nil
}

func (p *LocalStorageProvider) Delete(ctx context.Context, filename string) error {
	dst := filepath.Join(p.Config.LocalPath, filename)
	return os.Remove(dst)
}

func (p *LocalStorageProvider) GetURL(filename string) string {
	return "/uploads/" + filename
}

// MinioStorageProvider MinIO存储实现
type MinioStorageProvider struct {
	Config *config.StorageConfig
	Client *minio.Client
}

func NewMinioStorageProvider(cfg *config.StorageConfig) (*MinioStorageProvider, error) {
	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessID, cfg.MinioSecret, ""),
		Secure: false,
	})
	if err != nil {
		return nil, err
	}
	return &MinioStorageProvider{Config: cfg, Client: client}, nil
}

func (p *MinioStorageProvider) Upload(ctx context.Context, filename string, reader io.Reader, size int64, contentType string) (string, error) {
	_, err := p.Client.PutObject(ctx, p.Config.MinioBucket, filename, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", err
	}
	return p.GetURL(filename), nil
}

func (p *MinioStorageProvider) Delete(ctx context.Context, filename string) error {
	return p.Client.RemoveObject(ctx, p.Config.MinioBucket, filename, minio.RemoveObjectOptions{})
}

func (p *MinioStorageProvider) GetURL(filename string) string {
	return "/" + p.Config.MinioBucket + "/" + filename
}

// OSSStorageProvider 阿里云OSS存储实现
type OSSStorageProvider struct {
	Config *config.StorageConfig
	Client *oss.Client
}

func NewOSSStorageProvider(cfg *config.StorageConfig) (*OSSStorageProvider, error) {
	client, err := oss.New(cfg.OSSEndpoint, cfg.OSSAccessKey, cfg.OSSSecretKey)
	if err != nil {
		return nil, err
	}
	return &OSSStorageProvider{Config: cfg, Client: client}, nil
}

func (p *OSSStorageProvider) Upload(ctx context.Context, filename string, reader io.Reader, size int64, contentType string) (string, error) {
	bucket, err := p.Client.Bucket(p.Config.OSSBucket)
	if err != nil {
		return "", err
	}

	err = bucket.PutObject(filename, reader, oss.ContentType(contentType))
	if err != nil {
		return "", err
	}
	return p.GetURL(filename), nil
}

func (p *OSSStorageProvider) Delete(ctx context.Context, filename string) error {
	bucket, err := p.Client.Bucket(p.Config.OSSBucket)
	if err != nil {
		return err
	}
	return bucket.DeleteObject(filename)
}

func (p *OSSStorageProvider) GetURL(filename string) string {
	return fmt.Sprintf("https://%s.%s/%s", p.Config.OSSBucket, p.Config.OSSEndpoint, filename)
}

// StorageService 作业文件提交的存储服务，返回的 URL 写入 Submission.FileURLs
type StorageService struct {
	Provider StorageProvider
	MaxSize  int64
}

// 单个提交文件上限 20MB
const maxSubmissionFileSize = 20 << 20

// 作业文件提交允许的扩展名
var allowedSubmissionExtensions = []string{".pdf", ".doc", ".docx", ".txt", ".zip", ".png", ".jpg", ".jpeg"}

func NewStorageService(cfg *config.Config) *StorageService {
	var provider StorageProvider
	switch cfg.Storage.Type {
	case config.StorageMinio:
		p, err := NewMinioStorageProvider(&cfg.Storage)
		if err != nil {
			logger.Log.Error("minio init failed, falling back to local storage", zap.Error(err))
		} else {
			provider = p
		}
	case config.StorageOSS:
		p, err := NewOSSStorageProvider(&cfg.Storage)
		if err != nil {
			logger.Log.Error("oss init failed, falling back to local storage", zap.Error(err))
		} else {
			provider = p
		}
	}

	if provider == nil {
		provider = &LocalStorageProvider{Config: &cfg.Storage}
	}

	return &StorageService{Provider: provider, MaxSize: maxSubmissionFileSize}
}

// SubmissionObjectKey 按 作业/学习者/uuid 组织对象路径，保留原扩展名
func SubmissionObjectKey(assignmentID, userID uint, filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	return fmt.Sprintf("submissions/%d/%d/%s%s", assignmentID, userID, uuid.NewString(), ext)
}

// UploadSubmissionFile 校验扩展名与大小后上传
func (s *StorageService) UploadSubmissionFile(ctx context.Context, assignmentID, userID uint, fh *multipart.FileHeader) (string, error) {
	ext := strings.ToLower(filepath.Ext(fh.Filename))
	if !slices.Contains(allowedSubmissionExtensions, ext) {
		return "", fieldError("file", "file type "+ext+" is not allowed")
	}
	if fh.Size > s.MaxSize {
		return "", fieldError("file", "file is too large")
	}

	f, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer f.Close()

	contentType := fh.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return s.Provider.Upload(ctx, SubmissionObjectKey(assignmentID, userID, fh.Filename), f, fh.Size, contentType)
}
