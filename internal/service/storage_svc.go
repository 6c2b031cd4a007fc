package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	gcs "cloud.google.com/go/storage"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// ==================== 接口定义 ====================

// StorageProvider 对象存储提供者
type StorageProvider interface {
	// Upload 上传文件，返回公开访问URL
	Upload(ctx context.Context, key string, data []byte, contentType string) (url string, err error)

	// Delete 按公开URL删除文件
	Delete(ctx context.Context, url string) error
}

var (
	ErrFileTooLarge    = errors.New("storage: file exceeds size limit")
	ErrUnsupportedType = errors.New("storage: unsupported image type")
	ErrEmptyFile       = errors.New("storage: empty file")
	ErrStorage         = errors.New("storage: remote operation failed")
	// ErrForeignURL URL 不属于当前存储（历史数据或更换过 CDN/提供者）
	ErrForeignURL = errors.New("storage: url not owned by this store")
)

// MaxImageBytes 单张图片大小上限
const MaxImageBytes = 5 << 20

var allowedImageTypes = []string{"image/jpeg", "image/png", "image/webp"}

// ==================== 配置 ====================

type StorageConfig struct {
	Provider  string // "s3" | "s3compat" | "gcs" | "local"
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
	Endpoint  string // s3compat 自定义端点；local 为访问前缀
	CDNDomain string // CDN域名 (可选)
	BasePath  string // 基础路径前缀；local 为落盘目录
}

// ==================== 工厂方法 ====================

func NewStorageProvider(ctx context.Context, cfg StorageConfig) (StorageProvider, error) {
	switch cfg.Provider {
	case "s3":
		return NewS3Storage(ctx, cfg, false)
	case "s3compat":
		return NewS3Storage(ctx, cfg, true)
	case "gcs":
		return NewGCSStorage(ctx, cfg)
	case "local":
		return NewLocalStorage(cfg)
	default:
		return nil, fmt.Errorf("不支持的存储提供者: %s", cfg.Provider)
	}
}

// ==================== ImageStorage ====================

// ImageStorage 商品图片存储：上传前做大小与类型检查
type ImageStorage struct {
	provider StorageProvider
	basePath string
}

func NewImageStorage(provider StorageProvider, basePath string) *ImageStorage {
	return &ImageStorage{provider: provider, basePath: strings.Trim(basePath, "/")}
}

// ImageCheck 图片检查结果
type ImageCheck struct {
	ContentType string
	Extension   string
}

// CheckImage 本地检查，不产生任何网络调用
func CheckImage(data []byte) (ImageCheck, error) {
	if len(data) == 0 {
		return ImageCheck{}, ErrEmptyFile
	}
	if len(data) > MaxImageBytes {
		return ImageCheck{}, ErrFileTooLarge
	}

	mt := mimetype.Detect(data)
	for _, allowed := range allowedImageTypes {
		if mt.Is(allowed) {
			return ImageCheck{ContentType: allowed, Extension: mt.Extension()}, nil
		}
	}
	return ImageCheck{}, fmt.Errorf("%w: %s", ErrUnsupportedType, mt.String())
}

// Upload 校验后上传，key 形如 listings/{owner}/2006/01/02/{uuid}.jpg
func (s *ImageStorage) Upload(ctx context.Context, ownerID int64, data []byte) (string, error) {
	check, err := CheckImage(data)
	if err != nil {
		return "", err
	}

	key := s.generateKey(ownerID, check.Extension)
	url, err := s.provider.Upload(ctx, key, data, check.ContentType)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return url, nil
}

// Delete 删除图片；URL 不属于当前存储时返回 ErrForeignURL
func (s *ImageStorage) Delete(ctx context.Context, url string) error {
	if err := s.provider.Delete(ctx, url); err != nil {
		if errors.Is(err, ErrForeignURL) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return nil
}

func (s *ImageStorage) generateKey(ownerID int64, ext string) string {
	if ext == "" {
		ext = ".jpg"
	}
	newFilename := uuid.New().String() + ext
	datePath := time.Now().Format("2006/01/02")

	key := fmt.Sprintf("listings/%d/%s/%s", ownerID, datePath, newFilename)
	if s.basePath != "" {
		return s.basePath + "/" + key
	}
	return key
}

// ==================== S3 实现 ====================

// S3Storage AWS S3 及兼容协议（MinIO、COS、R2 等）
type S3Storage struct {
	client    *s3.Client
	bucket    string
	region    string
	endpoint  string
	pathStyle bool
	cdnDomain string
}

func NewS3Storage(ctx context.Context, cfg StorageConfig, compat bool) (*S3Storage, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("加载AWS配置失败: %w", err)
	}

	endpoint := strings.TrimRight(cfg.Endpoint, "/")
	if compat && endpoint == "" {
		return nil, fmt.Errorf("s3compat 需要配置 endpoint")
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if compat {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Storage{
		client:    client,
		bucket:    cfg.Bucket,
		region:    cfg.Region,
		endpoint:  endpoint,
		pathStyle: compat,
		cdnDomain: strings.TrimRight(cfg.CDNDomain, "/"),
	}, nil
}

func (s *S3Storage) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("上传S3失败: %w", err)
	}
	return s.publicURL(key), nil
}

func (s *S3Storage) Delete(ctx context.Context, url string) error {
	key := s.extractKey(url)
	if key == "" {
		return fmt.Errorf("%w: %s", ErrForeignURL, url)
	}

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	return err
}

func (s *S3Storage) urlPrefix() string {
	switch {
	case s.cdnDomain != "":
		return withScheme(s.cdnDomain) + "/"
	case s.pathStyle:
		return fmt.Sprintf("%s/%s/", s.endpoint, s.bucket)
	default:
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/", s.bucket, s.region)
	}
}

func (s *S3Storage) publicURL(key string) string {
	return s.urlPrefix() + key
}

func (s *S3Storage) extractKey(url string) string {
	return trimKnownPrefix(url, s.urlPrefix())
}

// ==================== GCS 实现 ====================

type GCSStorage struct {
	client    *gcs.Client
	bucket    string
	cdnDomain string
}

// NewGCSStorage 使用默认凭据（GOOGLE_APPLICATION_CREDENTIALS / 元数据服务）
func NewGCSStorage(ctx context.Context, cfg StorageConfig) (*GCSStorage, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("gcs 需要配置 bucket")
	}
	client, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("创建GCS客户端失败: %w", err)
	}
	return &GCSStorage{
		client:    client,
		bucket:    cfg.Bucket,
		cdnDomain: strings.TrimRight(cfg.CDNDomain, "/"),
	}, nil
}

func (s *GCSStorage) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	w := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
	w.ContentType = contentType
	w.ChunkSize = 0
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("上传GCS失败: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("上传GCS失败: %w", err)
	}
	return s.urlPrefix() + key, nil
}

func (s *GCSStorage) Delete(ctx context.Context, url string) error {
	key := trimKnownPrefix(url, s.urlPrefix())
	if key == "" {
		return fmt.Errorf("%w: %s", ErrForeignURL, url)
	}
	err := s.client.Bucket(s.bucket).Object(key).Delete(ctx)
	if err != nil && !errors.Is(err, gcs.ErrObjectNotExist) {
		return err
	}
	return nil
}

func (s *GCSStorage) Close() error {
	return s.client.Close()
}

func (s *GCSStorage) urlPrefix() string {
	if s.cdnDomain != "" {
		return withScheme(s.cdnDomain) + "/"
	}
	return fmt.Sprintf("https://storage.googleapis.com/%s/", s.bucket)
}

// ==================== 本地存储 (开发测试用) ====================

type LocalStorage struct {
	basePath string
	baseURL  string
}

func NewLocalStorage(cfg StorageConfig) (*LocalStorage, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "./uploads"
	}
	baseURL := strings.TrimRight(cfg.Endpoint, "/")
	if baseURL == "" {
		baseURL = "http://localhost:8080/uploads"
	}

	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("创建本地存储目录失败: %w", err)
	}

	return &LocalStorage{
		basePath: basePath,
		baseURL:  baseURL,
	}, nil
}

func (s *LocalStorage) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	full, err := s.resolve(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return "", err
	}
	return s.baseURL + "/" + key, nil
}

func (s *LocalStorage) Delete(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	key := trimKnownPrefix(url, s.baseURL+"/")
	if key == "" {
		return fmt.Errorf("%w: %s", ErrForeignURL, url)
	}
	full, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// resolve 防止 key 逃出存储目录
func (s *LocalStorage) resolve(key string) (string, error) {
	clean := path.Clean("/" + key)
	if clean == "/" {
		return "", fmt.Errorf("非法文件路径: %s", key)
	}
	return filepath.Join(s.basePath, filepath.FromSlash(clean)), nil
}

// ==================== 工具函数 ====================

func withScheme(domain string) string {
	if strings.HasPrefix(domain, "http://") || strings.HasPrefix(domain, "https://") {
		return domain
	}
	return "https://" + domain
}

// trimKnownPrefix URL 不属于该存储时返回空
func trimKnownPrefix(url, prefix string) string {
	if !strings.HasPrefix(url, prefix) {
		return ""
	}
	return strings.TrimPrefix(url, prefix)
}
