package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cast"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"agri_market_v1/internal/api/dto"
	"agri_market_v1/internal/form"
	"agri_market_v1/internal/repository"
)

var (
	ErrSessionNotFound       = errors.New("edit session not found")
	ErrNotPermitted          = errors.New("not permitted to edit this listing")
	ErrSubmitInProgress      = errors.New("submit already in progress")
	ErrImageActionNotAllowed = errors.New("image changes must go through the image endpoints")

	// ErrListingNotFound 同 repository.ErrListingNotFound
	ErrListingNotFound = repository.ErrListingNotFound
)

// ==================== 外部依赖 ====================

// ImageStore 图片存储
type ImageStore interface {
	Upload(ctx context.Context, ownerID int64, data []byte) (string, error)
	Delete(ctx context.Context, url string) error
}

// ==================== 编辑会话 ====================

type editSession struct {
	id        string
	userID    int64
	listingID int64 // 0 表示新建

	// 图片变更队列，先到先得
	queue      *semaphore.Weighted
	submitting atomic.Bool

	mu         sync.Mutex
	draft      form.Draft
	uploaded   []string // 本会话上传、尚未持久化的图片
	lastActive time.Time
	closed     bool
}

// SessionView 会话快照
type SessionView struct {
	ID         string                `json:"id"`
	ListingID  int64                 `json:"listing_id,omitempty"`
	Mode       string                `json:"mode"`
	Draft      form.Draft            `json:"draft"`
	Errors     form.ValidationResult `json:"errors"`
	Submitting bool                  `json:"submitting"`
}

// SubmitResult 提交结果
type SubmitResult struct {
	ListingID int64 `json:"listing_id"`
	Created   bool  `json:"created"`
}

// ==================== 服务实现 ====================

// ListingService 商品编辑与浏览
type ListingService struct {
	repo   repository.ListingRepository
	images ImageStore
	logger *zap.Logger
	ttl    time.Duration
	now    func() time.Time

	sessions map[string]*editSession
	mu       sync.RWMutex
}

// NewListingService 创建商品服务，ttl 为会话空闲过期时间
func NewListingService(
	repo repository.ListingRepository,
	images ImageStore,
	logger *zap.Logger,
	ttl time.Duration,
) *ListingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	return &ListingService{
		repo:     repo,
		images:   images,
		logger:   logger.Named("listing"),
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[string]*editSession),
	}
}

// StartCreate 新建商品会话，草稿为空且枚举取默认值
func (s *ListingService) StartCreate(ctx context.Context, userID int64) (*SessionView, error) {
	sess := s.open(userID, 0, form.NewDraft())
	return s.view(sess), nil
}

// StartEdit 编辑已有商品
// 商品不存在或非本人发布时不创建会话
func (s *ListingService) StartEdit(ctx context.Context, userID, listingID int64) (*SessionView, error) {
	rec, err := s.repo.FetchListing(ctx, listingID)
	if err != nil {
		if errors.Is(err, repository.ErrListingNotFound) {
			return nil, ErrListingNotFound
		}
		return nil, fmt.Errorf("fetch listing %d: %w", listingID, err)
	}
	if rec.OwnerID != userID {
		return nil, ErrNotPermitted
	}

	draft, repairs := form.Normalize(rec)
	s.logRepairs(listingID, repairs)

	sess := s.open(userID, listingID, draft)
	return s.view(sess), nil
}

// GetSession 当前草稿与校验结果
func (s *ListingService) GetSession(userID int64, sid string) (*SessionView, error) {
	sess, err := s.session(userID, sid)
	if err != nil {
		return nil, err
	}
	return s.view(sess), nil
}

// ApplyEdits 依次应用字段操作，任一失败则整体不生效
// 提交进行中拒绝修改
func (s *ListingService) ApplyEdits(ctx context.Context, userID int64, sid string, actions []form.Action) (*SessionView, error) {
	sess, err := s.session(userID, sid)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	if sess.closed {
		sess.mu.Unlock()
		return nil, ErrSessionNotFound
	}
	// 提交已读取草稿，此时的修改不会被持久化
	if sess.submitting.Load() {
		sess.mu.Unlock()
		return nil, ErrSubmitInProgress
	}
	next := sess.draft
	for i, a := range actions {
		if a.Type == form.ActionAppendImage || a.Type == form.ActionRemoveImage {
			sess.mu.Unlock()
			return nil, fmt.Errorf("action %d: %w", i, ErrImageActionNotAllowed)
		}
		next, err = form.Reduce(next, a)
		if err != nil {
			sess.mu.Unlock()
			return nil, fmt.Errorf("action %d: %w", i, err)
		}
	}
	sess.draft = next
	sess.lastActive = s.now()
	sess.mu.Unlock()

	return s.view(sess), nil
}

// UploadImage 上传并追加图片
// 大小与类型在任何网络调用前检查；上传失败时图片列表不变
func (s *ListingService) UploadImage(ctx context.Context, userID int64, sid, filename string, data []byte) (*SessionView, string, error) {
	sess, err := s.session(userID, sid)
	if err != nil {
		return nil, "", err
	}
	if _, err := CheckImage(data); err != nil {
		return nil, "", err
	}
	sess.mu.Lock()
	capErr := form.CanAppend(sess.draft.Images)
	sess.mu.Unlock()
	if capErr != nil {
		return nil, "", capErr
	}

	if err := sess.queue.Acquire(ctx, 1); err != nil {
		return nil, "", err
	}
	defer sess.queue.Release(1)

	// 排队期间可能已被其他上传占满
	sess.mu.Lock()
	closed := sess.closed
	capErr = form.CanAppend(sess.draft.Images)
	sess.mu.Unlock()
	if closed {
		return nil, "", ErrSessionNotFound
	}
	if capErr != nil {
		return nil, "", capErr
	}

	url, err := s.images.Upload(ctx, sess.userID, data)
	if err != nil {
		s.logger.Warn("图片上传失败",
			zap.String("session", sid),
			zap.String("filename", filename),
			zap.Error(err))
		return nil, "", err
	}

	sess.mu.Lock()
	next, err := form.AppendImage(sess.draft.Images, url)
	if err == nil {
		sess.draft.Images = next
		sess.uploaded = append(sess.uploaded, url)
		sess.lastActive = s.now()
	}
	sess.mu.Unlock()
	if err != nil {
		// 队列保证不会发生，兜底清理
		s.deleteQuietly(ctx, url)
		return nil, "", err
	}

	s.logger.Info("图片已上传", zap.String("session", sid), zap.String("url", url))
	return s.view(sess), url, nil
}

// DeleteImage 删除图片
// 不在列表中的 URL 直接返回，不调用远端；远端删除失败时列表不变
// 不属于当前存储的 URL 不做远端删除，直接移出列表
func (s *ListingService) DeleteImage(ctx context.Context, userID int64, sid, url string) (*SessionView, error) {
	sess, err := s.session(userID, sid)
	if err != nil {
		return nil, err
	}

	if err := sess.queue.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer sess.queue.Release(1)

	sess.mu.Lock()
	closed := sess.closed
	idx := form.IndexOf(sess.draft.Images, url)
	sess.mu.Unlock()
	if closed {
		return nil, ErrSessionNotFound
	}
	if idx < 0 {
		return s.view(sess), nil
	}

	if err := s.images.Delete(ctx, url); err != nil {
		if !errors.Is(err, ErrForeignURL) {
			s.logger.Warn("图片删除失败", zap.String("session", sid), zap.String("url", url), zap.Error(err))
			return nil, err
		}
		// 不由本存储管理的图片只从列表移除
		s.logger.Warn("图片不属于当前存储，仅从列表移除", zap.String("session", sid), zap.String("url", url))
	}

	sess.mu.Lock()
	sess.draft.Images = form.RemoveImage(sess.draft.Images, url)
	sess.uploaded = form.RemoveImage(sess.uploaded, url)
	sess.lastActive = s.now()
	sess.mu.Unlock()

	return s.view(sess), nil
}

// Submit 校验并提交草稿
// 同一会话同时只允许一个提交；失败时会话与草稿保持不变，成功后关闭会话
func (s *ListingService) Submit(ctx context.Context, userID int64, sid string) (*SubmitResult, error) {
	sess, err := s.session(userID, sid)
	if err != nil {
		return nil, err
	}
	if !sess.submitting.CompareAndSwap(false, true) {
		return nil, ErrSubmitInProgress
	}
	defer sess.submitting.Store(false)

	// 等待进行中的图片变更
	if err := sess.queue.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer sess.queue.Release(1)

	sess.mu.Lock()
	closed := sess.closed
	draft := sess.draft.Clone()
	sess.mu.Unlock()
	if closed {
		return nil, ErrSessionNotFound
	}

	if result := form.Validate(draft); !result.OK() {
		return nil, &form.ValidationError{Result: result}
	}
	payload, err := form.Denormalize(draft)
	if err != nil {
		return nil, err
	}

	res := &SubmitResult{ListingID: sess.listingID}
	if sess.listingID == 0 {
		res.ListingID, err = s.repo.CreateListing(ctx, sess.userID, payload)
		res.Created = true
	} else {
		err = s.repo.UpdateListing(ctx, sess.listingID, sess.userID, payload)
	}
	if err != nil {
		s.logger.Error("商品提交失败",
			zap.String("session", sid),
			zap.Int64("listing_id", sess.listingID),
			zap.Error(err))
		switch {
		case errors.Is(err, repository.ErrNotOwner):
			return nil, ErrNotPermitted
		case errors.Is(err, repository.ErrListingNotFound):
			return nil, ErrListingNotFound
		}
		return nil, fmt.Errorf("submit listing: %w", err)
	}

	sess.mu.Lock()
	sess.closed = true
	sess.uploaded = nil
	sess.mu.Unlock()
	s.remove(sid)

	s.logger.Info("商品已提交",
		zap.Int64("listing_id", res.ListingID),
		zap.Int64("user_id", sess.userID),
		zap.Bool("created", res.Created))
	return res, nil
}

// Discard 放弃编辑，清理本会话上传的图片
func (s *ListingService) Discard(ctx context.Context, userID int64, sid string) error {
	sess, err := s.session(userID, sid)
	if err != nil {
		return err
	}
	s.remove(sid)
	return s.cleanup(ctx, sess)
}

// SweepExpired 清理空闲超时的会话，返回清理数量
func (s *ListingService) SweepExpired(ctx context.Context, now time.Time) (int, error) {
	var expired []*editSession

	s.mu.Lock()
	for id, sess := range s.sessions {
		if sess.submitting.Load() {
			continue
		}
		sess.mu.Lock()
		idle := now.Sub(sess.lastActive) > s.ttl
		sess.mu.Unlock()
		if idle {
			expired = append(expired, sess)
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()

	var errs []error
	for _, sess := range expired {
		if err := s.cleanup(ctx, sess); err != nil {
			errs = append(errs, err)
		}
	}
	if len(expired) > 0 {
		s.logger.Info("过期会话已清理", zap.Int("count", len(expired)))
	}
	return len(expired), errors.Join(errs...)
}

// SessionCount 活跃会话数
func (s *ListingService) SessionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// ==================== 浏览 ====================

// GetListing 商品详情（规范化后）
func (s *ListingService) GetListing(ctx context.Context, id int64) (*dto.ListingVO, error) {
	rec, err := s.repo.FetchListing(ctx, id)
	if err != nil {
		return nil, err
	}
	vo := s.toVO(rec)
	return &vo, nil
}

// ListListings 公开列表
func (s *ListingService) ListListings(ctx context.Context, req dto.ListListingsRequest) ([]dto.ListingVO, int64, error) {
	rows, total, err := s.repo.List(ctx, repository.ListingFilter{
		CategoryID: req.CategoryID,
		Province:   req.Province,
		Status:     req.Status,
		OwnerID:    req.OwnerID,
		Page:       req.Page,
		PageSize:   req.PageSize,
	})
	if err != nil {
		return nil, 0, err
	}

	out := make([]dto.ListingVO, 0, len(rows))
	for i := range rows {
		out = append(out, s.toVO(&rows[i]))
	}
	return out, total, nil
}

func (s *ListingService) toVO(rec *dto.RemoteListing) dto.ListingVO {
	d, repairs := form.Normalize(rec)
	s.logRepairs(rec.ID, repairs)

	vo := dto.ListingVO{
		ID:                rec.ID,
		OwnerID:           rec.OwnerID,
		Title:             d.Title,
		Description:       d.Description,
		Price:             d.Price,
		Quantity:          d.Quantity,
		MinOrderQuantity:  d.MinOrderQuantity,
		CategoryID:        d.CategoryID,
		City:              d.City,
		Province:          d.Province,
		Status:            d.Status,
		Condition:         d.Condition,
		Certification:     d.Certification,
		PaymentTerms:      d.PaymentTerms,
		PriceUnit:         d.PriceUnit,
		QuantityUnit:      d.QuantityUnit,
		DeliveryAvailable: d.DeliveryAvailable,
		PriceNegotiable:   d.PriceNegotiable,
		Images:            d.Images,
	}
	// 时间无法识别时省略
	if ts, err := cast.ToTimeE(rec.UpdatedAt); err == nil && !ts.IsZero() {
		vo.UpdatedAt = &ts
	}
	return vo
}

// ==================== 内部方法 ====================

func (s *ListingService) open(userID, listingID int64, draft form.Draft) *editSession {
	sess := &editSession{
		id:         uuid.New().String(),
		userID:     userID,
		listingID:  listingID,
		queue:      semaphore.NewWeighted(1),
		draft:      draft,
		lastActive: s.now(),
	}

	s.mu.Lock()
	s.sessions[sess.id] = sess
	s.mu.Unlock()

	s.logger.Debug("编辑会话已创建",
		zap.String("session", sess.id),
		zap.Int64("user_id", userID),
		zap.Int64("listing_id", listingID))
	return sess
}

// session 其他用户的会话视为不存在
func (s *ListingService) session(userID int64, sid string) (*editSession, error) {
	s.mu.RLock()
	sess, ok := s.sessions[sid]
	s.mu.RUnlock()
	if !ok || sess.userID != userID {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

func (s *ListingService) remove(sid string) {
	s.mu.Lock()
	delete(s.sessions, sid)
	s.mu.Unlock()
}

// cleanup 等待进行中的图片变更后删除孤儿图片
func (s *ListingService) cleanup(ctx context.Context, sess *editSession) error {
	if err := sess.queue.Acquire(ctx, 1); err != nil {
		return err
	}
	defer sess.queue.Release(1)

	sess.mu.Lock()
	sess.closed = true
	orphans := sess.uploaded
	sess.uploaded = nil
	sess.mu.Unlock()

	for _, url := range orphans {
		s.deleteQuietly(ctx, url)
	}
	return nil
}

func (s *ListingService) deleteQuietly(ctx context.Context, url string) {
	if err := s.images.Delete(ctx, url); err != nil {
		s.logger.Warn("孤儿图片删除失败", zap.String("url", url), zap.Error(err))
	}
}

func (s *ListingService) view(sess *editSession) *SessionView {
	sess.mu.Lock()
	draft := sess.draft.Clone()
	sess.mu.Unlock()

	mode := "create"
	if sess.listingID != 0 {
		mode = "edit"
	}
	return &SessionView{
		ID:         sess.id,
		ListingID:  sess.listingID,
		Mode:       mode,
		Draft:      draft,
		Errors:     form.Validate(draft),
		Submitting: sess.submitting.Load(),
	}
}

func (s *ListingService) logRepairs(listingID int64, repairs []form.Repair) {
	for _, r := range repairs {
		s.logger.Warn("远端数据已修复",
			zap.Int64("listing_id", listingID),
			zap.String("field", r.Field),
			zap.Any("value", r.Value),
			zap.String("replacement", r.Replacement))
	}
}
