package cert

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/houzhh15/smolcert/logging"
	"golang.org/x/crypto/ed25519"
	"gorm.io/gorm"
)

// AnchorStatus 信任锚状态
type AnchorStatus string

const (
	AnchorActive   AnchorStatus = "active"   // 参与校验
	AnchorDisabled AnchorStatus = "disabled" // 已停用
)

// AnchorInfo 信任锚信息
type AnchorInfo struct {
	Identity    string       `json:"identity"`
	PublicKey   string       `json:"public_key"`  // hex
	Fingerprint string       `json:"fingerprint"` // 公钥 SHA256
	Comment     string       `json:"comment,omitempty"`
	Status      AnchorStatus `json:"status"`
	CreatedAt   time.Time    `json:"created_at"`
}

// Registry 信任锚注册表（数据库支持）
// 校验路径不直接访问数据库，而是通过 LoadTrustStore/Sync 得到内存快照
type Registry struct {
	db     *gorm.DB
	logger logging.Logger
	mu     sync.RWMutex
}

// AnchorRecord 数据库信任锚记录
type AnchorRecord struct {
	ID            uint   `gorm:"primaryKey"`
	Identity      string `gorm:"uniqueIndex;not null"`
	PublicKey     string `gorm:"not null"`
	Fingerprint   string `gorm:"index"`
	Comment       string
	Status        string `gorm:"default:'active'"`
	DisabledAt    *time.Time
	DisableReason string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// TableName 指定表名
func (AnchorRecord) TableName() string {
	return "trust_anchors"
}

// NewRegistry 创建信任锚注册表
func NewRegistry(db *gorm.DB, logger logging.Logger) (*Registry, error) {
	if db == nil {
		return nil, errors.New("database is required")
	}
	if logger == nil {
		logger = logging.NopLogger{}
	}

	if err := db.AutoMigrate(&AnchorRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate trust_anchors table: %w", err)
	}

	return &Registry{
		db:     db,
		logger: logger,
	}, nil
}

func keyFingerprint(pub []byte) string {
	hash := sha256.Sum256(pub)
	return "sha256:" + hex.EncodeToString(hash[:])
}

// Register 注册信任锚
func (r *Registry) Register(identity string, pub ed25519.PublicKey, comment string) error {
	if identity == "" {
		return errors.New("identity is required")
	}
	if len(pub) != ed25519.PublicKeySize {
		return fmt.Errorf("public key must be %d bytes, got %d", ed25519.PublicKeySize, len(pub))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	record := AnchorRecord{
		Identity:    identity,
		PublicKey:   hex.EncodeToString(pub),
		Fingerprint: keyFingerprint(pub),
		Comment:     comment,
		Status:      string(AnchorActive),
	}

	if result := r.db.Create(&record); result.Error != nil {
		r.logger.Error("Failed to register trust anchor", "identity", identity, "error", result.Error)
		return fmt.Errorf("failed to register trust anchor: %w", result.Error)
	}

	r.logger.Info("Trust anchor registered", "identity", identity, "fingerprint", record.Fingerprint)
	return nil
}

// RegisterCertificate 以证书 subject/公钥注册信任锚
func (r *Registry) RegisterCertificate(c *Certificate, comment string) error {
	if c == nil {
		return errors.New("certificate is required")
	}
	return r.Register(c.Subject, c.PubKey, comment)
}

// Get 获取信任锚信息
func (r *Registry) Get(identity string) (*AnchorInfo, error) {
	if identity == "" {
		return nil, errors.New("identity is required")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var record AnchorRecord
	result := r.db.Where("identity = ?", identity).First(&record)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("trust anchor not found: %s", identity)
		}
		return nil, fmt.Errorf("failed to query trust anchor: %w", result.Error)
	}

	return record.info(), nil
}

// Disable 停用信任锚（锚点轮换）
func (r *Registry) Disable(identity, reason string) error {
	if identity == "" {
		return errors.New("identity is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	result := r.db.Model(&AnchorRecord{}).
		Where("identity = ?", identity).
		Updates(map[string]interface{}{
			"status":         string(AnchorDisabled),
			"disabled_at":    &now,
			"disable_reason": reason,
		})

	if result.Error != nil {
		r.logger.Error("Failed to disable trust anchor", "identity", identity, "error", result.Error)
		return fmt.Errorf("failed to disable trust anchor: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("trust anchor not found: %s", identity)
	}

	r.logger.Info("Trust anchor disabled", "identity", identity, "reason", reason)
	return nil
}

// Remove 删除信任锚
func (r *Registry) Remove(identity string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	result := r.db.Where("identity = ?", identity).Delete(&AnchorRecord{})
	if result.Error != nil {
		return fmt.Errorf("failed to remove trust anchor: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("trust anchor not found: %s", identity)
	}

	r.logger.Info("Trust anchor removed", "identity", identity)
	return nil
}

// List 列出信任锚（分页）
func (r *Registry) List(page, pageSize int, status AnchorStatus) ([]*AnchorInfo, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var total int64
	query := r.db.Model(&AnchorRecord{})

	if status != "" {
		query = query.Where("status = ?", string(status))
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count trust anchors: %w", err)
	}

	if page < 1 {
		page = 1
	}
	var records []AnchorRecord
	offset := (page - 1) * pageSize
	result := query.Order("identity").Offset(offset).Limit(pageSize).Find(&records)
	if result.Error != nil {
		return nil, 0, fmt.Errorf("failed to list trust anchors: %w", result.Error)
	}

	infos := make([]*AnchorInfo, len(records))
	for i := range records {
		infos[i] = records[i].info()
	}

	return infos, total, nil
}

// LoadTrustStore 以全部活跃信任锚构建信任库
func (r *Registry) LoadTrustStore() (*TrustStore, error) {
	store := NewTrustStore()
	if err := r.Sync(store); err != nil {
		return nil, err
	}
	return store, nil
}

// ActiveAnchors 返回全部活跃信任锚
func (r *Registry) ActiveAnchors() (map[string]ed25519.PublicKey, error) {
	r.mu.RLock()
	var records []AnchorRecord
	result := r.db.Where("status = ?", string(AnchorActive)).Find(&records)
	r.mu.RUnlock()
	if result.Error != nil {
		return nil, fmt.Errorf("failed to load trust anchors: %w", result.Error)
	}

	anchors := make(map[string]ed25519.PublicKey, len(records))
	for _, rec := range records {
		pub, err := hex.DecodeString(rec.PublicKey)
		if err != nil {
			return nil, fmt.Errorf("trust anchor %s: decode public key: %w", rec.Identity, err)
		}
		anchors[rec.Identity] = ed25519.PublicKey(pub)
	}
	return anchors, nil
}

// Sync 以活跃信任锚原子替换 store 内容
func (r *Registry) Sync(store *TrustStore) error {
	anchors, err := r.ActiveAnchors()
	if err != nil {
		return err
	}
	if err := store.Replace(anchors); err != nil {
		return err
	}

	r.logger.Info("Trust store synchronized", "anchors", len(anchors))
	return nil
}

func (rec *AnchorRecord) info() *AnchorInfo {
	return &AnchorInfo{
		Identity:    rec.Identity,
		PublicKey:   rec.PublicKey,
		Fingerprint: rec.Fingerprint,
		Comment:     rec.Comment,
		Status:      AnchorStatus(rec.Status),
		CreatedAt:   rec.CreatedAt,
	}
}
