package cert

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/crypto/ed25519"
)

// TrustStore 信任锚集合：身份 -> 公钥
// 身份按字节精确匹配，不支持通配
// 读多写少，锚点轮换时使用 Replace 原子替换
type TrustStore struct {
	mu      sync.RWMutex
	anchors map[string]ed25519.PublicKey
}

// NewTrustStore 创建空信任库
func NewTrustStore() *TrustStore {
	return &TrustStore{anchors: make(map[string]ed25519.PublicKey)}
}

// NewTrustStoreFromCertificates 以根证书的 subject/公钥构建信任库
func NewTrustStoreFromCertificates(roots ...*Certificate) (*TrustStore, error) {
	s := NewTrustStore()
	for _, c := range roots {
		if c == nil {
			continue
		}
		if err := s.Add(c.Subject, c.PubKey); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Add 添加信任锚（已存在则覆盖）
func (s *TrustStore) Add(identity string, pub ed25519.PublicKey) error {
	if identity == "" {
		return errors.New("identity is required")
	}
	if len(pub) != ed25519.PublicKeySize {
		return fmt.Errorf("public key must be %d bytes, got %d", ed25519.PublicKeySize, len(pub))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.anchors[identity] = append(ed25519.PublicKey{}, pub...)
	return nil
}

// Remove 删除信任锚，返回是否存在
func (s *TrustStore) Remove(identity string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.anchors[identity]
	delete(s.anchors, identity)
	return ok
}

// Replace 原子替换全部信任锚
func (s *TrustStore) Replace(anchors map[string]ed25519.PublicKey) error {
	next := make(map[string]ed25519.PublicKey, len(anchors))
	for id, pub := range anchors {
		if id == "" {
			return errors.New("identity is required")
		}
		if len(pub) != ed25519.PublicKeySize {
			return fmt.Errorf("anchor %q: public key must be %d bytes, got %d", id, ed25519.PublicKeySize, len(pub))
		}
		next[id] = append(ed25519.PublicKey{}, pub...)
	}

	s.mu.Lock()
	s.anchors = next
	s.mu.Unlock()
	return nil
}

// Lookup 查找信任锚公钥
func (s *TrustStore) Lookup(identity string) (ed25519.PublicKey, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lookupLocked(identity)
}

func (s *TrustStore) lookupLocked(identity string) (ed25519.PublicKey, bool) {
	pub, ok := s.anchors[identity]
	return pub, ok
}

// Len 信任锚数量
func (s *TrustStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.anchors)
}

// Anchors 返回信任锚快照（副本）
func (s *TrustStore) Anchors() map[string]ed25519.PublicKey {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]ed25519.PublicKey, len(s.anchors))
	for id, pub := range s.anchors {
		out[id] = append(ed25519.PublicKey{}, pub...)
	}
	return out
}

// Identities 返回排序后的身份列表
func (s *TrustStore) Identities() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.anchors))
	for id := range s.anchors {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
