package cert

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rootAScenario 信任库 {"root-A": pubkey_A}，叶子证书有效期 (1000, 2000)
func rootAScenario(t *testing.T) (*TrustStore, *Certificate) {
	rootKey := testKey(0xA)
	store := NewTrustStore()
	require.NoError(t, store.Add("root-A", pubOf(rootKey)))
	leaf := issue(t, "leaf", "root-A", testKey(1), rootKey, 1000, 2000)
	return store, leaf
}

func TestValidateChain_ConcreteScenario(t *testing.T) {
	store, leaf := rootAScenario(t)

	t.Run("now=1500 受信任", func(t *testing.T) {
		assert.NoError(t, ValidateChain([]*Certificate{leaf}, store, FixedClock(1500)))
	})

	t.Run("now=2000 已过期", func(t *testing.T) {
		err := ValidateChain([]*Certificate{leaf}, store, FixedClock(2000))
		var ce *Error
		require.True(t, errors.As(err, &ce))
		assert.Equal(t, KindValidity, ce.Kind)
		assert.Equal(t, uint64(1000), ce.NotBefore)
		assert.Equal(t, uint64(2000), ce.NotAfter)
		assert.Equal(t, 0, ce.Position)
	})

	t.Run("签名被篡改", func(t *testing.T) {
		err := ValidateChain([]*Certificate{corrupt(leaf)}, store, FixedClock(1500))
		assert.Equal(t, KindSignature, KindOf(err))
		assert.True(t, errors.Is(err, ErrSignature))
	})
}

func TestValidateChain_ValidityBoundaries(t *testing.T) {
	store, leaf := rootAScenario(t)

	tests := []struct {
		now     uint64
		trusted bool
	}{
		{999, false},
		{1000, true},
		{1999, true},
		{2000, false},
		{2001, false},
	}

	for _, tt := range tests {
		err := ValidateChain([]*Certificate{leaf}, store, FixedClock(tt.now))
		if tt.trusted {
			assert.NoError(t, err, "now=%d", tt.now)
		} else {
			assert.Equal(t, KindValidity, KindOf(err), "now=%d", tt.now)
		}
	}
}

func TestValidateChain_SignaturePrecedence(t *testing.T) {
	store, leaf := rootAScenario(t)

	// 签名正确但已过期 -> validity
	err := ValidateChain([]*Certificate{leaf}, store, FixedClock(5000))
	assert.Equal(t, KindValidity, KindOf(err))

	// 签名错误且已过期 -> signature
	err = ValidateChain([]*Certificate{corrupt(leaf)}, store, FixedClock(5000))
	assert.Equal(t, KindSignature, KindOf(err))

	// 签名错误且时钟故障 -> signature，时钟不被读取
	clock := &countingClock{err: errors.New("clock fault")}
	err = ValidateChain([]*Certificate{corrupt(leaf)}, store, clock)
	assert.Equal(t, KindSignature, KindOf(err))
	assert.Equal(t, 0, clock.reads)
}

func TestValidateChain_TimeError(t *testing.T) {
	store, leaf := rootAScenario(t)
	clock := &countingClock{err: errors.New("monotonic clock fault")}

	err := ValidateChain([]*Certificate{leaf}, store, clock)
	require.Error(t, err)
	assert.Equal(t, KindTime, KindOf(err))
	assert.True(t, errors.Is(err, ErrTime))

	var ce *Error
	require.True(t, errors.As(err, &ce))
	assert.True(t, ce.Retryable())
	assert.Contains(t, err.Error(), "monotonic clock fault")
}

func TestValidateChain_Untrusted(t *testing.T) {
	rootKey := testKey(0xA)
	interKey := testKey(0xB)
	leaf := issue(t, "leaf", "inter", testKey(1), interKey, 1000, 2000)
	inter := issue(t, "inter", "root-A", interKey, rootKey, 1000, 2000)

	// 链本身完全正确，但 root-A 不在信任库中
	store := NewTrustStore()
	require.NoError(t, store.Add("root-B", pubOf(testKey(0xC))))

	err := ValidateChain([]*Certificate{leaf, inter}, store, FixedClock(1500))
	require.Error(t, err)
	assert.Equal(t, KindUntrusted, KindOf(err))
	assert.True(t, errors.Is(err, ErrUntrusted))

	var ce *Error
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, 1, ce.Position)
	assert.False(t, ce.Retryable())
}

func TestValidateChain_UntrustedBeforeLastSignature(t *testing.T) {
	// 链尾签发者不在信任库时，链尾证书的签名不被检查
	leaf := issue(t, "leaf", "unknown-root", testKey(1), testKey(2), 1000, 2000)
	err := ValidateChain([]*Certificate{corrupt(leaf)}, NewTrustStore(), FixedClock(1500))
	assert.Equal(t, KindUntrusted, KindOf(err))
}

func TestValidateChain_ThreeCertificates(t *testing.T) {
	rootKey := testKey(0xA)
	interKey := testKey(0xB)
	leafKey := testKey(1)

	store := NewTrustStore()
	require.NoError(t, store.Add("root-A", pubOf(rootKey)))

	leaf := issue(t, "leaf", "inter", leafKey, interKey, 1000, 2000)
	inter := issue(t, "inter", "root-A", interKey, rootKey, 500, 3000)
	root := issue(t, "root-A", "root-A", rootKey, rootKey, 0, 10000)

	t.Run("全部有效", func(t *testing.T) {
		assert.NoError(t, ValidateChain([]*Certificate{leaf, inter, root}, store, FixedClock(1500)))
	})

	t.Run("中间证书签名无效时短路", func(t *testing.T) {
		expiredRoot := issue(t, "root-A", "root-A", rootKey, rootKey, 0, 100)
		err := ValidateChain([]*Certificate{leaf, corrupt(inter), expiredRoot}, store, FixedClock(1500))

		var ce *Error
		require.True(t, errors.As(err, &ce))
		assert.Equal(t, KindSignature, ce.Kind)
		assert.Equal(t, 1, ce.Position)
	})

	t.Run("叶子签名无效时报告位置 0", func(t *testing.T) {
		err := ValidateChain([]*Certificate{corrupt(leaf), inter, root}, store, FixedClock(1500))
		var ce *Error
		require.True(t, errors.As(err, &ce))
		assert.Equal(t, KindSignature, ce.Kind)
		assert.Equal(t, 0, ce.Position)
	})

	t.Run("中间证书过期", func(t *testing.T) {
		err := ValidateChain([]*Certificate{leaf, inter, root}, store, FixedClock(1999))
		assert.NoError(t, err)

		shortInter := issue(t, "inter", "root-A", interKey, rootKey, 500, 1200)
		err = ValidateChain([]*Certificate{leaf, shortInter, root}, store, FixedClock(1500))
		var ce *Error
		require.True(t, errors.As(err, &ce))
		assert.Equal(t, KindValidity, ce.Kind)
		assert.Equal(t, 1, ce.Position)
		assert.Equal(t, uint64(500), ce.NotBefore)
		assert.Equal(t, uint64(1200), ce.NotAfter)
	})

	t.Run("时钟只读取一次", func(t *testing.T) {
		clock := &countingClock{now: 1500}
		require.NoError(t, ValidateChain([]*Certificate{leaf, inter, root}, store, clock))
		assert.Equal(t, 1, clock.reads)
	})

	t.Run("签发者与下一张证书主题不一致", func(t *testing.T) {
		other := issue(t, "other", "root-A", interKey, rootKey, 500, 3000)
		err := ValidateChain([]*Certificate{leaf, other}, store, FixedClock(1500))
		var ce *Error
		require.True(t, errors.As(err, &ce))
		assert.Equal(t, KindUntrusted, ce.Kind)
		assert.Equal(t, 0, ce.Position)
	})
}

func TestValidateChain_SelfSignedAnchor(t *testing.T) {
	rootKey := testKey(0xA)
	store := NewTrustStore()
	require.NoError(t, store.Add("root-A", pubOf(rootKey)))

	expiredRoot := issue(t, "root-A", "root-A", rootKey, rootKey, 0, 100)
	leaf := issue(t, "leaf", "root-A", testKey(1), rootKey, 1000, 2000)

	t.Run("默认策略同样检查信任锚有效期", func(t *testing.T) {
		err := ValidateChain([]*Certificate{leaf, expiredRoot}, store, FixedClock(1500))
		var ce *Error
		require.True(t, errors.As(err, &ce))
		assert.Equal(t, KindValidity, ce.Kind)
		assert.Equal(t, 1, ce.Position)
	})

	t.Run("默认策略检查信任锚签名", func(t *testing.T) {
		root := issue(t, "root-A", "root-A", rootKey, rootKey, 0, 10000)
		err := ValidateChain([]*Certificate{corrupt(root)}, store, FixedClock(1500))
		assert.Equal(t, KindSignature, KindOf(err))
	})

	t.Run("TrustAnchors 策略跳过信任锚自身检查", func(t *testing.T) {
		err := ValidateChain([]*Certificate{leaf, expiredRoot}, store, FixedClock(1500), WithAnchorPolicy(TrustAnchors))
		assert.NoError(t, err)

		err = ValidateChain([]*Certificate{corrupt(expiredRoot)}, store, FixedClock(1500), WithAnchorPolicy(TrustAnchors))
		assert.NoError(t, err)
	})

	t.Run("TrustAnchors 策略要求公钥一致", func(t *testing.T) {
		impostor := issue(t, "root-A", "root-A", testKey(0xE), testKey(0xE), 0, 10000)
		err := ValidateChain([]*Certificate{impostor}, store, FixedClock(1500), WithAnchorPolicy(TrustAnchors))
		assert.Equal(t, KindSignature, KindOf(err))
	})
}

func TestValidateChain_Malformed(t *testing.T) {
	store, leaf := rootAScenario(t)

	err := ValidateChain(nil, store, FixedClock(1500))
	assert.Equal(t, KindUntrusted, KindOf(err))

	err = ValidateChain([]*Certificate{leaf, nil}, store, FixedClock(1500))
	var ce *Error
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, KindSerialization, ce.Kind)
	assert.Equal(t, 1, ce.Position)

	unsigned := leaf.Copy()
	unsigned.Signature = nil
	err = ValidateChain([]*Certificate{unsigned}, store, FixedClock(1500))
	assert.Equal(t, KindSignature, KindOf(err))

	err = ValidateChain([]*Certificate{leaf}, nil, FixedClock(1500))
	assert.Equal(t, KindUntrusted, KindOf(err))
}

func TestOutcomeOf(t *testing.T) {
	assert.Equal(t, Outcome{Trusted: true, Position: -1}, OutcomeOf(nil))

	out := OutcomeOf(validityError(1000, 2000).at(0))
	assert.False(t, out.Trusted)
	assert.Equal(t, "validity", out.Kind)
	assert.Equal(t, uint64(1000), out.NotBefore)
	assert.Equal(t, uint64(2000), out.NotAfter)

	out = OutcomeOf(timeError(errors.New("x")))
	assert.True(t, out.Retryable)
	assert.Equal(t, "time", out.Kind)

	out = OutcomeOf(errors.New("plain"))
	assert.Equal(t, "unknown", out.Kind)
}

func TestErrorKinds_Distinct(t *testing.T) {
	errs := []error{ErrSerialization, ErrSignature, ErrValidity, ErrTime, ErrUntrusted}
	for i, e := range []*Error{
		serializationError(nil), signatureError(nil), validityError(1, 2), timeError(nil), untrustedError(nil),
	} {
		for j, target := range errs {
			assert.Equal(t, i == j, errors.Is(e, target), "%s vs %v", e.Kind, target)
		}
	}
}

func TestParseAnchorPolicy(t *testing.T) {
	p, err := ParseAnchorPolicy("")
	require.NoError(t, err)
	assert.Equal(t, VerifyAnchors, p)

	p, err = ParseAnchorPolicy("trust")
	require.NoError(t, err)
	assert.Equal(t, TrustAnchors, p)
	assert.Equal(t, "trust", p.String())

	_, err = ParseAnchorPolicy("skip")
	assert.Error(t, err)
}
