package cert

import (
	"errors"
	"fmt"
)

// OrderBundle 将无序证书包整理为叶子在前的链
// 叶子是唯一一张不为包内其他证书签发的证书；随后沿 issuer -> subject 向上追溯，
// 直到签发者不在包内或遇到自签名证书
func OrderBundle(bundle []*Certificate) ([]*Certificate, error) {
	if len(bundle) == 0 {
		return nil, untrustedError(errors.New("certificate bundle is empty"))
	}

	bySubject := make(map[string]*Certificate, len(bundle))
	for i, c := range bundle {
		if c == nil {
			return nil, serializationError(errors.New("certificate is nil")).at(i)
		}
		if _, dup := bySubject[c.Subject]; dup {
			return nil, untrustedError(fmt.Errorf("duplicate subject %q in bundle", c.Subject))
		}
		bySubject[c.Subject] = c
	}

	// 作为他人签发者的 subject
	issuers := make(map[string]bool, len(bundle))
	for _, c := range bundle {
		if !c.IsSelfSigned() {
			issuers[c.Issuer] = true
		}
	}

	var leaf *Certificate
	for _, c := range bundle {
		if issuers[c.Subject] {
			continue
		}
		if leaf != nil {
			return nil, untrustedError(fmt.Errorf("bundle has more than one leaf (%q, %q)", leaf.Subject, c.Subject))
		}
		leaf = c
	}
	if leaf == nil {
		return nil, untrustedError(errors.New("bundle has no leaf certificate"))
	}

	chain := []*Certificate{leaf}
	visited := map[string]bool{leaf.Subject: true}
	cur := leaf
	for !cur.IsSelfSigned() {
		next, ok := bySubject[cur.Issuer]
		if !ok {
			break
		}
		if visited[next.Subject] {
			return nil, untrustedError(fmt.Errorf("issuer cycle at %q", next.Subject))
		}
		visited[next.Subject] = true
		chain = append(chain, next)
		cur = next
	}

	if len(chain) != len(bundle) {
		return nil, untrustedError(fmt.Errorf("%d certificates in bundle are not part of the chain", len(bundle)-len(chain)))
	}
	return chain, nil
}
