package pets

import (
	"context"
	"strings"
)

// authorizeOwner verifica que uid sea el vendedor del anuncio.
func (s *Service) authorizeOwner(ctx context.Context, petID, uid string) (Pet, error) {
	if strings.TrimSpace(uid) == "" {
		return Pet{}, ErrUnauthenticated
	}
	p, err := s.repo.Get(ctx, petID)
	if err != nil {
		return Pet{}, err
	}
	if p.SellerID != uid {
		return Pet{}, ErrForbidden
	}
	return p, nil
}
