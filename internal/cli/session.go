package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/noah-isme/attendance-api/internal/localcache"
)

const sessionKey = "session"

type session struct {
	Token string `json:"token"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// sessionStore keeps the access token outside the API cache.
type sessionStore struct {
	backend localcache.Backend
}

func (s *sessionStore) Load(ctx context.Context) (*session, error) {
	raw, err := s.backend.Read(ctx, sessionKey)
	if errors.Is(err, localcache.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var sess session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &sess, nil
}

func (s *sessionStore) Save(ctx context.Context, sess session) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	return s.backend.Write(ctx, sessionKey, raw)
}

func (s *sessionStore) Clear(ctx context.Context) error {
	return s.backend.Delete(ctx, sessionKey)
}
