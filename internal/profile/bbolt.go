package profile

import (
	"context"
	"encoding/json"

	"github.com/solace-labs/wallet-messenger/internal/kvstore"
)

const (
	profileBucket  = "profiles"
	nicknameBucket = "nicknames"
)

// BoltStore is the embedded directory backend used when DATABASE_URL is
// unset. Nickname uniqueness is enforced by bbolt's single active
// read-write transaction: the read-modify-write in SetNickname runs inside
// one UpdateMulti call, so a second caller's claim attempt can't interleave
// and race the first.
type BoltStore struct {
	db *kvstore.DB
}

// OpenBoltStore opens (or creates) the bbolt file at path.
func OpenBoltStore(path string) (*BoltStore, error) {
	db, err := kvstore.Open(path, profileBucket, nicknameBucket)
	if err != nil {
		return nil, err
	}
	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Close() error {
	if s == nil {
		return nil
	}
	return s.db.Close()
}

func (s *BoltStore) GetOwn(ctx context.Context, pubkey string) (Profile, error) {
	p, err := s.LookupByPubkey(ctx, pubkey)
	if err == ErrNotFound {
		return Profile{Pubkey: pubkey}, nil
	}
	return p, err
}

func (s *BoltStore) LookupByPubkey(ctx context.Context, pubkey string) (Profile, error) {
	var p Profile
	found, err := s.db.GetJSON(profileBucket, pubkey, &p)
	if err != nil {
		return Profile{}, err
	}
	if !found {
		return Profile{}, ErrNotFound
	}
	return p, nil
}

func (s *BoltStore) LookupByNickname(ctx context.Context, nickname string) (Profile, error) {
	var pubkey string
	found, err := s.db.GetJSON(nicknameBucket, nickname, &pubkey)
	if err != nil {
		return Profile{}, err
	}
	if !found {
		return Profile{}, ErrNotFound
	}
	return s.LookupByPubkey(ctx, pubkey)
}

func (s *BoltStore) SetNickname(ctx context.Context, pubkey, nickname string, now int64) (Profile, error) {
	var result Profile
	err := s.db.UpdateMulti([]string{profileBucket, nicknameBucket}, func(b map[string]kvstore.Bucket) error {
		profiles := b[profileBucket]
		nicknames := b[nicknameBucket]

		var current Profile
		current.Pubkey = pubkey
		if raw := profiles.Get(pubkey); raw != nil {
			if err := json.Unmarshal(raw, &current); err != nil {
				return err
			}
		}

		if current.Nickname == nickname {
			result = current
			return nil
		}

		if current.Nickname != "" {
			if remaining := CooldownRemaining(current.NicknameChangedAt, msToTime(now)); remaining > 0 {
				return ErrCooldownActive
			}
		}

		if raw := nicknames.Get(nickname); raw != nil {
			var owner string
			if err := json.Unmarshal(raw, &owner); err == nil && owner != pubkey {
				return ErrNicknameTaken
			}
		}

		if current.Nickname != "" {
			if err := nicknames.Delete(current.Nickname); err != nil {
				return err
			}
		}
		ownerData, err := json.Marshal(pubkey)
		if err != nil {
			return err
		}
		if err := nicknames.Put(nickname, ownerData); err != nil {
			return err
		}

		current.Nickname = nickname
		current.DisplayName = displayNameFor(nickname)
		current.NicknameChangedAt = now
		current.UpdatedAt = now
		if current.CreatedAt == 0 {
			current.CreatedAt = now
		}

		data, err := json.Marshal(current)
		if err != nil {
			return err
		}
		if err := profiles.Put(pubkey, data); err != nil {
			return err
		}
		result = current
		return nil
	})
	if err != nil {
		return Profile{}, err
	}
	return result, nil
}

func (s *BoltStore) SetEncryptionPublicKey(ctx context.Context, pubkey, publicKey string, now int64) (Profile, error) {
	var result Profile
	err := s.db.Update(profileBucket, func(b kvstore.Bucket) error {
		var current Profile
		current.Pubkey = pubkey
		if raw := b.Get(pubkey); raw != nil {
			if err := json.Unmarshal(raw, &current); err != nil {
				return err
			}
		}
		current.EncryptionPublicKey = publicKey
		current.UpdatedAt = now
		if current.CreatedAt == 0 {
			current.CreatedAt = now
		}
		data, err := json.Marshal(current)
		if err != nil {
			return err
		}
		result = current
		return b.Put(pubkey, data)
	})
	if err != nil {
		return Profile{}, err
	}
	return result, nil
}
