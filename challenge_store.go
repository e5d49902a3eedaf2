package onboarding

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	challengeKeyPrefix      = "opc"
	challengeRecordVersion1 = 1
)

var (
	errChallengeNotFound = errors.New("otp challenge record not found")
	errChallengeExpired  = errors.New("otp challenge record expired")
	errChallengeExceeded = errors.New("otp challenge attempts exceeded")
	errChallengeBackend  = errors.New("otp challenge backend unavailable")
)

// otpChallengeRecord tracks one live phone challenge. The record is the
// single-use token: a successful confirmation deletes it, and a handle
// whose record is gone can never be confirmed again.
type otpChallengeRecord struct {
	VerificationID string
	PhoneNumber    string
	ExpiresAt      int64
	Attempts       uint16
}

type otpChallengeStore struct {
	redis *redis.Client
}

func newOTPChallengeStore(redisClient *redis.Client) *otpChallengeStore {
	return &otpChallengeStore{redis: redisClient}
}

func (s *otpChallengeStore) key(challengeID string) string {
	return challengeKeyPrefix + ":" + challengeID
}

func (s *otpChallengeStore) Save(
	ctx context.Context,
	challengeID string,
	record *otpChallengeRecord,
	ttl time.Duration,
) error {
	encoded, err := encodeOTPChallengeRecord(record)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, s.key(challengeID), encoded, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", errChallengeBackend, err)
	}
	return nil
}

func (s *otpChallengeStore) Get(ctx context.Context, challengeID string) (*otpChallengeRecord, error) {
	data, err := s.redis.Get(ctx, s.key(challengeID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, errChallengeNotFound
		}
		return nil, fmt.Errorf("%w: %v", errChallengeBackend, err)
	}

	record, err := decodeOTPChallengeRecord(data)
	if err != nil {
		return nil, err
	}
	if time.Now().Unix() > record.ExpiresAt {
		_, _ = s.redis.Del(ctx, s.key(challengeID)).Result()
		return nil, errChallengeExpired
	}
	return record, nil
}

// Consume deletes the record, returning whether this caller performed
// the deletion. Exactly one concurrent Consume observes true.
func (s *otpChallengeStore) Consume(ctx context.Context, challengeID string) (bool, error) {
	n, err := s.redis.Del(ctx, s.key(challengeID)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", errChallengeBackend, err)
	}
	return n > 0, nil
}

// RecordFailure increments the attempt counter under WATCH, deleting the
// record once maxAttempts is reached. It reports whether the challenge
// is now exhausted.
func (s *otpChallengeStore) RecordFailure(
	ctx context.Context,
	challengeID string,
	maxAttempts int,
) (bool, error) {
	const maxRetries = 4
	key := s.key(challengeID)

	for i := 0; i < maxRetries; i++ {
		var exceeded bool
		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				return err
			}

			record, err := decodeOTPChallengeRecord(data)
			if err != nil {
				return err
			}
			if time.Now().Unix() > record.ExpiresAt {
				_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.Del(ctx, key)
					return nil
				})
				if err != nil {
					return err
				}
				return errChallengeExpired
			}

			record.Attempts++
			if int(record.Attempts) >= maxAttempts {
				exceeded = true
				_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.Del(ctx, key)
					return nil
				})
				return err
			}

			ttl := time.Until(time.Unix(record.ExpiresAt, 0))
			if ttl <= 0 {
				_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.Del(ctx, key)
					return nil
				})
				if err != nil {
					return err
				}
				return errChallengeExpired
			}

			updated, err := encodeOTPChallengeRecord(record)
			if err != nil {
				return err
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, updated, ttl)
				return nil
			})
			return err
		}, key)

		if err == redis.TxFailedErr {
			continue
		}
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return false, errChallengeNotFound
			}
			if errors.Is(err, errChallengeExpired) {
				return false, err
			}
			return false, fmt.Errorf("%w: %v", errChallengeBackend, err)
		}
		return exceeded, nil
	}

	// Every attempt lost the WATCH race. The record is still live, so the
	// caller must see a retryable backend error, not a consumed challenge.
	return false, fmt.Errorf("%w: optimistic retries exhausted", errChallengeBackend)
}

func encodeOTPChallengeRecord(record *otpChallengeRecord) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(challengeRecordVersion1)

	if err := binary.Write(&buf, binary.BigEndian, record.Attempts); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, record.ExpiresAt); err != nil {
		return nil, err
	}

	if len(record.VerificationID) > 65535 || len(record.PhoneNumber) > 65535 {
		return nil, errors.New("otp challenge field length exceeded")
	}
	if err := binary.Write(&buf, binary.BigEndian, uint16(len(record.VerificationID))); err != nil {
		return nil, err
	}
	buf.WriteString(record.VerificationID)
	if err := binary.Write(&buf, binary.BigEndian, uint16(len(record.PhoneNumber))); err != nil {
		return nil, err
	}
	buf.WriteString(record.PhoneNumber)

	return buf.Bytes(), nil
}

func decodeOTPChallengeRecord(data []byte) (*otpChallengeRecord, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != challengeRecordVersion1 {
		return nil, errors.New("invalid otp challenge record version")
	}

	record := &otpChallengeRecord{}
	if err := binary.Read(reader, binary.BigEndian, &record.Attempts); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &record.ExpiresAt); err != nil {
		return nil, err
	}

	var idLen uint16
	if err := binary.Read(reader, binary.BigEndian, &idLen); err != nil {
		return nil, err
	}
	id := make([]byte, idLen)
	if _, err := io.ReadFull(reader, id); err != nil {
		return nil, err
	}
	record.VerificationID = string(id)

	var phoneLen uint16
	if err := binary.Read(reader, binary.BigEndian, &phoneLen); err != nil {
		return nil, err
	}
	phone := make([]byte, phoneLen)
	if _, err := io.ReadFull(reader, phone); err != nil {
		return nil, err
	}
	record.PhoneNumber = string(phone)

	return record, nil
}
