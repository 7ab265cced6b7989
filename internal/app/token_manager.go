package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/escolab/boletim/internal/models"
)

const (
	timeFormat     = "2006-01-02 15:04:05"
	authKeyTpl     = "auth:%s:%s" // auth:${role}:${user}
	lookupKeyTpl   = "lookup:%d"  // lookup:${class_id}
	chatClassTpl   = "chat:%d"    // chat:${chatID}
	tokenPrefix    = "sk-blt-"
	tokenRandBytes = 12
)

type TokenManager struct {
	redis *redis.Client
}

func NewTokenManager(redis *redis.Client) *TokenManager {
	return &TokenManager{redis: redis}
}

func generateToken() (string, error) {
	randomBytes := make([]byte, tokenRandBytes)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	return tokenPrefix + hex.EncodeToString(randomBytes), nil
}

// FetchOrCreateToken returns the API token for one (role, user) pair,
// creating it on first request and bumping usage stats otherwise.
func (tm *TokenManager) FetchOrCreateToken(ctx context.Context, role, user string) (*models.TokenInfo, bool, error) {
	key := fmt.Sprintf(authKeyTpl, role, user)

	token, err := tm.redis.HGet(ctx, key, "token").Result()
	if err != nil && err != redis.Nil {
		return nil, false, fmt.Errorf("failed to check token: %w", err)
	}

	now := time.Now().UTC()
	isNewToken := false

	if err == redis.Nil {
		token, err = generateToken()
		if err != nil {
			return nil, false, fmt.Errorf("failed to generate token: %w", err)
		}

		pipe := tm.redis.Pipeline()
		pipe.HSet(ctx, key, map[string]interface{}{
			"token":                 token,
			"request_count":         1,
			"last_request_dttm_utc": now.Format(timeFormat),
			"created_dttm_utc":      now.Format(timeFormat),
		})

		if _, err := pipe.Exec(ctx); err != nil {
			return nil, false, fmt.Errorf("failed to create token: %w", err)
		}

		isNewToken = true
	} else {
		pipe := tm.redis.Pipeline()
		pipe.HIncrBy(ctx, key, "request_count", 1)
		pipe.HSet(ctx, key, "last_request_dttm_utc", now.Format(timeFormat))

		if _, err := pipe.Exec(ctx); err != nil {
			return nil, false, fmt.Errorf("failed to update token stats: %w", err)
		}
	}

	values, err := tm.redis.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to get token info: %w", err)
	}

	lastReqTime, _ := time.Parse(timeFormat, values["last_request_dttm_utc"])
	createdTime, _ := time.Parse(timeFormat, values["created_dttm_utc"])
	reqCount, _ := strconv.Atoi(values["request_count"])

	return &models.TokenInfo{
		Token:           values["token"],
		RequestCount:    reqCount,
		LastRequestTime: lastReqTime,
		CreatedTime:     createdTime,
	}, isNewToken, nil
}

func (tm *TokenManager) SaveStudentTelegramMapping(ctx context.Context, classID int64, tgUsername, studentID string) error {
	key := fmt.Sprintf(lookupKeyTpl, classID)
	return tm.redis.HSet(ctx, key, tgUsername, studentID).Err()
}

func (tm *TokenManager) FetchStudentIDByTelegram(ctx context.Context, classID int64, tgUsername string) (string, error) {
	key := fmt.Sprintf(lookupKeyTpl, classID)
	studentID, err := tm.redis.HGet(ctx, key, tgUsername).Result()
	if err == redis.Nil {
		return "", fmt.Errorf("no mapping found for telegram user %s in class %d", tgUsername, classID)
	}
	return studentID, err
}

func (tm *TokenManager) FetchClassMappings(ctx context.Context, classID int64) (map[string]string, error) {
	key := fmt.Sprintf(lookupKeyTpl, classID)
	return tm.redis.HGetAll(ctx, key).Result()
}

func (tm *TokenManager) AssociateChatWithClass(ctx context.Context, chatID int64, mapping *models.ChatClassMapping) error {
	key := fmt.Sprintf(chatClassTpl, chatID)
	return tm.redis.HSet(ctx, key, map[string]interface{}{
		"class_id":            mapping.ClassID,
		"name":                mapping.Name,
		"comment":             mapping.Comment,
		"associated_dttm_utc": mapping.AssociationTime.Format(timeFormat),
		"registered_by":       mapping.RegisteredBy,
	}).Err()
}

func (tm *TokenManager) FetchClassMappingByChatID(ctx context.Context, chatID int64) (*models.ChatClassMapping, error) {
	key := fmt.Sprintf(chatClassTpl, chatID)

	values, err := tm.redis.HGetAll(ctx, key).Result()
	if err == redis.Nil || len(values) == 0 {
		return nil, fmt.Errorf("no class mapping found for chat %d", chatID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch class mapping for chat %d", chatID)
	}

	associationTime, _ := time.Parse(timeFormat, values["associated_dttm_utc"])
	registeredBy, _ := strconv.ParseInt(values["registered_by"], 10, 64)
	classID, _ := strconv.ParseInt(values["class_id"], 10, 64)

	return &models.ChatClassMapping{
		ClassID:         classID,
		Name:            values["name"],
		Comment:         values["comment"],
		AssociationTime: associationTime,
		RegisteredBy:    registeredBy,
	}, nil
}

func (tm *TokenManager) Close() error {
	if tm.redis != nil {
		return tm.redis.Close()
	}
	return nil
}
