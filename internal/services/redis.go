package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"arcade-wager-backend/internal/config"
	"arcade-wager-backend/internal/models"

	"github.com/redis/go-redis/v9"
)

// RedisService holds API sessions, rate limits and a read mirror of the bet
// caches for other processes. The chain stays the source of truth.
type RedisService struct {
	client *redis.Client
}

// EventRecord is one entry of the event journal.
type EventRecord struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
	At   time.Time       `json:"at"`
}

func NewRedisService(ctx context.Context, cfg *config.Config) (*RedisService, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPass,
		DB:       cfg.RedisDB,
	})

	if _, err := client.Ping(ctx).Result(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisService{client: client}, nil
}

func (s *RedisService) Close() error {
	return s.client.Close()
}

func (s *RedisService) StoreSession(ctx context.Context, session *models.Session, expiry time.Duration) error {
	key := fmt.Sprintf(KeySession, session.SessionID)

	data, err := json.Marshal(session)
	if err != nil {
		return err
	}

	return s.client.Set(ctx, key, data, expiry).Err()
}

// GetSession loads a session and refreshes its LastAccessed and TTL.
func (s *RedisService) GetSession(ctx context.Context, sessionID string) (*models.Session, error) {
	key := fmt.Sprintf(KeySession, sessionID)

	data, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("session not found: %s", sessionID)
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	var session models.Session
	if err := json.Unmarshal([]byte(data), &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}

	session.LastAccessed = time.Now()
	if updated, err := json.Marshal(session); err == nil {
		s.client.Set(ctx, key, updated, TTLSession)
	}

	return &session, nil
}

func (s *RedisService) DeleteSession(ctx context.Context, sessionID string) error {
	return s.client.Del(ctx, fmt.Sprintf(KeySession, sessionID)).Err()
}

// ReplaceActiveBets swaps the mirrored active set in one MULTI block.
func (s *RedisService) ReplaceActiveBets(ctx context.Context, bets []*models.Bet) error {
	return s.replaceBetHash(ctx, KeyActiveBets, bets)
}

func (s *RedisService) SaveActiveBet(ctx context.Context, bet *models.Bet) error {
	return s.saveBetField(ctx, KeyActiveBets, bet)
}

func (s *RedisService) RemoveActiveBet(ctx context.Context, id string) error {
	if err := s.client.HDel(ctx, KeyActiveBets, id).Err(); err != nil {
		return fmt.Errorf("failed to remove active bet %s: %w", id, err)
	}
	return nil
}

func (s *RedisService) GetActiveBets(ctx context.Context) ([]*models.Bet, error) {
	return s.loadBetHash(ctx, KeyActiveBets)
}

func (s *RedisService) ReplaceUserBets(ctx context.Context, address string, bets []*models.Bet) error {
	return s.replaceBetHash(ctx, userBetsKey(address), bets)
}

func (s *RedisService) SaveUserBet(ctx context.Context, address string, bet *models.Bet) error {
	return s.saveBetField(ctx, userBetsKey(address), bet)
}

// CancelUserBet marks a mirrored user bet Cancelled. Unknown ids are ignored.
func (s *RedisService) CancelUserBet(ctx context.Context, address, id string) error {
	key := userBetsKey(address)
	data, err := s.client.HGet(ctx, key, id).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read user bet %s: %w", id, err)
	}

	var bet models.Bet
	if err := json.Unmarshal([]byte(data), &bet); err != nil {
		return fmt.Errorf("failed to unmarshal bet %s: %w", id, err)
	}
	bet.Status = models.BetStatusCancelled
	return s.saveBetField(ctx, key, &bet)
}

func (s *RedisService) GetUserBets(ctx context.Context, address string) ([]*models.Bet, error) {
	return s.loadBetHash(ctx, userBetsKey(address))
}

// CompleteBet stores the final bet and adds it to the completed history,
// keeping the newest MaxCompletedBets.
func (s *RedisService) CompleteBet(ctx context.Context, bet *models.Bet, at time.Time) error {
	data, err := json.Marshal(bet)
	if err != nil {
		return fmt.Errorf("failed to marshal bet: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, fmt.Sprintf(KeyBet, bet.ID), data, TTLCompletedBet)
	pipe.HDel(ctx, KeyActiveBets, bet.ID)
	pipe.ZAdd(ctx, KeyCompletedBets, redis.Z{
		Score:  float64(at.Unix()),
		Member: bet.ID,
	})
	pipe.ZRemRangeByRank(ctx, KeyCompletedBets, 0, -(MaxCompletedBets + 1))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to record completed bet %s: %w", bet.ID, err)
	}
	return nil
}

func (s *RedisService) GetCompletedBets(ctx context.Context, limit int64) ([]*models.Bet, error) {
	if limit <= 0 || limit > MaxCompletedBets {
		limit = 50
	}

	ids, err := s.client.ZRevRange(ctx, KeyCompletedBets, 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get completed bet ids: %w", err)
	}
	if len(ids) == 0 {
		return []*models.Bet{}, nil
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.StringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.Get(ctx, fmt.Sprintf(KeyBet, id))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("pipeline execution failed: %w", err)
	}

	bets := make([]*models.Bet, 0, len(ids))
	for _, cmd := range cmds {
		data, err := cmd.Result()
		if err != nil {
			continue
		}
		var bet models.Bet
		if err := json.Unmarshal([]byte(data), &bet); err != nil {
			continue
		}
		bets = append(bets, &bet)
	}
	return bets, nil
}

// RecordEvent prepends ev to the journal, keeping the newest
// MaxJournalEvents entries.
func (s *RedisService) RecordEvent(ctx context.Context, ev Event, at time.Time) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", ev.Kind(), err)
	}
	data, err := json.Marshal(EventRecord{Kind: ev.Kind().String(), Data: payload, At: at})
	if err != nil {
		return err
	}

	pipe := s.client.Pipeline()
	pipe.LPush(ctx, KeyEventJournal, data)
	pipe.LTrim(ctx, KeyEventJournal, 0, MaxJournalEvents-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to journal %s event: %w", ev.Kind(), err)
	}
	return nil
}

func (s *RedisService) RecentEvents(ctx context.Context, limit int64) ([]EventRecord, error) {
	if limit <= 0 || limit > MaxJournalEvents {
		limit = 20
	}

	entries, err := s.client.LRange(ctx, KeyEventJournal, 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read event journal: %w", err)
	}

	records := make([]EventRecord, 0, len(entries))
	for _, entry := range entries {
		var rec EventRecord
		if err := json.Unmarshal([]byte(entry), &rec); err != nil {
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

var rateLimitScript = redis.NewScript(`
	local count = redis.call("INCR", KEYS[1])
	if count == 1 then
		redis.call("PEXPIRE", KEYS[1], ARGV[1])
	end
	return count
`)

// CheckRateLimit counts one call of action for the session and reports
// whether it stays within limit calls per window.
func (s *RedisService) CheckRateLimit(ctx context.Context, sessionID, action string, limit int, window time.Duration) (bool, error) {
	key := fmt.Sprintf(KeyRateLimit, sessionID, action)

	count, err := rateLimitScript.Run(ctx, s.client, []string{key}, window.Milliseconds()).Int64()
	if err != nil {
		return false, fmt.Errorf("failed to check rate limit: %w", err)
	}

	return count <= int64(limit), nil
}

func (s *RedisService) ClearRateLimit(ctx context.Context, sessionID, action string) error {
	return s.client.Del(ctx, fmt.Sprintf(KeyRateLimit, sessionID, action)).Err()
}

func (s *RedisService) replaceBetHash(ctx context.Context, key string, bets []*models.Bet) error {
	fields := make(map[string]interface{}, len(bets))
	for _, bet := range bets {
		data, err := json.Marshal(bet)
		if err != nil {
			return fmt.Errorf("failed to marshal bet %s: %w", bet.ID, err)
		}
		fields[bet.ID] = data
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, key)
	if len(fields) > 0 {
		pipe.HSet(ctx, key, fields)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to replace %s: %w", key, err)
	}
	return nil
}

func (s *RedisService) saveBetField(ctx context.Context, key string, bet *models.Bet) error {
	data, err := json.Marshal(bet)
	if err != nil {
		return fmt.Errorf("failed to marshal bet %s: %w", bet.ID, err)
	}
	if err := s.client.HSet(ctx, key, bet.ID, data).Err(); err != nil {
		return fmt.Errorf("failed to save bet %s: %w", bet.ID, err)
	}
	return nil
}

func (s *RedisService) loadBetHash(ctx context.Context, key string) ([]*models.Bet, error) {
	entries, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}

	bets := make([]*models.Bet, 0, len(entries))
	for id, data := range entries {
		var bet models.Bet
		if err := json.Unmarshal([]byte(data), &bet); err != nil {
			return nil, fmt.Errorf("failed to unmarshal bet %s: %w", id, err)
		}
		bets = append(bets, &bet)
	}
	return bets, nil
}

func userBetsKey(address string) string {
	return fmt.Sprintf(KeyUserBets, strings.ToLower(address))
}
