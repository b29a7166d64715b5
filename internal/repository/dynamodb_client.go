package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"agri-advisor/internal/domain"
)

const (
	pkPrefixUser    = "USER#"
	pkPrefixSession = "SESSION#"
	skPrefixSession = "SESSION#"
	skPrefixEx      = "EX#"
	ttlDuration     = 90 * 24 * time.Hour
)

// dynamodbAPI is the minimal DynamoDB interface required by DynamoStore.
// Defined here for testability.
type dynamodbAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// DynamoStore keeps sessions in a single DynamoDB table. Each session has one
// meta item under the user's partition and one immutable item per exchange
// under the session's partition, so concurrent appends never collide.
type DynamoStore struct {
	api       dynamodbAPI
	tableName string
	now       func() time.Time
	newID     func() string
}

func NewDynamoStore(api dynamodbAPI, tableName string) (*DynamoStore, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &DynamoStore{
		api:       api,
		tableName: tableName,
		now:       func() time.Time { return time.Now().UTC() },
		newID:     uuid.NewString,
	}, nil
}

// userPK returns the partition holding a user's session meta items.
func userPK(userID string) string {
	return pkPrefixUser + userID
}

func sessionSK(sessionID string) string {
	return skPrefixSession + sessionID
}

// exchangePK returns the partition holding a session's exchanges.
func exchangePK(userID, sessionID string) string {
	return pkPrefixSession + userID + keySeparator + sessionID
}

// sortKeyLayout is fixed-width so byte order matches time order.
const sortKeyLayout = "2006-01-02T15:04:05.000000000Z07:00"

// exchangeSK sorts chronologically; the id suffix keeps same-instant writes distinct.
func exchangeSK(ts time.Time, id string) string {
	return skPrefixEx + ts.UTC().Format(sortKeyLayout) + "#" + id
}

func ttlValue(now time.Time) int64 {
	return now.Add(ttlDuration).Unix()
}

func (s *DynamoStore) metaKey(userID, sessionID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: userPK(userID)},
		"SK": &types.AttributeValueMemberS{Value: sessionSK(sessionID)},
	}
}

// GetOrCreate returns the stored session or creates an empty one. Two
// concurrent calls for the same key resolve to the same session.
func (s *DynamoStore) GetOrCreate(ctx context.Context, userID, sessionID string, language domain.Language) (domain.Session, error) {
	if err := validateKey(userID, sessionID); err != nil {
		return domain.Session{}, err
	}

	sess, found, err := s.load(ctx, userID, sessionID)
	if err != nil {
		return domain.Session{}, fmt.Errorf("repository: GetOrCreate: %w", err)
	}
	if found {
		return sess, nil
	}

	now := s.now()
	sess = domain.Session{
		ID:        sessionID,
		UserID:    userID,
		Language:  language,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err = s.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.tableName),
		Item:                metaItem(sess, now),
		ConditionExpression: aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
	})
	if err == nil {
		return sess, nil
	}

	var ccf *types.ConditionalCheckFailedException
	if !errors.As(err, &ccf) {
		return domain.Session{}, fmt.Errorf("repository: GetOrCreate put meta: %w", err)
	}
	// Lost the creation race; the winner's item is authoritative.
	sess, found, err = s.load(ctx, userID, sessionID)
	if err != nil {
		return domain.Session{}, fmt.Errorf("repository: GetOrCreate reload: %w", err)
	}
	if !found {
		return domain.Session{}, fmt.Errorf("repository: GetOrCreate reload: %w", ErrSessionNotFound)
	}
	return sess, nil
}

// Append stores one exchange and bumps the session meta in a single
// transaction. The returned session includes the new exchange; sess is not
// modified.
func (s *DynamoStore) Append(ctx context.Context, sess domain.Session, userMessage, botResponse string) (domain.Session, error) {
	if err := validateKey(sess.UserID, sess.ID); err != nil {
		return domain.Session{}, err
	}

	now := s.now()
	ex := domain.Exchange{Timestamp: now, UserMessage: userMessage, BotResponse: botResponse}
	ttl := strconv.FormatInt(ttlValue(now), 10)

	_, err := s.api.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{
				Put: &types.Put{
					TableName:           aws.String(s.tableName),
					Item:                exchangeItem(sess.UserID, sess.ID, s.newID(), ex, ttl),
					ConditionExpression: aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
				},
			},
			{
				Update: &types.Update{
					TableName:           aws.String(s.tableName),
					Key:                 s.metaKey(sess.UserID, sess.ID),
					ConditionExpression: aws.String("attribute_exists(PK)"),
					UpdateExpression:    aws.String("SET updatedAt = :updated, lastMessage = :last, #ttl = :ttl ADD turns :one"),
					ExpressionAttributeNames: map[string]string{
						"#ttl": "ttl",
					},
					ExpressionAttributeValues: map[string]types.AttributeValue{
						":updated": &types.AttributeValueMemberS{Value: formatTime(now)},
						":last":    &types.AttributeValueMemberS{Value: userMessage},
						":ttl":     &types.AttributeValueMemberN{Value: ttl},
						":one":     &types.AttributeValueMemberN{Value: "1"},
					},
				},
			},
		},
	})
	if err != nil {
		if metaConditionFailed(err) {
			return domain.Session{}, fmt.Errorf("repository: Append: %w", ErrSessionNotFound)
		}
		return domain.Session{}, fmt.Errorf("repository: Append: %w", err)
	}
	return sess.WithExchange(ex), nil
}

// ListSessions returns up to limit session summaries for userID, most
// recently updated first. limit <= 0 returns all.
func (s *DynamoStore) ListSessions(ctx context.Context, userID string, limit int) ([]domain.SessionSummary, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, errors.New("repository: user id must not be empty")
	}
	items, err := s.queryAll(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     &types.AttributeValueMemberS{Value: userPK(userID)},
			":prefix": &types.AttributeValueMemberS{Value: skPrefixSession},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("repository: ListSessions query: %w", err)
	}

	out := make([]domain.SessionSummary, 0, len(items))
	for _, item := range items {
		sum, err := itemToSummary(item)
		if err != nil {
			return nil, fmt.Errorf("repository: ListSessions unmarshal: %w", err)
		}
		out = append(out, sum)
	}
	return newestFirst(out, limit), nil
}

// load reads the meta item and, when present, every exchange in order.
func (s *DynamoStore) load(ctx context.Context, userID, sessionID string) (domain.Session, bool, error) {
	out, err := s.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tableName),
		Key:            s.metaKey(userID, sessionID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return domain.Session{}, false, fmt.Errorf("get meta: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return domain.Session{}, false, nil
	}
	sess, err := itemToSession(out.Item)
	if err != nil {
		return domain.Session{}, false, fmt.Errorf("decode meta: %w", err)
	}
	sess.UserID = userID

	items, err := s.queryAll(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     &types.AttributeValueMemberS{Value: exchangePK(userID, sessionID)},
			":prefix": &types.AttributeValueMemberS{Value: skPrefixEx},
		},
		ScanIndexForward: aws.Bool(true),
		ConsistentRead:   aws.Bool(true),
	})
	if err != nil {
		return domain.Session{}, false, fmt.Errorf("query exchanges: %w", err)
	}
	for _, item := range items {
		ex, err := itemToExchange(item)
		if err != nil {
			return domain.Session{}, false, fmt.Errorf("decode exchange: %w", err)
		}
		sess.Exchanges = append(sess.Exchanges, ex)
	}
	return sess, true, nil
}

// queryAll follows LastEvaluatedKey until the result set is exhausted.
func (s *DynamoStore) queryAll(ctx context.Context, in *dynamodb.QueryInput) ([]map[string]types.AttributeValue, error) {
	var items []map[string]types.AttributeValue
	for {
		out, err := s.api.Query(ctx, in)
		if err != nil {
			return nil, err
		}
		if out == nil {
			return items, nil
		}
		items = append(items, out.Items...)
		if len(out.LastEvaluatedKey) == 0 {
			return items, nil
		}
		next := *in
		next.ExclusiveStartKey = out.LastEvaluatedKey
		in = &next
	}
}

func metaConditionFailed(err error) bool {
	var tce *types.TransactionCanceledException
	if !errors.As(err, &tce) {
		return false
	}
	// Index 1 is the meta update in Append's transaction.
	if len(tce.CancellationReasons) < 2 {
		return false
	}
	code := aws.ToString(tce.CancellationReasons[1].Code)
	return code == "ConditionalCheckFailed"
}

func metaItem(sess domain.Session, now time.Time) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK":        &types.AttributeValueMemberS{Value: userPK(sess.UserID)},
		"SK":        &types.AttributeValueMemberS{Value: sessionSK(sess.ID)},
		"sessionId": &types.AttributeValueMemberS{Value: sess.ID},
		"userId":    &types.AttributeValueMemberS{Value: sess.UserID},
		"language":  &types.AttributeValueMemberS{Value: string(sess.Language)},
		"createdAt": &types.AttributeValueMemberS{Value: formatTime(sess.CreatedAt)},
		"updatedAt": &types.AttributeValueMemberS{Value: formatTime(sess.UpdatedAt)},
		"turns":     &types.AttributeValueMemberN{Value: "0"},
		"ttl":       &types.AttributeValueMemberN{Value: strconv.FormatInt(ttlValue(now), 10)},
	}
}

func exchangeItem(userID, sessionID, id string, ex domain.Exchange, ttl string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK":          &types.AttributeValueMemberS{Value: exchangePK(userID, sessionID)},
		"SK":          &types.AttributeValueMemberS{Value: exchangeSK(ex.Timestamp, id)},
		"timestamp":   &types.AttributeValueMemberS{Value: formatTime(ex.Timestamp)},
		"userMessage": &types.AttributeValueMemberS{Value: ex.UserMessage},
		"botResponse": &types.AttributeValueMemberS{Value: ex.BotResponse},
		"ttl":         &types.AttributeValueMemberN{Value: ttl},
	}
}

func itemToSession(item map[string]types.AttributeValue) (domain.Session, error) {
	id, err := strAttr(item, "sessionId")
	if err != nil {
		return domain.Session{}, err
	}
	lang, err := strAttr(item, "language")
	if err != nil {
		return domain.Session{}, err
	}
	created, err := timeAttr(item, "createdAt")
	if err != nil {
		return domain.Session{}, err
	}
	updated, err := timeAttr(item, "updatedAt")
	if err != nil {
		return domain.Session{}, err
	}
	return domain.Session{
		ID:        id,
		Language:  domain.Language(lang),
		CreatedAt: created,
		UpdatedAt: updated,
	}, nil
}

func itemToSummary(item map[string]types.AttributeValue) (domain.SessionSummary, error) {
	sess, err := itemToSession(item)
	if err != nil {
		return domain.SessionSummary{}, err
	}
	turns, err := intAttr(item, "turns")
	if err != nil {
		return domain.SessionSummary{}, err
	}
	last, _ := strAttr(item, "lastMessage") // absent until the first append
	return domain.SessionSummary{
		ID:           sess.ID,
		Language:     sess.Language,
		MessageCount: turns,
		LastMessage:  last,
		CreatedAt:    sess.CreatedAt,
		UpdatedAt:    sess.UpdatedAt,
	}, nil
}

func itemToExchange(item map[string]types.AttributeValue) (domain.Exchange, error) {
	ts, err := timeAttr(item, "timestamp")
	if err != nil {
		return domain.Exchange{}, err
	}
	userMessage, err := strAttr(item, "userMessage")
	if err != nil {
		return domain.Exchange{}, err
	}
	botResponse, err := strAttr(item, "botResponse")
	if err != nil {
		return domain.Exchange{}, err
	}
	return domain.Exchange{Timestamp: ts, UserMessage: userMessage, BotResponse: botResponse}, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func strAttr(item map[string]types.AttributeValue, key string) (string, error) {
	v, ok := item[key]
	if !ok {
		return "", fmt.Errorf("repository: missing attribute %q", key)
	}
	s, ok := v.(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("repository: attribute %q is not a string", key)
	}
	return s.Value, nil
}

func timeAttr(item map[string]types.AttributeValue, key string) (time.Time, error) {
	s, err := strAttr(item, key)
	if err != nil {
		return time.Time{}, err
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("repository: parse attribute %q: %w", key, err)
	}
	return t, nil
}

func intAttr(item map[string]types.AttributeValue, key string) (int, error) {
	v, ok := item[key]
	if !ok {
		return 0, fmt.Errorf("repository: missing attribute %q", key)
	}
	n, ok := v.(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("repository: attribute %q is not a number", key)
	}
	parsed, err := strconv.Atoi(n.Value)
	if err != nil {
		return 0, fmt.Errorf("repository: parse attribute %q: %w", key, err)
	}
	return parsed, nil
}

// newestFirst sorts by UpdatedAt descending and applies limit.
func newestFirst(sums []domain.SessionSummary, limit int) []domain.SessionSummary {
	sort.SliceStable(sums, func(i, j int) bool {
		return sums[i].UpdatedAt.After(sums[j].UpdatedAt)
	})
	if limit > 0 && len(sums) > limit {
		sums = sums[:limit]
	}
	return sums
}
