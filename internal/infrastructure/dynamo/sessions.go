package dynamo

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/go-otp-auth/internal/domain"
)

type sessionItem struct {
	domain.Session
	ExpiresAtUnix int64 `dynamodbav:"expires_at"`
}

// SessionRepo provides typed DynamoDB operations for the sessions table.
type SessionRepo struct {
	client    API
	tableName string
}

func NewSessionRepo(client API, tableName string) *SessionRepo {
	return &SessionRepo{client: client, tableName: tableName}
}

func (r *SessionRepo) Put(ctx context.Context, s *domain.Session) error {
	item, err := attributevalue.MarshalMap(sessionItem{Session: *s, ExpiresAtUnix: s.ExpiresAt.Unix()})
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("put session: %w", err)
	}
	return nil
}

func (r *SessionRepo) Get(ctx context.Context, sessionID string) (*domain.Session, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            strKey(attrSessionID, sessionID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	if out.Item == nil {
		return nil, fmt.Errorf("session not found: %w", domain.ErrNotFound)
	}
	var it sessionItem
	if err := attributevalue.UnmarshalMap(out.Item, &it); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	s := it.Session
	s.ExpiresAt = time.Unix(it.ExpiresAtUnix, 0).UTC()
	return &s, nil
}

// Revoke stamps revoked_at once. Revoking a missing or already revoked
// session is a no-op.
func (r *SessionRepo) Revoke(ctx context.Context, sessionID string, at time.Time) error {
	ue, err := buildUpdateExpr(map[string]any{attrRevokedAt: at})
	if err != nil {
		return err
	}
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey(attrSessionID, sessionID),
		UpdateExpression:          aws.String(ue.Expr),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
		ConditionExpression:       aws.String("attribute_exists(" + attrSessionID + ") AND attribute_not_exists(" + attrRevokedAt + ")"),
	})
	if err != nil && !isConditionFailed(err) {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

// DeleteExpired is a no-op: the table's TTL on expires_at evicts stale sessions.
func (r *SessionRepo) DeleteExpired(context.Context, time.Time) (int64, error) {
	return 0, nil
}
