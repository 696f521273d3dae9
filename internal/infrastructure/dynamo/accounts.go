package dynamo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/go-otp-auth/internal/domain"
)

// AccountRepo provides typed DynamoDB operations for the accounts table.
// PK: email
type AccountRepo struct {
	client    API
	tableName string
}

func NewAccountRepo(client API, tableName string) *AccountRepo {
	return &AccountRepo{client: client, tableName: tableName}
}

// Create puts the account only when no item with the same email exists.
func (r *AccountRepo) Create(ctx context.Context, a *domain.Account) error {
	item, err := attributevalue.MarshalMap(a)
	if err != nil {
		return fmt.Errorf("marshal account: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(" + attrEmail + ")"),
	})
	if isConditionFailed(err) {
		return fmt.Errorf("account %s exists: %w", a.Email, domain.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("put account: %w", err)
	}
	return nil
}

func (r *AccountRepo) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            strKey(attrEmail, email),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	if out.Item == nil {
		return nil, fmt.Errorf("account not found: %w", domain.ErrNotFound)
	}
	var a domain.Account
	if err := attributevalue.UnmarshalMap(out.Item, &a); err != nil {
		return nil, fmt.Errorf("unmarshal account: %w", err)
	}
	return &a, nil
}
