package dynamo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-otp-auth/internal/domain"
)

// otpItem is the stored shape of an OTP code. expires_at is the table's TTL
// attribute and must be Unix seconds.
type otpItem struct {
	domain.OTPCode
	ExpiresAtUnix int64 `dynamodbav:"expires_at"`
}

// OTPRepo manages one-time passcodes.
// PK: email, SK: otp_id (ULID, so sort order is creation order)
type OTPRepo struct {
	client        API
	tableName     string
	accountsTable string
}

func NewOTPRepo(client API, tableName, accountsTable string) *OTPRepo {
	return &OTPRepo{client: client, tableName: tableName, accountsTable: accountsTable}
}

func (r *OTPRepo) Create(ctx context.Context, o *domain.OTPCode) error {
	item, err := attributevalue.MarshalMap(otpItem{OTPCode: *o, ExpiresAtUnix: o.ExpiresAt.Unix()})
	if err != nil {
		return fmt.Errorf("marshal otp: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("put otp: %w", err)
	}
	return nil
}

// Latest returns the code with the greatest otp_id for email.
func (r *OTPRepo) Latest(ctx context.Context, email string) (*domain.OTPCode, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		KeyConditionExpression: aws.String("#e = :e"),
		ExpressionAttributeNames: map[string]string{
			"#e": attrEmail,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":e": &types.AttributeValueMemberS{Value: email},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(1),
		ConsistentRead:   aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("query latest otp: %w", err)
	}
	if len(out.Items) == 0 {
		return nil, fmt.Errorf("otp not found: %w", domain.ErrNotFound)
	}
	var it otpItem
	if err := attributevalue.UnmarshalMap(out.Items[0], &it); err != nil {
		return nil, fmt.Errorf("unmarshal otp: %w", err)
	}
	o := it.OTPCode
	o.ExpiresAt = time.Unix(it.ExpiresAtUnix, 0).UTC()
	return &o, nil
}

// Consume marks the account verified and deletes the code in a single
// transaction. The delete is conditioned on the code still existing, so a
// concurrent consumer gets domain.ErrNotFound. Cancellations for any other
// reason (conflict, throttling) are returned as plain errors.
func (r *OTPRepo) Consume(ctx context.Context, o *domain.OTPCode) error {
	ue, err := buildUpdateExpr(map[string]any{
		attrVerified:  true,
		attrUpdatedAt: time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Update: &types.Update{
				TableName:                 aws.String(r.accountsTable),
				Key:                       strKey(attrEmail, o.Email),
				UpdateExpression:          aws.String(ue.Expr),
				ExpressionAttributeNames:  ue.Names,
				ExpressionAttributeValues: ue.Values,
			}},
			{Delete: &types.Delete{
				TableName:           aws.String(r.tableName),
				Key:                 compositeKey(attrEmail, o.Email, attrOTPID, o.ID),
				ConditionExpression: aws.String("attribute_exists(" + attrOTPID + ")"),
			}},
		},
	})
	var tce *types.TransactionCanceledException
	if errors.As(err, &tce) && deleteConditionFailed(tce) {
		return fmt.Errorf("otp %s already consumed: %w", o.ID, domain.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("consume otp: %w", err)
	}
	return nil
}

// consumeDeleteIdx is the position of the Delete in Consume's TransactItems.
const consumeDeleteIdx = 1

// deleteConditionFailed reports whether the transaction was cancelled because
// the OTP item no longer existed.
func deleteConditionFailed(tce *types.TransactionCanceledException) bool {
	if len(tce.CancellationReasons) <= consumeDeleteIdx {
		return false
	}
	code := tce.CancellationReasons[consumeDeleteIdx].Code
	return code != nil && *code == "ConditionalCheckFailed"
}

// DeleteExpired is a no-op: the table's TTL on expires_at evicts stale codes.
func (r *OTPRepo) DeleteExpired(context.Context, time.Time) (int64, error) {
	return 0, nil
}
