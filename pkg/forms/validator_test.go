package forms

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	bferrors "github.com/otherjamesbrown/backoffice/pkg/errors"
	"github.com/otherjamesbrown/backoffice/pkg/observability"
	"github.com/otherjamesbrown/backoffice/pkg/picker"
	"github.com/otherjamesbrown/backoffice/pkg/store/memory"
)

func ptr(f float64) *float64 { return &f }

func newValidator(t *testing.T, opts ...Option) *Validator {
	t.Helper()
	s := memory.New()
	s.AddUser(memory.User{ID: 1, Name: "Ana", Email: "ana@x.io"})
	s.AddUser(memory.User{ID: 2, Name: "Ann", Email: "ann@x.io"})
	s.AddPost(memory.Post{ID: 10, UserID: 1, Title: "Lost cat", Description: "Grey tabby"})
	return New(picker.NewRegistry(s, nil), opts...)
}

func fieldErrors(t *testing.T, err error) map[string]string {
	t.Helper()
	require.Error(t, err)
	assert.True(t, bferrors.IsValidation(err))
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	return verr.Fields
}

func TestPrivateMessage_Valid(t *testing.T) {
	v := newValidator(t)
	err := v.PrivateMessage(context.Background(), PrivateMessageInput{SenderID: 1, ReceiverID: 2, Description: "hello"})
	assert.NoError(t, err)
}

func TestPrivateMessage_SenderEqualsReceiverAlwaysFails(t *testing.T) {
	v := newValidator(t)
	ctx := context.Background()

	inputs := []PrivateMessageInput{
		{SenderID: 1, ReceiverID: 1, Description: "hello"},
		{SenderID: 1, ReceiverID: 1, Description: "", Seen: true},
		{SenderID: 2, ReceiverID: 2, Description: strings.Repeat("x", 600)},
		{SenderID: 99, ReceiverID: 99, Description: "ghosts"},
	}
	for _, in := range inputs {
		fields := fieldErrors(t, v.PrivateMessage(ctx, in))
		assert.Equal(t, "must differ from sender_id", fields["receiver_id"], "input %+v", in)
	}
}

func TestPrivateMessage_Rules(t *testing.T) {
	v := newValidator(t)
	ctx := context.Background()

	fields := fieldErrors(t, v.PrivateMessage(ctx, PrivateMessageInput{}))
	assert.Equal(t, "is required", fields["sender_id"])
	assert.Equal(t, "is required", fields["receiver_id"])
	assert.Equal(t, "is required", fields["description"])

	fields = fieldErrors(t, v.PrivateMessage(ctx, PrivateMessageInput{SenderID: 1, ReceiverID: 2, Description: strings.Repeat("x", 513)}))
	assert.Equal(t, "must be at most 512 characters", fields["description"])
	assert.Len(t, fields, 1)
}

func TestPrivateMessage_UnknownUsers(t *testing.T) {
	v := newValidator(t)

	fields := fieldErrors(t, v.PrivateMessage(context.Background(), PrivateMessageInput{SenderID: 1, ReceiverID: 999, Description: "hi"}))
	assert.Equal(t, map[string]string{"receiver_id": "does not exist"}, fields)
}

func TestComment(t *testing.T) {
	v := newValidator(t)
	ctx := context.Background()

	assert.NoError(t, v.Comment(ctx, CommentInput{UserID: 2, PostID: 10, Description: "Is it still lost?"}))

	fields := fieldErrors(t, v.Comment(ctx, CommentInput{UserID: 2, PostID: 11, Description: "ok"}))
	assert.Equal(t, "does not exist", fields["post_id"])
	assert.Equal(t, "must be at least 3 characters", fields["description"])

	fields = fieldErrors(t, v.Comment(ctx, CommentInput{UserID: 2, PostID: 10, Description: strings.Repeat("y", 257)}))
	assert.Equal(t, "must be at most 256 characters", fields["description"])
}

func TestPost(t *testing.T) {
	v := newValidator(t)
	ctx := context.Background()

	valid := PostInput{
		UserID:      1,
		Title:       "Lost dog",
		Description: "Brown, answers to Rex",
		Lat:         ptr(0),
		Lng:         ptr(0),
		Type:        PostTypeRequest,
		Reward:      ptr(0),
		Tags:        []string{"dog"},
	}
	assert.NoError(t, v.Post(ctx, valid))

	bad := valid
	bad.Title = "ab"
	bad.Lat = ptr(91)
	bad.Lng = ptr(-181)
	bad.Type = "LOST"
	bad.Reward = ptr(-1)
	fields := fieldErrors(t, v.Post(ctx, bad))
	assert.Equal(t, "must be at least 3 characters", fields["title"])
	assert.Equal(t, "must be less than or equal to 90", fields["lat"])
	assert.Equal(t, "must be greater than or equal to -180", fields["lng"])
	assert.Equal(t, "must be one of REQUEST, FOUND", fields["type"])
	assert.Equal(t, "must be greater than or equal to 0", fields["reward"])

	missing := valid
	missing.Lat = nil
	missing.Reward = nil
	missing.Type = ""
	fields = fieldErrors(t, v.Post(ctx, missing))
	assert.Equal(t, "is required", fields["lat"])
	assert.Equal(t, "is required", fields["reward"])
	assert.NotContains(t, fields, "type")
}

// failingChecker reports the store as down.
type failingChecker struct{}

func (failingChecker) Exists(ctx context.Context, t picker.EntityType, key int64) (bool, error) {
	return false, bferrors.ErrStoreUnavailable
}

func TestStoreFailureIsNotValidationFailure(t *testing.T) {
	v := New(failingChecker{})

	err := v.Comment(context.Background(), CommentInput{UserID: 1, PostID: 10, Description: "fine"})
	assert.True(t, bferrors.IsStoreUnavailable(err))
	assert.False(t, bferrors.IsValidation(err))
}

func TestNilCheckerSkipsExistence(t *testing.T) {
	v := New(nil)
	assert.NoError(t, v.Comment(context.Background(), CommentInput{UserID: 123, PostID: 456, Description: "fine"}))
}

func TestValidationMetrics(t *testing.T) {
	m := observability.NewPickerMetrics(prometheus.NewRegistry())
	v := newValidator(t, WithMetrics(m))
	ctx := context.Background()

	_ = v.PrivateMessage(ctx, PrivateMessageInput{SenderID: 1, ReceiverID: 1, Description: "x"})
	_ = v.PrivateMessage(ctx, PrivateMessageInput{SenderID: 1, ReceiverID: 2, Description: "x"})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ValidationsTotal.WithLabelValues(FormPrivateMessage, observability.ValidationFailed)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ValidationsTotal.WithLabelValues(FormPrivateMessage, observability.ValidationPassed)))
}

func TestValidationError_Message(t *testing.T) {
	err := &ValidationError{Form: FormComment, Fields: map[string]string{
		"post_id":     "does not exist",
		"description": "is required",
	}}
	assert.Equal(t, "comment: validation error: description is required; post_id does not exist", err.Error())
	assert.ErrorIs(t, err, bferrors.ErrValidation)
}

func TestToSnake(t *testing.T) {
	assert.Equal(t, "sender_id", toSnake("SenderID"))
	assert.Equal(t, "user_id", toSnake("UserID"))
	assert.Equal(t, "title", toSnake("Title"))
}
