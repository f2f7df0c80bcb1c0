// Package forms validates the submissions that carry entity references:
// private messages, comments and posts. Structural rules are struct tags;
// referenced keys are checked against the store at submission time.
package forms

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/otherjamesbrown/backoffice/pkg/logging"
	"github.com/otherjamesbrown/backoffice/pkg/observability"
	"github.com/otherjamesbrown/backoffice/pkg/picker"
)

// Form names.
const (
	FormPrivateMessage = "private_message"
	FormComment        = "comment"
	FormPost           = "post"
)

// ExistenceChecker confirms a referenced key still exists. *picker.Registry
// implements it.
type ExistenceChecker interface {
	Exists(ctx context.Context, t picker.EntityType, key int64) (bool, error)
}

// Validator validates forms. It is safe for concurrent use.
type Validator struct {
	validate *validator.Validate
	exists   ExistenceChecker
	logger   logging.Logger
	metrics  *observability.PickerMetrics
	tracer   *observability.Tracer
}

// Option configures a Validator.
type Option func(*Validator)

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option {
	return func(v *Validator) { v.logger = l }
}

// WithMetrics sets the metrics.
func WithMetrics(m *observability.PickerMetrics) Option {
	return func(v *Validator) { v.metrics = m }
}

// WithTracer sets the tracer.
func WithTracer(t *observability.Tracer) Option {
	return func(v *Validator) { v.tracer = t }
}

// New creates a validator. exists may be nil, in which case referenced keys
// are not checked against the store.
func New(exists ExistenceChecker, opts ...Option) *Validator {
	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	v := &Validator{
		validate: validate,
		exists:   exists,
		logger:   logging.NewNopLogger(),
		tracer:   observability.NewTracer(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

type reference struct {
	field  string
	entity picker.EntityType
	key    int64
}

// PrivateMessage validates a private message. Sender and receiver must be
// distinct existing users.
func (v *Validator) PrivateMessage(ctx context.Context, in PrivateMessageInput) error {
	return v.run(ctx, FormPrivateMessage, in, []reference{
		{"sender_id", picker.EntityUser, in.SenderID},
		{"receiver_id", picker.EntityUser, in.ReceiverID},
	})
}

// Comment validates a comment.
func (v *Validator) Comment(ctx context.Context, in CommentInput) error {
	return v.run(ctx, FormComment, in, []reference{
		{"user_id", picker.EntityUser, in.UserID},
		{"post_id", picker.EntityPost, in.PostID},
	})
}

// Post validates a post.
func (v *Validator) Post(ctx context.Context, in PostInput) error {
	return v.run(ctx, FormPost, in, []reference{
		{"user_id", picker.EntityUser, in.UserID},
	})
}

func (v *Validator) run(ctx context.Context, form string, in any, refs []reference) error {
	ctx, span := v.tracer.StartValidateSpan(ctx, form)
	defer span.End()
	helper := observability.NewSpanHelper(span)

	verr := &ValidationError{Form: form, Fields: map[string]string{}}

	if err := v.validate.StructCtx(ctx, in); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return fmt.Errorf("validate %s: %w", form, err)
		}
		for _, fe := range fieldErrs {
			verr.add(fe.Field(), message(fe))
		}
	}

	if v.exists != nil {
		for _, ref := range refs {
			if verr.Has(ref.field) {
				continue
			}
			ok, err := v.exists.Exists(ctx, ref.entity, ref.key)
			if err != nil {
				helper.SetError(err, "store_unavailable", true)
				return fmt.Errorf("validate %s: %w", form, err)
			}
			if !ok {
				verr.add(ref.field, "does not exist")
			}
		}
	}

	if len(verr.Fields) > 0 {
		v.metrics.RecordValidation(form, observability.ValidationFailed)
		helper.SetError(verr, "validation_failed", false)
		v.logger.WithContext(ctx).Debug("Form rejected",
			logging.F("form", form),
			logging.F("fields", len(verr.Fields)),
		)
		return verr
	}

	v.metrics.RecordValidation(form, observability.ValidationPassed)
	helper.SetSuccess()
	return nil
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "nefield":
		return "must differ from " + toSnake(fe.Param())
	case "min":
		return "must be at least " + fe.Param() + " characters"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "gte":
		return "must be greater than or equal to " + fe.Param()
	case "lte":
		return "must be less than or equal to " + fe.Param()
	case "oneof":
		return "must be one of " + strings.ReplaceAll(fe.Param(), " ", ", ")
	default:
		return "is invalid"
	}
}

// toSnake turns a Go field name such as SenderID into sender_id.
func toSnake(s string) string {
	var b strings.Builder
	runes := []rune(s)
	for i, r := range runes {
		upper := r >= 'A' && r <= 'Z'
		if upper && i > 0 && !(runes[i-1] >= 'A' && runes[i-1] <= 'Z') {
			b.WriteByte('_')
		}
		if upper {
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}
