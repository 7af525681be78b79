package verify

import (
	"fmt"
	"strings"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-sns-webhook/core"
)

// Field order is part of the signing contract. Notifications sign a shorter
// set than confirmation envelopes; subscription and unsubscribe
// confirmations share one template.
var (
	notificationSigningFields = []string{
		core.FieldMessage,
		core.FieldMessageID,
		core.FieldTimestamp,
		core.FieldTopicARN,
		core.FieldType,
	}
	subscriptionSigningFields = []string{
		core.FieldMessage,
		core.FieldMessageID,
		core.FieldSubscribeURL,
		core.FieldTimestamp,
		core.FieldToken,
		core.FieldTopicARN,
		core.FieldType,
	}
)

// SigningFields returns the ordered field names signed for the given
// envelope type.
func SigningFields(messageType string) ([]string, error) {
	switch messageType {
	case core.TypeNotification:
		return notificationSigningFields, nil
	case core.TypeSubscriptionConfirmation, core.TypeUnsubscribeConfirmation:
		return subscriptionSigningFields, nil
	default:
		return nil, core.NewError(
			fmt.Sprintf("verify: no signing template for envelope type %q", messageType),
			goerrors.CategoryBadInput,
			core.ErrorBadInput,
		)
	}
}

// SigningString rebuilds the canonical text SNS signed for the payload. Each
// signed field contributes "Name\nvalue\n" in template order, so the result
// always ends with a newline. A present-but-empty field contributes an empty
// value line; an absent field is an error.
func SigningString(payload core.Payload) (string, error) {
	fields, err := SigningFields(payload.Type())
	if err != nil {
		return "", err
	}
	var builder strings.Builder
	for _, field := range fields {
		value, ok := payload.Field(field)
		if !ok {
			return "", core.NewError(
				fmt.Sprintf("verify: envelope field %s is required for signing", field),
				goerrors.CategoryBadInput,
				core.ErrorMissingField,
			)
		}
		builder.WriteString(field)
		builder.WriteByte('\n')
		builder.WriteString(value)
		builder.WriteByte('\n')
	}
	return builder.String(), nil
}
