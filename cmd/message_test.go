package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	bferrors "github.com/otherjamesbrown/backoffice/pkg/errors"
	"github.com/otherjamesbrown/backoffice/pkg/forms"
)

func newMessageTestDeps(t *testing.T) *MessageCommandDeps {
	t.Helper()
	t.Cleanup(func() { msgOutput = "" })
	return &MessageCommandDeps{
		Config:      memoryConfig(t),
		OpenBackend: openMemory,
	}
}

func TestMessageCommand_Structure(t *testing.T) {
	cmd := NewMessageCommand(newMessageTestDeps(t))
	assert.Equal(t, "message", cmd.Use)

	validate, _, err := cmd.Find([]string{"validate"})
	require.NoError(t, err)
	for _, name := range []string{"sender", "receiver", "description", "seen", "output"} {
		assert.NotNil(t, validate.Flags().Lookup(name), "missing --%s", name)
	}
}

func TestMessageValidate_Valid(t *testing.T) {
	var out bytes.Buffer
	in := forms.PrivateMessageInput{SenderID: 1, ReceiverID: 2, Description: "hello"}

	err := runMessageValidate(context.Background(), newMessageTestDeps(t), &out, in)
	require.NoError(t, err)
	assert.Equal(t, "Valid.\n", out.String())
}

func TestMessageValidate_SameSenderAndReceiver(t *testing.T) {
	var out bytes.Buffer
	in := forms.PrivateMessageInput{SenderID: 1, ReceiverID: 1, Description: "hello"}

	err := runMessageValidate(context.Background(), newMessageTestDeps(t), &out, in)
	require.Error(t, err)
	assert.True(t, bferrors.IsValidation(err))
	assert.Contains(t, out.String(), "receiver_id")
	assert.Contains(t, out.String(), "must differ from sender_id")
}

func TestMessageValidate_JSONReport(t *testing.T) {
	deps := newMessageTestDeps(t)
	msgOutput = "json"
	var out bytes.Buffer
	in := forms.PrivateMessageInput{SenderID: 1, ReceiverID: 42, Description: "hello"}

	err := runMessageValidate(context.Background(), deps, &out, in)
	require.Error(t, err)

	var report ValidationReport
	require.NoError(t, json.Unmarshal(out.Bytes(), &report))
	assert.False(t, report.Valid)
	assert.Equal(t, forms.FormPrivateMessage, report.Form)
	assert.Equal(t, map[string]string{"receiver_id": "does not exist"}, report.Fields)
}
