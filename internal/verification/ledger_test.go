package verification

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parsikala_back_end/internal/apperr"
	"parsikala_back_end/internal/models"
	"parsikala_back_end/internal/store"
)

type fakeSMS struct {
	sent     []string // codes envoyés dans l'ordre
	lastKind string
	fail     error
}

func (f *fakeSMS) SendVerificationCode(ctx context.Context, phone, code string) error {
	if f.fail != nil {
		return f.fail
	}
	f.sent = append(f.sent, code)
	f.lastKind = "registration"
	return nil
}

func (f *fakeSMS) SendPasswordResetCode(ctx context.Context, phone, code string) error {
	if f.fail != nil {
		return f.fail
	}
	f.sent = append(f.sent, code)
	f.lastKind = "password_reset"
	return nil
}

func newTestLedger(t *testing.T) (*Ledger, *store.MemoryPendingStore, *fakeSMS) {
	t.Helper()
	pending := store.NewMemoryPendingStore()
	sms := &fakeSMS{}
	return NewLedger(pending, sms), pending, sms
}

const phone = "09123456789"

func TestIssueCodeSendsSixDigits(t *testing.T) {
	ledger, pending, sms := newTestLedger(t)
	ctx := context.Background()

	err := ledger.IssueCode(ctx, phone, models.PurposeRegistration, models.RegistrationPayload{Name: "Sara"})
	require.NoError(t, err)
	require.Len(t, sms.sent, 1)
	assert.Regexp(t, regexp.MustCompile(`^\d{6}$`), sms.sent[0])
	assert.Equal(t, "registration", sms.lastKind)

	record, err := pending.Get(ctx, phone, models.PurposeRegistration)
	require.NoError(t, err)
	assert.Equal(t, sms.sent[0], record.Code)
	assert.Equal(t, "Sara", record.Payload.Name)
	assert.Equal(t, 0, record.Attempts)
}

func TestIssueCodeUsesResetTemplateForPasswordReset(t *testing.T) {
	ledger, _, sms := newTestLedger(t)

	require.NoError(t, ledger.IssueCode(context.Background(), phone, models.PurposePasswordReset, models.RegistrationPayload{}))
	assert.Equal(t, "password_reset", sms.lastKind)
}

func TestIssueCodeDeletesRecordWhenSMSFails(t *testing.T) {
	ledger, pending, sms := newTestLedger(t)
	sms.fail = apperr.New(apperr.CodeGatewayUnavailable, "down")
	ctx := context.Background()

	err := ledger.IssueCode(ctx, phone, models.PurposeRegistration, models.RegistrationPayload{})
	require.Error(t, err)
	assert.Equal(t, apperr.CodeGatewayUnavailable, apperr.CodeOf(err))

	_, err = pending.Get(ctx, phone, models.PurposeRegistration)
	assert.Equal(t, apperr.CodeNotFound, apperr.CodeOf(err))
}

func TestIssueCodeReplacesPreviousRecord(t *testing.T) {
	ledger, pending, sms := newTestLedger(t)
	ctx := context.Background()

	require.NoError(t, ledger.IssueCode(ctx, phone, models.PurposeRegistration, models.RegistrationPayload{}))
	require.NoError(t, ledger.IssueCode(ctx, phone, models.PurposeRegistration, models.RegistrationPayload{}))

	record, err := pending.Get(ctx, phone, models.PurposeRegistration)
	require.NoError(t, err)
	assert.Equal(t, sms.sent[1], record.Code, "seul le dernier code reste valable")
	assert.Equal(t, 0, record.Attempts)
}

func TestVerifyCodeSuccessConsumesRecord(t *testing.T) {
	ledger, pending, sms := newTestLedger(t)
	ctx := context.Background()
	payload := models.RegistrationPayload{Name: "Sara", HashedPassword: "argon2..."}
	require.NoError(t, ledger.IssueCode(ctx, phone, models.PurposeRegistration, payload))

	got, err := ledger.VerifyCode(ctx, phone, models.PurposeRegistration, sms.sent[0])
	require.NoError(t, err)
	assert.Equal(t, payload, *got)

	// Le même code ne passe pas deux fois.
	_, err = ledger.VerifyCode(ctx, phone, models.PurposeRegistration, sms.sent[0])
	assert.Equal(t, apperr.CodeNotFound, apperr.CodeOf(err))

	_, err = pending.Get(ctx, phone, models.PurposeRegistration)
	assert.Equal(t, apperr.CodeNotFound, apperr.CodeOf(err))
}

func TestVerifyCodeWithoutRecord(t *testing.T) {
	ledger, _, _ := newTestLedger(t)

	_, err := ledger.VerifyCode(context.Background(), phone, models.PurposeRegistration, "123456")
	assert.Equal(t, apperr.CodeNotFound, apperr.CodeOf(err))
}

func TestVerifyCodeExpired(t *testing.T) {
	ledger, pending, _ := newTestLedger(t)
	ctx := context.Background()
	require.NoError(t, ledger.IssueCode(ctx, phone, models.PurposeRegistration, models.RegistrationPayload{}))
	pending.Expire(phone, models.PurposeRegistration)

	_, err := ledger.VerifyCode(ctx, phone, models.PurposeRegistration, "123456")
	assert.Equal(t, apperr.CodeExpired, apperr.CodeOf(err))

	// La fiche expirée a été purgée.
	_, err = pending.Get(ctx, phone, models.PurposeRegistration)
	assert.Equal(t, apperr.CodeNotFound, apperr.CodeOf(err))
}

func TestVerifyCodeMismatchCountsAttempts(t *testing.T) {
	ledger, _, sms := newTestLedger(t)
	ctx := context.Background()
	require.NoError(t, ledger.IssueCode(ctx, phone, models.PurposeRegistration, models.RegistrationPayload{}))

	wrong := "000000"
	if sms.sent[0] == wrong {
		wrong = "999999"
	}

	// Cinq échecs: le dernier annonce 0 restant, toujours en CODE_MISMATCH.
	for i := 1; i <= 5; i++ {
		_, err := ledger.VerifyCode(ctx, phone, models.PurposeRegistration, wrong)
		require.Error(t, err)
		ae, ok := apperr.As(err)
		require.True(t, ok)
		assert.Equal(t, apperr.CodeCodeMismatch, ae.Code)
		require.NotNil(t, ae.RemainingAttempts)
		assert.Equal(t, 5-i, *ae.RemainingAttempts)
	}

	// Sixième tentative, même avec le bon code: plafond atteint.
	_, err := ledger.VerifyCode(ctx, phone, models.PurposeRegistration, sms.sent[0])
	assert.Equal(t, apperr.CodeAttemptsExhausted, apperr.CodeOf(err))

	// Le plafond a consommé la fiche.
	_, err = ledger.VerifyCode(ctx, phone, models.PurposeRegistration, sms.sent[0])
	assert.Equal(t, apperr.CodeNotFound, apperr.CodeOf(err))
}

func TestResendCodeKeepsPayload(t *testing.T) {
	ledger, _, sms := newTestLedger(t)
	ctx := context.Background()
	payload := models.RegistrationPayload{Name: "Sara", LastName: "Ahmadi"}
	require.NoError(t, ledger.IssueCode(ctx, phone, models.PurposeRegistration, payload))

	require.NoError(t, ledger.ResendCode(ctx, phone, models.PurposeRegistration))
	require.Len(t, sms.sent, 2)

	got, err := ledger.VerifyCode(ctx, phone, models.PurposeRegistration, sms.sent[1])
	require.NoError(t, err)
	assert.Equal(t, payload, *got)
}

func TestResendCodeWithoutRecord(t *testing.T) {
	ledger, _, _ := newTestLedger(t)

	err := ledger.ResendCode(context.Background(), phone, models.PurposeRegistration)
	assert.Equal(t, apperr.CodeNotFound, apperr.CodeOf(err))
}

func TestResendCodeResetsAttempts(t *testing.T) {
	ledger, pending, sms := newTestLedger(t)
	ctx := context.Background()
	require.NoError(t, ledger.IssueCode(ctx, phone, models.PurposeRegistration, models.RegistrationPayload{}))

	wrong := "000000"
	if sms.sent[0] == wrong {
		wrong = "999999"
	}
	_, err := ledger.VerifyCode(ctx, phone, models.PurposeRegistration, wrong)
	require.Error(t, err)
	require.False(t, errors.Is(err, context.Canceled))

	require.NoError(t, ledger.ResendCode(ctx, phone, models.PurposeRegistration))
	record, err := pending.Get(ctx, phone, models.PurposeRegistration)
	require.NoError(t, err)
	assert.Equal(t, 0, record.Attempts)
}
