package verification

import (
	"context"
	"crypto/rand"
	"fmt"
	"log"
	"math/big"
	"time"

	"parsikala_back_end/internal/apperr"
	"parsikala_back_end/internal/models"
	"parsikala_back_end/internal/store"
)

const (
	codeTTL     = 10 * time.Minute
	maxAttempts = 5
)

// Ledger gère le cycle de vie des codes de vérification SMS: émission,
// contrôle et renvoi. Une seule fiche vivante par couple (téléphone, finalité).
type Ledger struct {
	pending store.PendingStore
	sms     SMSSender
	now     func() time.Time
}

// SMSSender est le sous-ensemble de la passerelle SMS dont le registre a besoin.
type SMSSender interface {
	SendVerificationCode(ctx context.Context, phone, code string) error
	SendPasswordResetCode(ctx context.Context, phone, code string) error
}

func NewLedger(pending store.PendingStore, sms SMSSender) *Ledger {
	return &Ledger{pending: pending, sms: sms, now: time.Now}
}

// IssueCode génère un code à 6 chiffres, écrase toute fiche existante pour le
// même couple (téléphone, finalité) et envoie le SMS. Si l'envoi échoue, la
// fiche est supprimée: pas de code fantôme en base.
func (l *Ledger) IssueCode(ctx context.Context, phone string, purpose models.VerificationPurpose, payload models.RegistrationPayload) error {
	code, err := generateCode()
	if err != nil {
		return apperr.Wrap(apperr.CodeInternal, "génération du code de vérification", err)
	}

	record := &models.PendingVerification{
		Phone:     phone,
		Purpose:   purpose,
		Code:      code,
		ExpiresAt: l.now().Add(codeTTL),
		Attempts:  0,
		Payload:   payload,
	}
	if err := l.pending.Upsert(ctx, record); err != nil {
		return err
	}

	if err := l.sendCode(ctx, phone, code, purpose); err != nil {
		if delErr := l.pending.Delete(ctx, phone, purpose); delErr != nil {
			log.Printf("⚠️ Nettoyage de la fiche de vérification %s impossible: %v", phone, delErr)
		}
		return err
	}

	log.Printf("📨 Code de vérification émis pour %s (%s)", phone, purpose)
	return nil
}

// VerifyCode contrôle le code soumis. Un succès consomme la fiche et renvoie
// sa charge utile. Une fiche expirée ou épuisée est supprimée au passage.
func (l *Ledger) VerifyCode(ctx context.Context, phone string, purpose models.VerificationPurpose, code string) (*models.RegistrationPayload, error) {
	record, err := l.pending.Get(ctx, phone, purpose)
	if err != nil {
		return nil, err
	}

	if record.Expired(l.now()) {
		_ = l.pending.Delete(ctx, phone, purpose)
		return nil, apperr.New(apperr.CodeExpired, "Le code de vérification a expiré, demandez-en un nouveau")
	}

	if record.Attempts >= maxAttempts {
		_ = l.pending.Delete(ctx, phone, purpose)
		return nil, apperr.New(apperr.CodeAttemptsExhausted, "Nombre maximal de tentatives atteint, demandez un nouveau code")
	}

	if record.Code != code {
		// La fiche reste en place même à 0 restant: c'est la tentative
		// suivante qui bute sur le plafond ci-dessus.
		if err := l.pending.IncrementAttempts(ctx, phone, purpose); err != nil {
			return nil, err
		}
		remaining := maxAttempts - record.Attempts - 1
		return nil, apperr.New(apperr.CodeCodeMismatch, "Code de vérification incorrect").WithRemaining(remaining)
	}

	if err := l.pending.Delete(ctx, phone, purpose); err != nil {
		return nil, err
	}
	payload := record.Payload
	return &payload, nil
}

// ResendCode régénère un code pour une fiche existante en conservant sa
// charge utile. Sans fiche, le renvoi est refusé.
func (l *Ledger) ResendCode(ctx context.Context, phone string, purpose models.VerificationPurpose) error {
	record, err := l.pending.Get(ctx, phone, purpose)
	if err != nil {
		return err
	}
	return l.IssueCode(ctx, phone, purpose, record.Payload)
}

func (l *Ledger) sendCode(ctx context.Context, phone, code string, purpose models.VerificationPurpose) error {
	if purpose == models.PurposePasswordReset {
		return l.sms.SendPasswordResetCode(ctx, phone, code)
	}
	return l.sms.SendVerificationCode(ctx, phone, code)
}

// generateCode tire un code à 6 chiffres depuis le générateur cryptographique.
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}
