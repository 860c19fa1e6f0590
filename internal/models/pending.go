package models

import "time"

// Finalité d'une vérification SMS en attente. Une seule fiche vivante par
// couple (téléphone, finalité).
type VerificationPurpose string

const (
	PurposeRegistration  VerificationPurpose = "registration"
	PurposePasswordReset VerificationPurpose = "password_reset"
)

// Données d'inscription conservées tant que le code SMS n'est pas validé.
// Le mot de passe est déjà hashé avant d'entrer ici.
type RegistrationPayload struct {
	Name           string `bson:"name,omitempty" json:"name,omitempty"`
	LastName       string `bson:"last_name,omitempty" json:"last_name,omitempty"`
	HashedPassword string `bson:"hashed_password,omitempty" json:"-"`
}

type PendingVerification struct {
	Phone     string              `bson:"phone" json:"phone"`
	Purpose   VerificationPurpose `bson:"purpose" json:"purpose"`
	Code      string              `bson:"code" json:"-"`
	ExpiresAt time.Time           `bson:"expires_at" json:"expires_at"`
	Attempts  int                 `bson:"attempts" json:"attempts"`
	Payload   RegistrationPayload `bson:"payload,omitempty" json:"-"`
	CreatedAt time.Time           `bson:"created_at" json:"created_at"`
}

// Expired indique si la fiche est inerte : même présente en base, elle doit
// être refusée.
func (p *PendingVerification) Expired(now time.Time) bool {
	return now.After(p.ExpiresAt)
}
