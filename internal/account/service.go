package account

import (
	"context"
	"log"
	"regexp"
	"time"

	"parsikala_back_end/internal/activity"
	"parsikala_back_end/internal/apperr"
	"parsikala_back_end/internal/models"
	"parsikala_back_end/internal/store"
	"parsikala_back_end/internal/utils"
	"parsikala_back_end/internal/verification"
)

// Numéro mobile iranien: 09 suivi de 9 chiffres.
var phonePattern = regexp.MustCompile(`^09\d{9}$`)

// Service gère l'identité: inscription par SMS, connexion, jetons et
// réinitialisation du mot de passe. L'identité d'un compte est son numéro
// de téléphone vérifié.
type Service struct {
	users    store.UserStore
	ledger   *verification.Ledger
	activity *activity.Logger
	now      func() time.Time
}

func NewService(users store.UserStore, ledger *verification.Ledger, logger *activity.Logger) *Service {
	return &Service{users: users, ledger: ledger, activity: logger, now: time.Now}
}

// TokenPair est la paire émise à chaque authentification réussie.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// RegistrationRequest est la première étape de l'inscription.
type RegistrationRequest struct {
	Phone    string `json:"phone" binding:"required"`
	Name     string `json:"name" binding:"required"`
	LastName string `json:"last_name" binding:"required"`
	Password string `json:"password" binding:"required,min=8"`
}

// RequestRegistration hash le mot de passe, range le dossier d'inscription en
// attente et envoie le code SMS. Le compte n'existe pas tant que le code
// n'est pas vérifié.
func (s *Service) RequestRegistration(ctx context.Context, req RegistrationRequest) error {
	if !phonePattern.MatchString(req.Phone) {
		return apperr.New(apperr.CodeValidationFailed, "Numéro de téléphone invalide")
	}
	if len(req.Password) < 8 {
		return apperr.New(apperr.CodeValidationFailed, "Le mot de passe doit contenir au moins 8 caractères")
	}

	claimed, err := s.users.VerifiedPhoneExists(ctx, req.Phone)
	if err != nil {
		return err
	}
	if claimed {
		return apperr.New(apperr.CodeConflict, "Ce numéro de téléphone est déjà enregistré")
	}

	hashed, err := utils.HashPassword(req.Password)
	if err != nil {
		return apperr.Wrap(apperr.CodeInternal, "hash du mot de passe", err)
	}

	return s.ledger.IssueCode(ctx, req.Phone, models.PurposeRegistration, models.RegistrationPayload{
		Name:           req.Name,
		LastName:       req.LastName,
		HashedPassword: hashed,
	})
}

// VerifyRegistration consomme le code SMS et promeut le dossier en compte
// durable, puis connecte immédiatement l'utilisateur.
func (s *Service) VerifyRegistration(ctx context.Context, phone, code string) (*models.User, *TokenPair, error) {
	payload, err := s.ledger.VerifyCode(ctx, phone, models.PurposeRegistration, code)
	if err != nil {
		return nil, nil, err
	}

	// Revérification au moment de la promotion: le numéro a pu être
	// revendiqué entre l'émission du code et sa validation.
	claimed, err := s.users.VerifiedPhoneExists(ctx, phone)
	if err != nil {
		return nil, nil, err
	}
	if claimed {
		return nil, nil, apperr.New(apperr.CodeConflict, "Ce numéro de téléphone est déjà enregistré")
	}

	user := &models.User{
		Name:          payload.Name,
		LastName:      payload.LastName,
		Phone:         phone,
		PhoneVerified: true,
		Password:      payload.HashedPassword,
		Role:          "user",
		IsActive:      true,
	}
	if err := s.users.Insert(ctx, user); err != nil {
		return nil, nil, err
	}

	tokens, err := s.issueTokens(ctx, user)
	if err != nil {
		return nil, nil, err
	}

	s.activity.Record(activity.Entry{
		UserID:      user.ID.Hex(),
		UserName:    user.Name,
		Action:      "user_registered",
		Entity:      "user",
		EntityID:    user.ID.Hex(),
		Description: "Inscription vérifiée par SMS",
	})
	log.Printf("👤 Nouveau compte vérifié: %s", phone)
	return user, tokens, nil
}

// ResendRegistrationCode renvoie un code en réutilisant le dossier en attente.
func (s *Service) ResendRegistrationCode(ctx context.Context, phone string) error {
	return s.ledger.ResendCode(ctx, phone, models.PurposeRegistration)
}

// Login authentifie par téléphone (ou email) et mot de passe.
func (s *Service) Login(ctx context.Context, identifier, password string) (*models.User, *TokenPair, error) {
	user, err := s.users.GetByPhone(ctx, identifier)
	if err != nil {
		if apperr.CodeOf(err) == apperr.CodeNotFound {
			return nil, nil, apperr.New(apperr.CodeUnauthorized, "Identifiants incorrects")
		}
		return nil, nil, err
	}
	if !user.IsActive {
		return nil, nil, apperr.New(apperr.CodeForbidden, "Ce compte est désactivé")
	}

	ok, err := utils.VerifyPassword(password, user.Password)
	if err != nil || !ok {
		return nil, nil, apperr.New(apperr.CodeUnauthorized, "Identifiants incorrects")
	}

	tokens, err := s.issueTokens(ctx, user)
	if err != nil {
		return nil, nil, err
	}

	s.activity.Record(activity.Entry{
		UserID:   user.ID.Hex(),
		UserName: user.Name,
		Action:   "user_login",
		Entity:   "user",
		EntityID: user.ID.Hex(),
	})
	return user, tokens, nil
}

// Refresh échange un refresh token valable et non révoqué contre une
// nouvelle paire. L'ancien jeton est révoqué (rotation).
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := utils.ClaimsOfType(refreshToken, "refresh")
	if err != nil {
		return nil, apperr.New(apperr.CodeUnauthorized, "Jeton de rafraîchissement invalide")
	}
	userID, _ := claims["user_id"].(string)

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, apperr.New(apperr.CodeUnauthorized, "Jeton de rafraîchissement invalide")
	}
	if !user.IsActive {
		return nil, apperr.New(apperr.CodeForbidden, "Ce compte est désactivé")
	}

	// Le jeton doit figurer dans la liste persistée: un jeton signé mais
	// révoqué est refusé.
	now := s.now()
	valid := false
	for _, rt := range user.RefreshTokens {
		if rt.Token == refreshToken && now.Before(rt.ExpiresAt) {
			valid = true
			break
		}
	}
	if !valid {
		return nil, apperr.New(apperr.CodeUnauthorized, "Jeton de rafraîchissement révoqué ou expiré")
	}

	if err := s.users.RemoveRefreshToken(ctx, userID, refreshToken); err != nil {
		return nil, err
	}
	return s.issueTokens(ctx, user)
}

// Logout révoque le refresh token présenté.
func (s *Service) Logout(ctx context.Context, userID, refreshToken string) error {
	return s.users.RemoveRefreshToken(ctx, userID, refreshToken)
}

// ForgotPassword émet un code SMS de réinitialisation. Une adresse inconnue
// reçoit la même réponse qu'une adresse connue: pas d'énumération de comptes.
func (s *Service) ForgotPassword(ctx context.Context, phone string) error {
	if !phonePattern.MatchString(phone) {
		return apperr.New(apperr.CodeValidationFailed, "Numéro de téléphone invalide")
	}

	if _, err := s.users.GetByPhone(ctx, phone); err != nil {
		if apperr.CodeOf(err) == apperr.CodeNotFound {
			log.Printf("🔍 Réinitialisation demandée pour un numéro inconnu: %s", phone)
			return nil
		}
		return err
	}

	return s.ledger.IssueCode(ctx, phone, models.PurposePasswordReset, models.RegistrationPayload{})
}

// VerifyResetCode consomme le code SMS et délivre un jeton de
// réinitialisation éphémère.
func (s *Service) VerifyResetCode(ctx context.Context, phone, code string) (string, error) {
	if _, err := s.ledger.VerifyCode(ctx, phone, models.PurposePasswordReset, code); err != nil {
		return "", err
	}
	token, err := utils.GenerateResetToken(phone)
	if err != nil {
		return "", apperr.Wrap(apperr.CodeInternal, "émission du jeton de réinitialisation", err)
	}
	return token, nil
}

// ResetPassword applique le nouveau mot de passe sous couvert du jeton de
// réinitialisation, et révoque toutes les sessions ouvertes.
func (s *Service) ResetPassword(ctx context.Context, resetToken, newPassword string) error {
	claims, err := utils.ClaimsOfType(resetToken, "password_reset")
	if err != nil {
		return apperr.New(apperr.CodeUnauthorized, "Jeton de réinitialisation invalide ou expiré")
	}
	phone, _ := claims["phone"].(string)
	if len(newPassword) < 8 {
		return apperr.New(apperr.CodeValidationFailed, "Le mot de passe doit contenir au moins 8 caractères")
	}

	user, err := s.users.GetByPhone(ctx, phone)
	if err != nil {
		return err
	}

	hashed, err := utils.HashPassword(newPassword)
	if err != nil {
		return apperr.Wrap(apperr.CodeInternal, "hash du mot de passe", err)
	}
	if err := s.users.SetPassword(ctx, user.ID.Hex(), hashed); err != nil {
		return err
	}

	// Toutes les sessions sont invalidées après un changement de mot de passe.
	for _, rt := range user.RefreshTokens {
		if err := s.users.RemoveRefreshToken(ctx, user.ID.Hex(), rt.Token); err != nil {
			log.Printf("⚠️ Révocation d'un jeton impossible pour %s: %v", user.ID.Hex(), err)
		}
	}

	s.activity.Record(activity.Entry{
		UserID:      user.ID.Hex(),
		Action:      "password_reset",
		Entity:      "user",
		EntityID:    user.ID.Hex(),
		Description: "Mot de passe réinitialisé par SMS",
	})
	return nil
}

// GetProfile renvoie le compte du demandeur.
func (s *Service) GetProfile(ctx context.Context, userID string) (*models.User, error) {
	return s.users.GetByID(ctx, userID)
}

// UpdateProfile modifie les champs éditables du compte (jamais le téléphone
// vérifié ni le rôle).
func (s *Service) UpdateProfile(ctx context.Context, userID string, name, lastName, email, address, postalCode string) (*models.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if name != "" {
		user.Name = name
	}
	if lastName != "" {
		user.LastName = lastName
	}
	if email != "" {
		user.Email = email
	}
	if address != "" {
		user.Address = address
	}
	if postalCode != "" {
		user.PostalCode = postalCode
	}
	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// SetAvatar enregistre l'URL de l'avatar téléversé.
func (s *Service) SetAvatar(ctx context.Context, userID, avatarURL string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	user.Avatar = avatarURL
	return s.users.Update(ctx, user)
}

func (s *Service) issueTokens(ctx context.Context, user *models.User) (*TokenPair, error) {
	access, err := utils.GenerateAccessToken(user)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "émission du jeton d'accès", err)
	}
	refresh, expiresAt, err := utils.GenerateRefreshToken(user)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "émission du jeton de rafraîchissement", err)
	}
	if err := s.users.AddRefreshToken(ctx, user.ID.Hex(), models.RefreshToken{
		Token:     refresh,
		ExpiresAt: expiresAt,
		CreatedAt: s.now(),
	}); err != nil {
		return nil, err
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}
