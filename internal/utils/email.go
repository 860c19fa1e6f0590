package utils

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os"

	"github.com/wneessen/go-mail"

	"parsikala_back_end/internal/models"
	"parsikala_back_end/internal/store"
)

// SendConfirmationEmail envoie un email HTML avec facture PDF en option.
func SendConfirmationEmail(to, subject, htmlBody string, pdfAttachment []byte) error {
	msg := mail.NewMsg()

	from := os.Getenv("SMTP_FROM")
	if from == "" {
		from = "noreply@parsikala.com"
	}
	if err := msg.From(from); err != nil {
		return err
	}
	if err := msg.To(to); err != nil {
		return err
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextHTML, htmlBody)

	if pdfAttachment != nil {
		msg.AttachReader("facture.pdf", bytes.NewReader(pdfAttachment))
	}

	host := os.Getenv("SMTP_HOST")
	if host == "" {
		host = "ssl0.ovh.net"
	}
	client, err := mail.NewClient(host,
		mail.WithPort(587),
		mail.WithSMTPAuth(mail.SMTPAuthLogin),
		mail.WithUsername(os.Getenv("SMTP_USERNAME")),
		mail.WithPassword(os.Getenv("SMTP_PASSWORD")),
		mail.WithTLSPolicy(mail.TLSMandatory),
	)
	if err != nil {
		return err
	}

	log.Println("📤 Envoi de l'e-mail à", to)
	return client.DialAndSend(msg)
}

// GenerateOrderConfirmationHTML génère le HTML de confirmation de commande.
// Les montants sont en Toman entiers.
func GenerateOrderConfirmationHTML(order *models.Order) string {
	itemsHTML := ""
	for _, item := range order.Items {
		itemsHTML += fmt.Sprintf(`
			<tr>
				<td style="padding: 10px; border: 1px solid #ddd;">%s</td>
				<td style="padding: 10px; border: 1px solid #ddd;">%d</td>
				<td style="padding: 10px; border: 1px solid #ddd;">%d Toman</td>
				<td style="padding: 10px; border: 1px solid #ddd;">%d Toman</td>
			</tr>`, item.Name, item.Quantity, item.Price, item.Price*int64(item.Quantity))
	}

	return fmt.Sprintf(`
<!DOCTYPE html>
<html lang="fr">
<head>
	<meta charset="UTF-8">
	<meta name="viewport" content="width=device-width, initial-scale=1.0">
	<title>Confirmation de commande</title>
</head>
<body style="font-family: Arial, sans-serif; background-color: #f9f9f9; padding: 20px;">
	<div style="max-width: 600px; margin: auto; background-color: white; padding: 20px; border-radius: 10px;">
		<h2 style="color: #333;">Confirmation de votre commande</h2>
		<p>Bonjour,</p>
		<p>Votre paiement a été confirmé (référence %s). Votre commande est en cours de préparation.</p>

		<h3>Détails de la commande</h3>
		<table style="width: 100%%; border-collapse: collapse; margin: 20px 0;">
			<thead>
				<tr style="background-color: #f0f0f0;">
					<th style="padding: 10px; text-align: left; border: 1px solid #ddd;">Produit</th>
					<th style="padding: 10px; text-align: left; border: 1px solid #ddd;">Quantité</th>
					<th style="padding: 10px; text-align: left; border: 1px solid #ddd;">Prix unitaire</th>
					<th style="padding: 10px; text-align: left; border: 1px solid #ddd;">Total</th>
				</tr>
			</thead>
			<tbody>
				%s
			</tbody>
			<tfoot>
				<tr>
					<td colspan="3" style="padding: 10px; text-align: right; font-weight: bold;">Total:</td>
					<td style="padding: 10px; font-weight: bold;">%d Toman</td>
				</tr>
			</tfoot>
		</table>

		<p style="margin-top: 30px; color: #555;">
			Cordialement,<br>
			<strong>L'équipe ParsiKala</strong>
		</p>
	</div>
</body>
</html>`, order.PaymentRefID, itemsHTML, order.TotalAmount)
}

// OrderMailer branche la confirmation de commande sur le service commandes.
// L'identité d'un compte est le téléphone: l'email est optionnel, sans
// adresse on n'envoie rien.
type OrderMailer struct {
	Users store.UserStore
}

func (m OrderMailer) SendOrderConfirmation(ctx context.Context, order *models.Order) error {
	user, err := m.Users.GetByID(ctx, order.UserID)
	if err != nil {
		return err
	}
	if user.Email == "" {
		return nil
	}

	html := GenerateOrderConfirmationHTML(order)
	pdf, err := GenerateInvoicePDF(order)
	if err != nil {
		log.Printf("⚠️ Facture PDF non générée pour %s: %v", order.ID.Hex(), err)
		pdf = nil
	}
	return SendConfirmationEmail(user.Email, "Confirmation de votre commande", html, pdf)
}
