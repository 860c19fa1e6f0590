package utils

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/skip2/go-qrcode"

	"parsikala_back_end/internal/models"
)

// GenerateTrackingQR encode l'URL de suivi d'une commande en PNG.
func GenerateTrackingQR(trackingNumber string) ([]byte, error) {
	if trackingNumber == "" {
		return nil, fmt.Errorf("numéro de suivi vide")
	}
	return qrcode.Encode("https://parsikala.com/tracking/"+trackingNumber, qrcode.Medium, 256)
}

// GenerateInvoicePDF rend la facture HTML dans un Chrome headless et
// l'imprime en PDF.
func GenerateInvoicePDF(order *models.Order) ([]byte, error) {
	html := generateInvoiceHTML(order)

	ctx, cancel := chromedp.NewContext(context.Background())
	defer cancel()

	ctx, cancel = context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	var pdfBuf []byte
	err := chromedp.Run(ctx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			frameTree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(frameTree.Frame.ID, html).Do(ctx)
		}),
		chromedp.WaitVisible("body", chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			buf, _, err := page.PrintToPDF().WithPrintBackground(true).Do(ctx)
			if err != nil {
				return err
			}
			pdfBuf = buf
			return nil
		}),
	)
	if err != nil {
		return nil, err
	}
	return pdfBuf, nil
}

func generateInvoiceHTML(order *models.Order) string {
	var rows strings.Builder
	for _, item := range order.Items {
		fmt.Fprintf(&rows, `<tr><td>%s</td><td>%d</td><td>%d Toman</td><td>%d Toman</td></tr>`,
			item.Name, item.Quantity, item.Price, item.Price*int64(item.Quantity))
	}

	paidAt := ""
	if order.PaidAt != nil {
		paidAt = order.PaidAt.Format("2006-01-02 15:04")
	}

	return fmt.Sprintf(`<!DOCTYPE html>
<html lang="fr">
<head>
<meta charset="UTF-8">
<style>
	body { font-family: Arial, sans-serif; margin: 40px; }
	h1 { color: #333; }
	table { width: 100%%; border-collapse: collapse; margin-top: 20px; }
	th, td { border: 1px solid #ddd; padding: 8px; text-align: left; }
	th { background-color: #f0f0f0; }
	.total { font-weight: bold; }
</style>
</head>
<body>
	<h1>Facture FACT-%s</h1>
	<p>Commande: %s<br>Référence de paiement: %s<br>Payée le: %s</p>
	<table>
		<thead><tr><th>Produit</th><th>Quantité</th><th>Prix unitaire</th><th>Total</th></tr></thead>
		<tbody>%s</tbody>
		<tfoot><tr class="total"><td colspan="3">Total</td><td>%d Toman</td></tr></tfoot>
	</table>
</body>
</html>`, order.ID.Hex(), order.ID.Hex(), order.PaymentRefID, paidAt, rows.String(), order.TotalAmount)
}
