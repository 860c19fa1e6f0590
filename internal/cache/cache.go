package cache

import (
	"context"
	"encoding/json"
	"time"

	"parsikala_back_end/internal/database"
	"parsikala_back_end/internal/models"
	"parsikala_back_end/internal/store"
)

const ProductCacheTTL = 10 * time.Minute

// GetProduct récupère un produit depuis Redis, sinon depuis l'autorité
// catalogue, et remplit le cache au passage. Le stock est volontairement
// exclu du cache: il change à chaque réservation.
func GetProduct(ctx context.Context, products store.ProductStore, productID string) (*models.Product, error) {
	key := "product:" + productID

	if data, err := database.Redis.Get(ctx, key).Result(); err == nil {
		var p models.Product
		if json.Unmarshal([]byte(data), &p) == nil {
			// Stock toujours relu en direct
			stock, err := products.GetStock(ctx, productID)
			if err == nil {
				p.Stock = stock
				return &p, nil
			}
		}
	}

	p, err := products.Get(ctx, productID)
	if err != nil {
		return nil, err
	}

	if jsonData, err := json.Marshal(p); err == nil {
		database.Redis.Set(ctx, key, jsonData, ProductCacheTTL)
	}
	return p, nil
}

// InvalidateProduct purge l'entrée après une modification du catalogue.
func InvalidateProduct(ctx context.Context, productID string) {
	database.Redis.Del(ctx, "product:"+productID)
}
