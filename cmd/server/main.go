package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/gin-gonic/gin"

	"parsikala_back_end/internal/account"
	"parsikala_back_end/internal/activity"
	"parsikala_back_end/internal/config"
	"parsikala_back_end/internal/database"
	"parsikala_back_end/internal/gateway"
	"parsikala_back_end/internal/handlers"
	"parsikala_back_end/internal/orders"
	"parsikala_back_end/internal/routes"
	"parsikala_back_end/internal/store"
	"parsikala_back_end/internal/utils"
	"parsikala_back_end/internal/verification"
)

func main() {
	config.Load()

	database.ConnectDatabases()
	defer database.CloseScylla()

	productsSession, err := database.GetProductsSession()
	if err != nil {
		log.Fatal("❌ Session Scylla products indisponible :", err)
	}

	productStore := store.NewScyllaProductStore(productsSession)
	orderStore := store.NewMongoOrderStore(database.Mongo)
	userStore := store.NewMongoUserStore(database.Mongo)
	pendingStore := store.NewMongoPendingStore(database.Mongo)
	activityStore := store.NewMongoActivityStore(database.Mongo)

	ensureIndexes(orderStore, userStore, pendingStore, activityStore)

	baseURL := os.Getenv("BASE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}

	activityLogger := activity.NewLogger(activityStore)
	ledger := verification.NewLedger(pendingStore, gateway.NewMelipayamakClient())

	orderSvc := orders.NewService(
		productStore,
		orderStore,
		gateway.NewZarinPalClient(),
		activityLogger,
		baseURL+"/api/payment/callback",
	).WithMailer(utils.OrderMailer{Users: userStore})

	accountSvc := account.NewService(userStore, ledger, activityLogger)

	handlers.Init(accountSvc, orderSvc, productStore, activityLogger)

	checkRedis()

	r := gin.Default()
	routes.RegisterRoutes(r)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	log.Println("🚀 Serveur ParsiKala lancé sur le port", port)
	if err := r.Run(":" + port); err != nil {
		log.Fatal("❌ Serveur arrêté :", err)
	}
}

type indexer interface {
	EnsureIndexes(ctx context.Context) error
}

func ensureIndexes(stores ...indexer) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, s := range stores {
		if err := s.EnsureIndexes(ctx); err != nil {
			log.Fatal("❌ Création des index Mongo échouée :", err)
		}
	}
	log.Println("✅ Index Mongo vérifiés")
}

// checkRedis vérifie la connectivité Redis au démarrage. Le rate limiting en
// dépend, un Redis muet doit se voir dans les logs tout de suite.
func checkRedis() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := database.Redis.Ping(ctx).Err(); err != nil {
		log.Println("⚠️ Redis injoignable au démarrage :", err)
		return
	}
	log.Println("✅ Connexion Redis vérifiée")
}
