package routes

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"parsikala_back_end/internal/handlers"
	"parsikala_back_end/internal/middleware"
)

func RegisterRoutes(r *gin.Engine) {
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:3000", "https://parsikala.com"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"X-RateLimit-Limit", "X-RateLimit-Remaining"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	r.Use(middleware.APIRateLimit())

	api := r.Group("/api")

	// Authentification
	auth := api.Group("/auth")
	{
		auth.POST("/register", middleware.SMSRateLimit(), handlers.RequestRegistration)
		auth.POST("/register/verify", handlers.VerifyRegistration)
		auth.POST("/register/resend", middleware.SMSRateLimit(), handlers.ResendRegistrationCode)
		auth.POST("/login", middleware.LoginRateLimit(), handlers.Login)
		auth.POST("/refresh", handlers.Refresh)
		auth.POST("/forgot-password", middleware.SMSRateLimit(), handlers.ForgotPassword)
		auth.POST("/forgot-password/verify", handlers.VerifyResetCode)
		auth.POST("/reset-password", handlers.ResetPassword)
	}

	// Catalogue (lecture publique)
	api.GET("/products", handlers.ListProducts)
	api.GET("/products/search", middleware.SearchRateLimit(), handlers.SearchProducts)
	api.GET("/products/:id", handlers.GetProduct)

	// Retour de la passerelle (le navigateur arrive sans jeton)
	api.GET("/payment/callback", handlers.PaymentCallback)

	// Routes authentifiées
	authed := api.Group("")
	authed.Use(middleware.AuthRequired())
	{
		authed.POST("/auth/logout", handlers.Logout)
		authed.GET("/profile", handlers.GetProfile)
		authed.PUT("/profile", handlers.UpdateProfile)
		authed.POST("/profile/avatar", handlers.UploadAvatar)

		authed.POST("/cart/validate", handlers.ValidateCart)

		authed.POST("/orders", handlers.CreateOrder)
		authed.GET("/orders", handlers.ListOrders)
		authed.GET("/orders/:id", handlers.GetOrder)
		authed.POST("/orders/:id/cancel", handlers.CancelOrder)
		authed.POST("/orders/:id/payment", handlers.CreatePaymentRequest)
		authed.GET("/orders/:id/payment", handlers.GetPaymentStatus)
		authed.GET("/orders/:id/tracking-qr", handlers.TrackingQR)
	}

	// Routes admin
	admin := api.Group("/admin")
	admin.Use(middleware.AuthRequired(), middleware.RequireAdmin)
	{
		admin.POST("/products", handlers.CreateProduct)
		admin.PUT("/products/:id", handlers.UpdateProduct)
		admin.DELETE("/products/:id", handlers.DeleteProduct)
		admin.POST("/products/:id/stock", handlers.AdjustStock)
		admin.GET("/products/:id/movements", handlers.StockMovements)
		admin.POST("/products/images", handlers.UploadProductImage)

		admin.GET("/orders", handlers.ListOrders)
		admin.PUT("/orders/:id/status", handlers.UpdateOrderStatus)
		admin.PUT("/orders/:id/tracking", handlers.SetTrackingNumber)
		admin.GET("/orders/:id/invoice", handlers.DownloadInvoice)

		admin.GET("/reports/sales", handlers.GetSalesStatistics)
		admin.GET("/reports/financial", handlers.GetFinancialReport)

		admin.GET("/activity", handlers.ListActivity)
	}
}
