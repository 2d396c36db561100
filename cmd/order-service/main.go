// @title        Ordenes Pagos API
// @version      1.0
// @description  Orders and payment reconciliation for the shop.
// @BasePath     /
package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	_ "github.com/MikeMC777/ordenes-pagos/docs"
	"github.com/MikeMC777/ordenes-pagos/internal/app"
	"github.com/MikeMC777/ordenes-pagos/internal/config"
	"github.com/MikeMC777/ordenes-pagos/internal/httpx"
)

const healthService = "ordenes.OrderService"

func newRouter(a *app.App, adminKeyHash string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), httpx.RequestID(), httpx.Identify(adminKeyHash), httpx.Logger())

	r.GET("/healthz", healthHandler)
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	admin := httpx.AdminOnly()
	orders := r.Group("/orders")
	{
		orders.POST("", createOrderHandler(a.Orders, a.Products))
		orders.GET("", admin, listOrdersHandler(a.Orders))
		orders.GET("/mine", httpx.Authenticated(), listMyOrdersHandler(a.Orders))
		orders.GET("/:id", getOrderHandler(a.Orders))
		orders.PUT("/:id/status", admin, updateOrderStatusHandler(a.Orders))
		orders.PUT("/:id/tracking", admin, updateTrackingHandler(a.Orders, a.Payments.Reconciler()))
		orders.PUT("/:id/pay", admin, markPaidHandler(a.Payments))
	}
	payments := r.Group("/payments")
	{
		payments.POST("/signature", signatureHandler(a.Payments))
		payments.POST("/verify", verifyHandler(a.Payments))
		payments.GET("/verify/:id", verifyTransactionHandler(a.Payments))
		payments.POST("/wompi/webhook", wompiWebhookHandler(a.Payments))
		payments.POST("/mercadopago/webhook", mercadoPagoWebhookHandler(a.Payments))
	}
	return r
}

func serveHealth(addr string) (*grpc.Server, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	gs := grpc.NewServer()
	hs := health.NewServer()
	hs.SetServingStatus(healthService, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(gs, hs)
	go func() {
		if err := gs.Serve(lis); err != nil {
			log.Printf("[grpc] health server stopped: %v", err)
		}
	}()
	log.Printf("[grpc] health listening on %s", addr)
	return gs, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()
	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalf("bootstrap: %v", err)
	}
	defer a.Close()

	gs, err := serveHealth(cfg.GRPCHealthAddr)
	if err != nil {
		log.Fatalf("grpc health: %v", err)
	}
	defer gs.GracefulStop()

	srv := &http.Server{
		Addr:              cfg.OrderSvcAddr,
		Handler:           newRouter(a, cfg.AdminKeyHash),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Printf("order-service listening on %s", cfg.OrderSvcAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("order-service shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown: %v", err)
	}
}
