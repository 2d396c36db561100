package main

import (
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MikeMC777/ordenes-pagos/internal/gateway"
	"github.com/MikeMC777/ordenes-pagos/internal/httpx"
	ord "github.com/MikeMC777/ordenes-pagos/internal/order"
	"github.com/MikeMC777/ordenes-pagos/internal/payment"
	"github.com/MikeMC777/ordenes-pagos/internal/product"
)

const maxWebhookBody = 1 << 20

// statusFor maps domain errors onto API status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ord.ErrNotFound), errors.Is(err, product.ErrNotFound), errors.Is(err, gateway.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ord.ErrAlreadyPaid), errors.Is(err, ord.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, payment.ErrSignature), errors.Is(err, payment.ErrMalformedPayload),
		errors.Is(err, payment.ErrReferenceMismatch), errors.Is(err, payment.ErrUnknownGateway):
		return http.StatusBadRequest
	case errors.Is(err, gateway.ErrUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		log.Printf("[http] rid=%s %s %s: %v", httpx.RID(c), c.Request.Method, c.Request.URL.Path, err)
		if errors.Is(err, payment.ErrConfig) {
			c.JSON(code, gin.H{"error": "payment configuration error"})
			return
		}
		c.JSON(code, gin.H{"error": "internal error"})
		return
	}
	c.JSON(code, gin.H{"error": err.Error()})
}

func pageParams(c *gin.Context) (int, int) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	return limit, offset
}

func parseMoney(s string) (decimal.Decimal, error) {
	if strings.TrimSpace(s) == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, err
	}
	if d.IsNegative() {
		return decimal.Zero, errors.New("negative amount")
	}
	return d, nil
}

// canView lets admins see everything and users see their own orders. Guest orders
// are reachable by id alone.
func canView(id httpx.Identity, o *ord.Order) bool {
	return id.Admin() || o.UserID == "" || o.UserID == id.UserID
}

// createOrderHandler godoc
// @Summary      Create order
// @Description  Prices items from the catalog, checks availability and stores a Pending order. Guests may order.
// @Tags         orders
// @Accept       json
// @Produce      json
// @Param        body  body      ord.CreateOrderRequest  true  "Order"
// @Success      201   {object}  ord.Order
// @Failure      400   {object}  product.HTTPError
// @Failure      404   {object}  product.HTTPError
// @Failure      409   {object}  product.HTTPError
// @Router       /orders [post]
func createOrderHandler(orders ord.Repository, products product.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ord.CreateOrderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
			return
		}
		if len(req.Items) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "order has no items"})
			return
		}
		tax, err := parseMoney(req.TaxPrice)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid tax_price"})
			return
		}
		shipping, err := parseMoney(req.ShippingPrice)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid shipping_price"})
			return
		}

		id := httpx.CurrentIdentity(c)
		o := &ord.Order{
			ID:              uuid.NewString(),
			UserID:          id.UserID,
			ShippingAddress: req.ShippingAddress,
			PaymentMethod:   req.PaymentMethod,
			TaxPrice:        tax,
			ShippingPrice:   shipping,
			Status:          ord.StatusPending,
		}
		if o.ShippingAddress.Email == "" {
			o.ShippingAddress.Email = id.Email
		}

		items := decimal.Zero
		for _, it := range req.Items {
			if it.Quantity <= 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "quantity must be > 0"})
				return
			}
			p, err := products.GetByID(c.Request.Context(), it.ProductID)
			if err != nil {
				if errors.Is(err, product.ErrNotFound) {
					c.JSON(http.StatusNotFound, gin.H{"error": "product not found: " + it.ProductID})
					return
				}
				writeError(c, err)
				return
			}
			if it.Quantity > p.Stock {
				c.JSON(http.StatusConflict, gin.H{"error": "insufficient stock for " + p.Name})
				return
			}
			o.Items = append(o.Items, ord.Item{
				ID:                uuid.NewString(),
				OrderID:           o.ID,
				ProductID:         p.ID,
				Name:              p.Name,
				Price:             p.Price,
				Quantity:          it.Quantity,
				Image:             p.Image,
				SelectedVariation: it.SelectedVariation,
			})
			items = items.Add(p.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
		}
		o.ItemsPrice = items
		o.TotalPrice = items.Add(tax).Add(shipping)

		if err := orders.Create(c.Request.Context(), o); err != nil {
			writeError(c, err)
			return
		}
		log.Printf("[orders] rid=%s created order=%s user=%q total=%s", httpx.RID(c), o.ID, o.UserID, o.TotalPrice)
		c.JSON(http.StatusCreated, o)
	}
}

// getOrderHandler godoc
// @Summary      Get order
// @Tags         orders
// @Produce      json
// @Param        id   path      string  true  "Order ID"
// @Success      200  {object}  ord.Order
// @Failure      403  {object}  product.HTTPError
// @Failure      404  {object}  product.HTTPError
// @Router       /orders/{id} [get]
func getOrderHandler(orders ord.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		o, err := orders.GetByID(c.Request.Context(), c.Param("id"))
		if err != nil {
			writeError(c, err)
			return
		}
		if !canView(httpx.CurrentIdentity(c), o) {
			c.JSON(http.StatusForbidden, gin.H{"error": "not your order"})
			return
		}
		c.JSON(http.StatusOK, o)
	}
}

// listMyOrdersHandler godoc
// @Summary      List caller's orders
// @Tags         orders
// @Produce      json
// @Param        limit   query     int  false  "limit"
// @Param        offset  query     int  false  "offset"
// @Success      200     {array}   ord.Order
// @Failure      401     {object}  product.HTTPError
// @Router       /orders/mine [get]
func listMyOrdersHandler(orders ord.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, offset := pageParams(c)
		list, err := orders.ListByUser(c.Request.Context(), httpx.CurrentIdentity(c).UserID, limit, offset)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, list)
	}
}

// listOrdersHandler godoc
// @Summary      List all orders (admin)
// @Tags         orders
// @Produce      json
// @Param        limit   query     int  false  "limit"
// @Param        offset  query     int  false  "offset"
// @Success      200     {array}   ord.Order
// @Failure      403     {object}  product.HTTPError
// @Router       /orders [get]
func listOrdersHandler(orders ord.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, offset := pageParams(c)
		list, err := orders.List(c.Request.Context(), limit, offset)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, list)
	}
}

// updateOrderStatusHandler godoc
// @Summary      Advance order status (admin)
// @Description  Forward only: Pending, Processing, Shipped, Delivered.
// @Tags         orders
// @Accept       json
// @Produce      json
// @Param        id    path      string                   true  "Order ID"
// @Param        body  body      ord.UpdateStatusRequest  true  "Status"
// @Success      200   {object}  ord.Order
// @Failure      400   {object}  product.HTTPError
// @Failure      404   {object}  product.HTTPError
// @Failure      409   {object}  product.HTTPError
// @Router       /orders/{id}/status [put]
func updateOrderStatusHandler(orders ord.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ord.UpdateStatusRequest
		if err := c.ShouldBindJSON(&req); err != nil || !req.Status.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
			return
		}
		o, err := orders.UpdateStatus(c.Request.Context(), c.Param("id"), req.Status)
		if err != nil {
			writeError(c, err)
			return
		}
		log.Printf("[orders] rid=%s order=%s status=%s", httpx.RID(c), o.ID, o.Status)
		c.JSON(http.StatusOK, o)
	}
}

// updateTrackingHandler godoc
// @Summary      Set tracking number (admin)
// @Description  Stores the number, moves the order to Shipped and notifies the customer.
// @Tags         orders
// @Accept       json
// @Produce      json
// @Param        id    path      string                     true  "Order ID"
// @Param        body  body      ord.UpdateTrackingRequest  true  "Tracking"
// @Success      200   {object}  ord.Order
// @Failure      400   {object}  product.HTTPError
// @Failure      404   {object}  product.HTTPError
// @Router       /orders/{id}/tracking [put]
func updateTrackingHandler(orders ord.Repository, rec *payment.Reconciler) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ord.UpdateTrackingRequest
		if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.TrackingNumber) == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "tracking_number is required"})
			return
		}
		o, err := orders.SetTracking(c.Request.Context(), c.Param("id"), strings.TrimSpace(req.TrackingNumber))
		if err != nil {
			writeError(c, err)
			return
		}
		rec.NotifyShipped(c.Request.Context(), o)
		c.JSON(http.StatusOK, o)
	}
}

// markPaidHandler godoc
// @Summary      Mark order paid (admin)
// @Description  Operator override; runs the same transition as a gateway approval.
// @Tags         payments
// @Produce      json
// @Param        id   path      string  true  "Order ID"
// @Success      200  {object}  payment.Result
// @Failure      404  {object}  product.HTTPError
// @Router       /orders/{id}/pay [put]
func markPaidHandler(pay *payment.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := httpx.CurrentIdentity(c).Email
		if actor == "" {
			actor = "admin"
		}
		res, err := pay.MarkPaidManually(c.Request.Context(), c.Param("id"), actor)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

type signatureRequest struct {
	OrderID string `json:"orderId" example:"4e7d4e5c-5cb9-4a3f-9f21-7e1a4f9f2b2a"`
}

// signatureHandler godoc
// @Summary      Checkout widget signature
// @Description  Signs reference, amount in cents and currency for the stored order total.
// @Tags         payments
// @Accept       json
// @Produce      json
// @Param        body  body      signatureRequest  true  "Order"
// @Success      200   {object}  payment.WidgetSignature
// @Failure      404   {object}  product.HTTPError
// @Failure      409   {object}  product.HTTPError
// @Router       /payments/signature [post]
func signatureHandler(pay *payment.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req signatureRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.OrderID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "orderId is required"})
			return
		}
		sig, err := pay.WidgetSignature(c.Request.Context(), req.OrderID)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, sig)
	}
}

// verifyResponse always carries the payment state; the order itself only goes
// to callers allowed to read it.
type verifyResponse struct {
	Status  gateway.Status `json:"status"`
	OrderID string         `json:"orderId"`
	IsPaid  bool           `json:"isPaid"`
	Order   *ord.Order     `json:"order,omitempty"`
}

func verifyBody(c *gin.Context, res *payment.VerifyResult) verifyResponse {
	out := verifyResponse{Status: res.Status}
	if res.Order == nil {
		return out
	}
	out.OrderID, out.IsPaid = res.Order.ID, res.Order.IsPaid
	if canView(httpx.CurrentIdentity(c), res.Order) {
		out.Order = res.Order
	}
	return out
}

// verifyHandler godoc
// @Summary      Verify order payment
// @Description  Asks the gateway about the order's payment and applies an approval not yet delivered by webhook.
// @Tags         payments
// @Accept       json
// @Produce      json
// @Param        body  body      payment.VerifyRequest  true  "Verification"
// @Success      200   {object}  verifyResponse
// @Failure      400   {object}  product.HTTPError
// @Failure      404   {object}  product.HTTPError
// @Failure      502   {object}  product.HTTPError
// @Router       /payments/verify [post]
func verifyHandler(pay *payment.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req payment.VerifyRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.OrderID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "orderId is required"})
			return
		}
		res, err := pay.Verify(c.Request.Context(), req)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, verifyBody(c, res))
	}
}

// verifyTransactionHandler godoc
// @Summary      Verify gateway transaction
// @Description  Redirect flow keyed by the gateway transaction id.
// @Tags         payments
// @Produce      json
// @Param        id       path      string  true   "Transaction ID"
// @Param        gateway  query     string  false  "wompi (default) or mercadopago"
// @Success      200      {object}  verifyResponse
// @Failure      404      {object}  product.HTTPError
// @Failure      502      {object}  product.HTTPError
// @Router       /payments/verify/{id} [get]
func verifyTransactionHandler(pay *payment.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		name := gateway.Name(c.DefaultQuery("gateway", string(gateway.Wompi)))
		res, err := pay.VerifyTransaction(c.Request.Context(), name, c.Param("id"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, verifyBody(c, res))
	}
}

// webhookStatus keeps webhook answers to 200, 400 and 500 so the sender retries
// only what can succeed later.
func webhookStatus(err error) int {
	switch {
	case errors.Is(err, payment.ErrSignature), errors.Is(err, payment.ErrMalformedPayload):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func readWebhook(c *gin.Context) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return nil, false
	}
	return body, true
}

func answerWebhook(c *gin.Context, source string, res *payment.WebhookResult, err error) {
	if err != nil {
		code := webhookStatus(err)
		log.Printf("[webhook] rid=%s source=%s status=%d: %v", httpx.RID(c), source, code, err)
		msg := err.Error()
		if code >= http.StatusInternalServerError {
			msg = "internal error"
		}
		c.JSON(code, gin.H{"error": msg})
		return
	}
	log.Printf("[webhook] rid=%s source=%s event=%s handled=%t reason=%s",
		httpx.RID(c), source, res.Event, res.Handled, res.Reason)
	c.JSON(http.StatusOK, res)
}

// wompiWebhookHandler godoc
// @Summary      Wompi event webhook
// @Tags         webhooks
// @Accept       json
// @Produce      json
// @Success      200  {object}  payment.WebhookResult
// @Failure      400  {object}  product.HTTPError
// @Failure      500  {object}  product.HTTPError
// @Router       /payments/wompi/webhook [post]
func wompiWebhookHandler(pay *payment.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, ok := readWebhook(c)
		if !ok {
			return
		}
		res, err := pay.HandleWompiEvent(c.Request.Context(), body)
		answerWebhook(c, "wompi", res, err)
	}
}

// mercadoPagoWebhookHandler godoc
// @Summary      MercadoPago notification webhook
// @Tags         webhooks
// @Accept       json
// @Produce      json
// @Param        X-Signature  header    string  true  "hex HMAC-SHA256 of the body"
// @Success      200          {object}  payment.WebhookResult
// @Failure      400          {object}  product.HTTPError
// @Failure      500          {object}  product.HTTPError
// @Router       /payments/mercadopago/webhook [post]
func mercadoPagoWebhookHandler(pay *payment.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, ok := readWebhook(c)
		if !ok {
			return
		}
		res, err := pay.HandleMercadoPagoEvent(c.Request.Context(), body, c.GetHeader("X-Signature"))
		answerWebhook(c, "mercadopago", res, err)
	}
}

func healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().UTC()})
}
