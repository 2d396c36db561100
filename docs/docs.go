// Package docs holds the swagger document served at /swagger/.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/orders": {
            "get": {
                "produces": ["application/json"],
                "tags": ["orders"],
                "summary": "List all orders (admin)",
                "parameters": [
                    {"type": "integer", "description": "limit", "name": "limit", "in": "query"},
                    {"type": "integer", "description": "offset", "name": "offset", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/order.Order"}}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/product.HTTPError"}}
                }
            },
            "post": {
                "description": "Prices items from the catalog, checks availability and stores a Pending order. Guests may order.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["orders"],
                "summary": "Create order",
                "parameters": [
                    {"description": "Order", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/order.CreateOrderRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/order.Order"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/product.HTTPError"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/product.HTTPError"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/product.HTTPError"}}
                }
            }
        },
        "/orders/mine": {
            "get": {
                "produces": ["application/json"],
                "tags": ["orders"],
                "summary": "List caller's orders",
                "parameters": [
                    {"type": "integer", "description": "limit", "name": "limit", "in": "query"},
                    {"type": "integer", "description": "offset", "name": "offset", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/order.Order"}}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/product.HTTPError"}}
                }
            }
        },
        "/orders/{id}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["orders"],
                "summary": "Get order",
                "parameters": [{"type": "string", "description": "Order ID", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/order.Order"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/product.HTTPError"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/product.HTTPError"}}
                }
            }
        },
        "/orders/{id}/status": {
            "put": {
                "description": "Forward only: Pending, Processing, Shipped, Delivered.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["orders"],
                "summary": "Advance order status (admin)",
                "parameters": [
                    {"type": "string", "description": "Order ID", "name": "id", "in": "path", "required": true},
                    {"description": "Status", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/order.UpdateStatusRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/order.Order"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/product.HTTPError"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/product.HTTPError"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/product.HTTPError"}}
                }
            }
        },
        "/orders/{id}/tracking": {
            "put": {
                "description": "Stores the number, moves the order to Shipped and notifies the customer.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["orders"],
                "summary": "Set tracking number (admin)",
                "parameters": [
                    {"type": "string", "description": "Order ID", "name": "id", "in": "path", "required": true},
                    {"description": "Tracking", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/order.UpdateTrackingRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/order.Order"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/product.HTTPError"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/product.HTTPError"}}
                }
            }
        },
        "/orders/{id}/pay": {
            "put": {
                "description": "Operator override; runs the same transition as a gateway approval.",
                "produces": ["application/json"],
                "tags": ["payments"],
                "summary": "Mark order paid (admin)",
                "parameters": [{"type": "string", "description": "Order ID", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/payment.Result"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/product.HTTPError"}}
                }
            }
        },
        "/payments/signature": {
            "post": {
                "description": "Signs reference, amount in cents and currency for the stored order total.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["payments"],
                "summary": "Checkout widget signature",
                "parameters": [
                    {"description": "Order", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/main.signatureRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/payment.WidgetSignature"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/product.HTTPError"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/product.HTTPError"}}
                }
            }
        },
        "/payments/verify": {
            "post": {
                "description": "Asks the gateway about the order's payment and applies an approval not yet delivered by webhook.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["payments"],
                "summary": "Verify order payment",
                "parameters": [
                    {"description": "Verification", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/payment.VerifyRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/main.verifyResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/product.HTTPError"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/product.HTTPError"}},
                    "502": {"description": "Bad Gateway", "schema": {"$ref": "#/definitions/product.HTTPError"}}
                }
            }
        },
        "/payments/verify/{id}": {
            "get": {
                "description": "Redirect flow keyed by the gateway transaction id.",
                "produces": ["application/json"],
                "tags": ["payments"],
                "summary": "Verify gateway transaction",
                "parameters": [
                    {"type": "string", "description": "Transaction ID", "name": "id", "in": "path", "required": true},
                    {"type": "string", "description": "wompi (default) or mercadopago", "name": "gateway", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/main.verifyResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/product.HTTPError"}},
                    "502": {"description": "Bad Gateway", "schema": {"$ref": "#/definitions/product.HTTPError"}}
                }
            }
        },
        "/payments/wompi/webhook": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["webhooks"],
                "summary": "Wompi event webhook",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/payment.WebhookResult"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/product.HTTPError"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/product.HTTPError"}}
                }
            }
        },
        "/payments/mercadopago/webhook": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["webhooks"],
                "summary": "MercadoPago notification webhook",
                "parameters": [
                    {"type": "string", "description": "hex HMAC-SHA256 of the body", "name": "X-Signature", "in": "header", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/payment.WebhookResult"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/product.HTTPError"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/product.HTTPError"}}
                }
            }
        }
    },
    "definitions": {
        "main.signatureRequest": {
            "type": "object",
            "properties": {"orderId": {"type": "string", "example": "4e7d4e5c-5cb9-4a3f-9f21-7e1a4f9f2b2a"}}
        },
        "order.CreateOrderItem": {
            "type": "object",
            "properties": {
                "product_id": {"type": "string", "example": "4e7d4e5c-5cb9-4a3f-9f21-7e1a4f9f2b2a"},
                "quantity": {"type": "integer", "example": 2},
                "selected_variation": {"type": "string", "example": "42"}
            }
        },
        "order.CreateOrderRequest": {
            "type": "object",
            "properties": {
                "items": {"type": "array", "items": {"$ref": "#/definitions/order.CreateOrderItem"}},
                "payment_method": {"type": "string", "example": "wompi"},
                "shipping_address": {"$ref": "#/definitions/order.ShippingAddress"},
                "shipping_price": {"type": "string", "example": "12000"},
                "tax_price": {"type": "string", "example": "0"}
            }
        },
        "order.Item": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "image": {"type": "string"},
                "name": {"type": "string"},
                "order_id": {"type": "string"},
                "price": {"type": "number"},
                "product_id": {"type": "string"},
                "quantity": {"type": "integer"},
                "selected_variation": {"type": "string"}
            }
        },
        "order.Order": {
            "type": "object",
            "properties": {
                "created_at": {"type": "string"},
                "delivered_at": {"type": "string"},
                "id": {"type": "string"},
                "is_delivered": {"type": "boolean"},
                "is_paid": {"type": "boolean"},
                "items_price": {"type": "number"},
                "order_items": {"type": "array", "items": {"$ref": "#/definitions/order.Item"}},
                "paid_at": {"type": "string"},
                "payment_method": {"type": "string"},
                "payment_result": {"$ref": "#/definitions/order.PaymentResult"},
                "shipping_address": {"$ref": "#/definitions/order.ShippingAddress"},
                "shipping_price": {"type": "number"},
                "status": {"type": "string", "enum": ["Pending", "Processing", "Shipped", "Delivered"]},
                "tax_price": {"type": "number"},
                "total_price": {"type": "number"},
                "tracking_number": {"type": "string"},
                "updated_at": {"type": "string"},
                "user_id": {"type": "string"}
            }
        },
        "order.PaymentResult": {
            "type": "object",
            "properties": {
                "email_address": {"type": "string"},
                "id": {"type": "string"},
                "status": {"type": "string"},
                "update_time": {"type": "string"}
            }
        },
        "order.ShippingAddress": {
            "type": "object",
            "properties": {
                "address": {"type": "string"},
                "city": {"type": "string"},
                "country": {"type": "string"},
                "email": {"type": "string"},
                "legal_id": {"type": "string"},
                "phone": {"type": "string"},
                "postal_code": {"type": "string"}
            }
        },
        "order.UpdateStatusRequest": {
            "type": "object",
            "properties": {"status": {"type": "string", "example": "Delivered"}}
        },
        "order.UpdateTrackingRequest": {
            "type": "object",
            "properties": {"tracking_number": {"type": "string", "example": "SERV-000123"}}
        },
        "payment.Result": {
            "type": "object",
            "properties": {
                "order": {"$ref": "#/definitions/order.Order"},
                "outcome": {"type": "string", "enum": ["applied", "already_paid", "not_approved"]},
                "status": {"type": "string", "enum": ["approved", "pending", "declined"]}
            }
        },
        "payment.VerifyRequest": {
            "type": "object",
            "properties": {
                "gateway": {"type": "string", "enum": ["wompi", "mercadopago"]},
                "orderId": {"type": "string"},
                "paymentId": {"type": "string"}
            }
        },
        "main.verifyResponse": {
            "type": "object",
            "properties": {
                "order": {"description": "only for the owner or an admin", "$ref": "#/definitions/order.Order"},
                "orderId": {"type": "string"},
                "isPaid": {"type": "boolean"},
                "status": {"type": "string", "enum": ["approved", "pending", "declined"]}
            }
        },
        "payment.WebhookResult": {
            "type": "object",
            "properties": {
                "event": {"type": "string"},
                "handled": {"type": "boolean"},
                "reason": {"type": "string"}
            }
        },
        "payment.WidgetSignature": {
            "type": "object",
            "properties": {
                "amountInCents": {"type": "integer"},
                "currency": {"type": "string"},
                "publicKey": {"type": "string"},
                "reference": {"type": "string"},
                "signature": {"type": "string"}
            }
        },
        "product.HTTPError": {
            "type": "object",
            "properties": {"error": {"type": "string", "example": "not found"}}
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Ordenes Pagos API",
	Description:      "Orders and payment reconciliation for the shop.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
