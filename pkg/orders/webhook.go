package orders

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"offramp/pkg/types"
)

// SignatureHeader carries the hex-encoded HMAC-SHA256 of the raw body.
const SignatureHeader = "X-Webhook-Signature"

// webhookPayload is the counterparty's lifecycle event envelope.
type webhookPayload struct {
	Event string `json:"event"`
	Data  struct {
		ID     string `json:"id"`
		TxHash string `json:"txHash,omitempty"`
		Reason string `json:"reason,omitempty"`
	} `json:"data"`
}

// eventStatus maps the counterparty's lifecycle events onto the five-state
// order status.
func eventStatus(event string) (types.OrderStatus, bool) {
	switch event {
	case "order.initiated", "order.pending":
		return types.OrderPending, true
	case "order.validated":
		return types.OrderProcessing, true
	case "order.settled":
		return types.OrderCompleted, true
	case "order.refunded":
		return types.OrderFailed, true
	case "order.expired":
		return types.OrderCancelled, true
	default:
		return "", false
	}
}

// WebhookHandler receives order lifecycle events from the counterparty.
type WebhookHandler struct {
	secret     []byte
	production bool
	store      *Store
	log        *logrus.Entry
}

// NewWebhookHandler creates the handler. In production an invalid or
// missing signature is rejected outright; elsewhere a missing one is
// tolerated to ease integration testing. That relaxation is deliberate.
func NewWebhookHandler(secret string, production bool, store *Store) *WebhookHandler {
	return &WebhookHandler{
		secret:     []byte(secret),
		production: production,
		store:      store,
		log:        logrus.WithField("component", "webhook"),
	}
}

// Register mounts the webhook route.
func (h *WebhookHandler) Register(router *gin.Engine) {
	router.POST("/webhooks/settlement", h.handle)
}

func (h *WebhookHandler) handle(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}

	if !h.verifySignature(c.GetHeader(SignatureHeader), body) {
		// No unverified event may ever touch order state.
		h.log.Warn("rejected webhook with bad signature")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
		return
	}

	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed payload"})
		return
	}
	if payload.Data.ID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing order id"})
		return
	}

	status, ok := eventStatus(payload.Event)
	if !ok {
		h.log.WithField("event", payload.Event).Warn("unknown webhook event")
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown event"})
		return
	}

	if err := h.store.Apply(payload.Data.ID, status, payload.Data.TxHash, payload.Data.Reason); err != nil {
		h.log.WithError(err).WithField("order_id", payload.Data.ID).Warn("dropped out-of-order webhook")
		c.JSON(http.StatusConflict, gin.H{"error": "out-of-order transition"})
		return
	}

	h.log.WithFields(logrus.Fields{
		"order_id": payload.Data.ID,
		"event":    payload.Event,
		"status":   status,
	}).Info("order status updated")

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// verifySignature checks the HMAC-SHA256 of the raw body. Outside
// production an absent signature passes; a present-but-wrong one never
// does.
func (h *WebhookHandler) verifySignature(signature string, body []byte) bool {
	if signature == "" {
		return !h.production
	}

	provided, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, h.secret)
	mac.Write(body)
	return hmac.Equal(provided, mac.Sum(nil))
}

// Sign computes the signature for a payload. Exported for integration
// tests and the local webhook simulator.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
