package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/farmtrade/marketplace-api/internal/model"
	"github.com/farmtrade/marketplace-api/internal/repository"
)

const (
	orderQueueName = "orders"
	dlxExchange    = "orders.dlx"
	dlqQueueName   = "orders.dlq"
	idempotencyTTL = 24 * time.Hour
)

// Sender delivers a single notification mail.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// NotificationWorker consumes order events and mails the retailer a
// summary. Failed messages are dead-lettered; duplicate deliveries are
// skipped via a redis key per event.
type NotificationWorker struct {
	channel     *amqp.Channel
	orderRepo   repository.OrderRepository
	productRepo repository.ProductRepository
	userRepo    repository.UserRepository
	redisClient *redis.Client
	sender      Sender
	log         *slog.Logger
	done        chan struct{}
}

func NewNotificationWorker(
	ch *amqp.Channel,
	orderRepo repository.OrderRepository,
	productRepo repository.ProductRepository,
	userRepo repository.UserRepository,
	redisClient *redis.Client,
	sender Sender,
	log *slog.Logger,
) *NotificationWorker {
	return &NotificationWorker{
		channel:     ch,
		orderRepo:   orderRepo,
		productRepo: productRepo,
		userRepo:    userRepo,
		redisClient: redisClient,
		sender:      sender,
		log:         log,
		done:        make(chan struct{}),
	}
}

// SetupRabbitMQ declares exchanges, queues, and bindings (DLX/DLQ).
func SetupRabbitMQ(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(dlxExchange, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare DLX: %w", err)
	}
	if _, err := ch.QueueDeclare(dlqQueueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare DLQ: %w", err)
	}
	if err := ch.QueueBind(dlqQueueName, orderQueueName, dlxExchange, false, nil); err != nil {
		return fmt.Errorf("bind DLQ: %w", err)
	}
	if _, err := ch.QueueDeclare(orderQueueName, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    dlxExchange,
		"x-dead-letter-routing-key": orderQueueName,
	}); err != nil {
		return fmt.Errorf("declare order queue: %w", err)
	}
	if err := ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("set QoS: %w", err)
	}
	return nil
}

func (w *NotificationWorker) Start(ctx context.Context) error {
	msgs, err := w.channel.Consume(orderQueueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	go func() {
		for {
			select {
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				w.processMessage(ctx, msg)
			case <-w.done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	w.log.Info("notification worker started")
	return nil
}

func (w *NotificationWorker) Stop() { close(w.done) }

func (w *NotificationWorker) processMessage(ctx context.Context, msg amqp.Delivery) {
	var event model.OrderEvent
	if err := json.Unmarshal(msg.Body, &event); err != nil {
		w.log.Error("unmarshal order event", "error", err)
		_ = msg.Nack(false, false)
		return
	}

	log := w.log.With("event", event.Type, "order_id", event.OrderID)

	idempotencyKey := "order_notified:" + event.Type + ":" + event.OrderID.String()
	exists, err := w.redisClient.Exists(ctx, idempotencyKey).Result()
	if err != nil {
		log.Error("check idempotency key", "error", err)
		_ = msg.Nack(false, true)
		return
	}
	if exists > 0 {
		log.Info("event already handled, skipping")
		_ = msg.Ack(false)
		return
	}

	if err := w.notify(ctx, event); err != nil {
		log.Error("send notification", "error", err)
		_ = msg.Nack(false, false) // to DLQ
		return
	}

	if err := w.redisClient.Set(ctx, idempotencyKey, "1", idempotencyTTL).Err(); err != nil {
		log.Error("set idempotency key", "error", err)
	}

	_ = msg.Ack(false)
	log.Info("notification sent")
}

func (w *NotificationWorker) notify(ctx context.Context, event model.OrderEvent) error {
	order, err := w.orderRepo.GetByID(ctx, event.OrderID)
	if err != nil {
		return fmt.Errorf("get order: %w", err)
	}
	if order == nil {
		return fmt.Errorf("order not found: %s", event.OrderID)
	}

	retailer, err := w.userRepo.GetByID(ctx, order.RetailerID)
	if err != nil {
		return fmt.Errorf("get retailer: %w", err)
	}
	if retailer == nil {
		return fmt.Errorf("retailer not found: %s", order.RetailerID)
	}

	subject := fmt.Sprintf("Order %s placed", order.ID)
	if event.Type == model.EventOrderCancelled {
		subject = fmt.Sprintf("Order %s cancelled", order.ID)
	}

	body, err := w.buildBody(ctx, order)
	if err != nil {
		return err
	}
	return w.sender.Send(ctx, retailer.Email, subject, body)
}

func (w *NotificationWorker) buildBody(ctx context.Context, order *model.Order) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Order %s (%s)\n\n", order.ID, order.Status)

	for _, item := range order.Items {
		name := item.ProductID.String()
		product, err := w.productRepo.GetByID(ctx, item.ProductID)
		if err != nil {
			return "", fmt.Errorf("get product: %w", err)
		}
		if product != nil {
			name = product.Name
		}
		lineTotal := item.PricePerUnit.Mul(decimal.NewFromInt(int64(item.Quantity)))
		fmt.Fprintf(&b, "%s x%d @ %s = %s\n", name, item.Quantity, item.PricePerUnit.StringFixed(2), lineTotal.StringFixed(2))
	}

	fmt.Fprintf(&b, "\nTotal: %s\n", order.TotalAmount.StringFixed(2))
	return b.String(), nil
}
