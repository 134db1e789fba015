package rabbitmq

// QueueConfig описывает очередь и её ключ маршрутизации в обменнике уведомлений.
type QueueConfig struct {
	QueueName  string
	RoutingKey string
}

// Ключи маршрутизации событий, публикуемых ядром.
const (
	RoutingKeyRegistered    = "registered"
	RoutingKeyPaymentFailed = "payment_failed"
)

// GetNotificationQueues возвращает очереди воркера отправки писем.
func GetNotificationQueues() []QueueConfig {
	return []QueueConfig{
		{QueueName: "notifications.registered", RoutingKey: RoutingKeyRegistered},
		{QueueName: "notifications.payment_failed", RoutingKey: RoutingKeyPaymentFailed},
	}
}
