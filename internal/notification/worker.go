// Package notification delivers engine alerts (no-show, overstay) to
// web push subscribers through a small worker pool.
package notification

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"

	"roomwatch-backend/internal/engine"
	"roomwatch-backend/internal/store"
)

// Sender defines the interface for sending a web push notification.
type Sender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is the real Sender backed by the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// WorkerPool fans alert deliveries out over a fixed number of workers.
type WorkerPool struct {
	size    int
	jobs    chan engine.Alert
	subs    store.SubscriptionStore
	webpush *webpush.Options
	sender  Sender
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(size int, subs store.SubscriptionStore, webpushOptions *webpush.Options) *WorkerPool {
	if size <= 0 {
		size = 1
	}
	return &WorkerPool{
		size:    size,
		jobs:    make(chan engine.Alert, size),
		subs:    subs,
		webpush: webpushOptions,
		sender:  &WebPushSender{},
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

// Dispatch queues an alert for delivery. If the queue is full the alert
// is dropped rather than blocking the engine's tick loop.
func (wp *WorkerPool) Dispatch(alert engine.Alert) {
	select {
	case wp.jobs <- alert:
	default:
		log.Printf("notification: queue full, dropping %s alert for reservation %s", alert.Kind, alert.ReservationID)
	}
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	log.Printf("notification: worker %d started", id)
	for {
		select {
		case alert := <-wp.jobs:
			wp.sendAlert(ctx, alert)
		case <-ctx.Done():
			log.Printf("notification: worker %d shutting down", id)
			return
		}
	}
}

// sendAlert pushes one alert to every stored subscription.
func (wp *WorkerPool) sendAlert(ctx context.Context, alert engine.Alert) {
	subscriptions, err := wp.subs.ListSubscriptions(ctx)
	if err != nil {
		log.Printf("notification: failed to list subscriptions: %v", err)
		return
	}
	if len(subscriptions) == 0 {
		return
	}

	payload, err := json.Marshal(alert)
	if err != nil {
		log.Printf("notification: failed to marshal alert: %v", err)
		return
	}

	log.Printf("notification: sending %s alert to %d subscribers", alert.Kind, len(subscriptions))
	for _, sub := range subscriptions {
		wpSub := &webpush.Subscription{
			Endpoint: sub.Endpoint,
			Keys: webpush.Keys{
				P256dh: sub.P256DH,
				Auth:   sub.Auth,
			},
		}

		resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
		if err != nil {
			log.Printf("notification: error sending to %s: %v", sub.Endpoint, err)
			continue
		}
		resp.Body.Close()

		// Prune expired subscriptions.
		if resp.StatusCode == http.StatusGone || resp.StatusCode == http.StatusNotFound {
			log.Printf("notification: subscription %s expired, deleting", sub.Endpoint)
			if err := wp.subs.DeleteSubscription(ctx, sub.Endpoint); err != nil {
				log.Printf("notification: failed to delete expired subscription %s: %v", sub.Endpoint, err)
			}
		}
	}
}
