// Package notify publishes pipeline events (run reduced, fit finished) to an
// MQTT broker so downstream consumers react without polling the catalog.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/function61/gokit/logex"
)

const qos0AtMostOnce = 0

type EventKind string

const (
	RunReduced  EventKind = "run-reduced"
	PeaksFitted EventKind = "peaks-fitted"
	RunFailed   EventKind = "run-failed"
)

type Event struct {
	Kind        EventKind `json:"kind"`
	RunNumber   int       `json:"run_number"`
	IPTS        int       `json:"ipts"`
	ProjectPath string    `json:"project_path,omitempty"`
	Detail      string    `json:"detail,omitempty"`
}

// hidra/run-reduced etc.
func topicFor(kind EventKind) string {
	return fmt.Sprintf("hidra/%s", kind)
}

type Notifier struct {
	eventCh chan Event
	broker  string
	logl    *logex.Leveled
}

// start is used to hand the publish loop to the caller's task runner
func New(
	broker string,
	start func(task func(context.Context) error),
	logger *log.Logger,
) *Notifier {
	n := &Notifier{
		eventCh: make(chan Event, 100),
		broker:  broker,
		logl:    logex.Levels(logger),
	}

	start(func(ctx context.Context) error {
		return n.task(ctx)
	})

	return n
}

// queues without blocking the pipeline. a full queue is an error instead of
// a stall.
func (n *Notifier) Publish(event Event) error {
	select {
	case n.eventCh <- event:
		return nil
	default:
		return fmt.Errorf("Publish: queue is full, dropping %s for run %d", event.Kind, event.RunNumber)
	}
}

func (n *Notifier) task(ctx context.Context) error {
	client, err := connect(n.broker, n.logl)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event := <-n.eventCh:
			payload, err := json.Marshal(event)
			if err != nil {
				return err
			}

			if err := waitToken(client.Publish(topicFor(event.Kind), qos0AtMostOnce, false, payload)); err != nil {
				return err
			}

			n.logl.Debug.Printf("published %s for run %d", event.Kind, event.RunNumber)
		}
	}
}

func connect(broker string, logl *logex.Leveled) (mqtt.Client, error) {
	// broker-side access control dislikes duplicate client ids, so randomize
	clientId := fmt.Sprintf("hidractl-%d", time.Now().UnixNano())

	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientId)
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		logl.Error.Printf("connection lost: %v", err)
	}

	client := mqtt.NewClient(opts)

	if err := waitToken(client.Connect()); err != nil {
		return nil, err
	}

	return client, nil
}

func waitToken(token mqtt.Token) error {
	if token.Wait() && token.Error() != nil {
		return token.Error()
	}

	return nil
}
